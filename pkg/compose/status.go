package compose

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Container is one entry of `docker compose ps --format json`.
type Container struct {
	ID      string `json:"ID"`
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
}

// Running reports whether the container is up.
func (c Container) Running() bool {
	return strings.EqualFold(c.State, "running")
}

// parseContainers accepts both output forms of `ps --format json`: a single
// JSON array (older compose v2 releases) or one object per line.
func parseContainers(data []byte) ([]Container, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var containers []Container
		if err := json.Unmarshal(data, &containers); err != nil {
			return nil, err
		}
		return containers, nil
	}

	var containers []Container
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var c Container
		if err := json.Unmarshal(text, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		containers = append(containers, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return containers, nil
}
