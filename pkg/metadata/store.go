package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stackfleet/composer/pkg/engine"
)

// FileStore reads and writes metadata files in stack directories.
type FileStore struct {
	opts      Options
	logger    zerolog.Logger
	validator *validator.Validate
}

// NewFileStore creates a metadata store.
func NewFileStore(opts Options, logger zerolog.Logger) *FileStore {
	return &FileStore{
		opts:      opts.withDefaults(),
		logger:    logger.With().Str("component", "metadata-store").Logger(),
		validator: validator.New(),
	}
}

// Path returns the metadata file location for a stack directory.
func (s *FileStore) Path(dir string) string {
	return filepath.Join(dir, s.opts.FileName)
}

// Load reads the metadata file of dir. The boolean is false when the file
// does not exist, which is not an error.
func (s *FileStore) Load(dir string) (*Metadata, bool, error) {
	path := s.Path(dir)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, true, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	m.Tags = dedupe(m.Tags)

	return &m, true, nil
}

// Validate checks a metadata record's field constraints.
func (s *FileStore) Validate(m *Metadata) error {
	if err := s.validator.Struct(m); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}
	return nil
}

// Write stores m as the metadata file of dir. The file is replaced
// atomically so readers never see a partial write.
func (s *FileStore) Write(dir string, m *Metadata) error {
	m.Tags = dedupe(m.Tags)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	path := s.Path(dir)
	tmp, err := os.CreateTemp(dir, "."+s.opts.FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close metadata: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set metadata permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace metadata: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("Metadata written")
	return nil
}

// Save persists a stack's metadata to its directory.
func (s *FileStore) Save(_ context.Context, stack *engine.Stack) error {
	return s.Write(stack.Path, FromStack(stack))
}

// LoadStacks discovers every stack under root and builds engine stacks from
// their metadata. A metadata file that cannot be parsed fails the load;
// constraint violations are logged and the stack is kept.
func (s *FileStore) LoadStacks(root string) ([]*engine.Stack, error) {
	entries, err := Discover(root, s.opts)
	if err != nil {
		return nil, err
	}

	stacks := make([]*engine.Stack, 0, len(entries))
	for _, entry := range entries {
		m, _, err := s.Load(entry.Dir)
		if err != nil {
			return nil, fmt.Errorf("stack %s: %w", entry.Name, err)
		}
		if m != nil {
			if err := s.Validate(m); err != nil {
				s.logger.Warn().Err(err).Str("stack", entry.Name).Msg("Metadata failed validation")
			}
		}
		stacks = append(stacks, ToStack(entry, m, s.opts.DefaultPriority))
	}

	s.logger.Debug().
		Str("root", root).
		Int("stacks", len(stacks)).
		Msg("Stacks discovered")

	return stacks, nil
}
