package metadata

import (
	"github.com/stackfleet/composer/pkg/engine"
)

// DefaultFileName is the metadata file looked up in every stack directory.
const DefaultFileName = ".stack-meta.yaml"

// DefaultComposeFiles are the compose definitions probed in a stack
// directory, in order. The first existing file wins.
var DefaultComposeFiles = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// DefaultPriority is used for stacks whose metadata does not set one.
const DefaultPriority = 50

// Metadata is the on-disk metadata record of a stack.
type Metadata struct {
	Category       string   `yaml:"category,omitempty"`
	Subcategory    string   `yaml:"subcategory,omitempty" validate:"excluded_without=Category"`
	Tags           []string `yaml:"tags,omitempty" validate:"dive,required"`
	DependsOn      []string `yaml:"depends_on,omitempty" validate:"dive,required"`
	Priority       *int     `yaml:"priority,omitempty"`
	AutoStart      bool     `yaml:"auto_start,omitempty"`
	Critical       bool     `yaml:"critical,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Owner          string   `yaml:"owner,omitempty"`
	Documentation  string   `yaml:"documentation,omitempty"`
	HealthCheckURL string   `yaml:"health_check_url,omitempty" validate:"omitempty,url"`
}

// Entry is a discovered stack directory.
type Entry struct {
	// Name is the directory name, used as the stack name.
	Name string

	// Dir is the absolute stack directory.
	Dir string

	// ComposeFile is the compose definition found in Dir, or the first
	// candidate name when none exists.
	ComposeFile string

	// MetadataFile is the metadata file location in Dir.
	MetadataFile string

	HasCompose  bool
	HasMetadata bool
}

// Options controls discovery and defaults.
type Options struct {
	// FileName is the metadata file name.
	FileName string

	// ComposeFiles are the compose definition names to probe.
	ComposeFiles []string

	// DefaultPriority applies when metadata omits priority.
	DefaultPriority int
}

// DefaultOptions returns the stock discovery options.
func DefaultOptions() Options {
	return Options{
		FileName:        DefaultFileName,
		ComposeFiles:    append([]string(nil), DefaultComposeFiles...),
		DefaultPriority: DefaultPriority,
	}
}

func (o Options) withDefaults() Options {
	if o.FileName == "" {
		o.FileName = DefaultFileName
	}
	if len(o.ComposeFiles) == 0 {
		o.ComposeFiles = append([]string(nil), DefaultComposeFiles...)
	}
	return o
}

// ToStack builds the engine stack for entry from its metadata. m may be nil
// for stacks without a metadata file.
func ToStack(entry Entry, m *Metadata, defaultPriority int) *engine.Stack {
	s := &engine.Stack{
		Name:         entry.Name,
		Path:         entry.Dir,
		ComposeFile:  entry.ComposeFile,
		MetadataFile: entry.MetadataFile,
		HasCompose:   entry.HasCompose,
		HasMetadata:  entry.HasMetadata,
		Priority:     defaultPriority,
	}
	if m == nil {
		return s
	}

	s.Category = m.Category
	if m.Category != "" {
		s.Subcategory = m.Subcategory
	}
	s.Tags = dedupe(m.Tags)
	s.DependsOn = append([]string(nil), m.DependsOn...)
	if m.Priority != nil {
		s.Priority = *m.Priority
	}
	s.AutoStart = m.AutoStart
	s.Critical = m.Critical
	s.Description = m.Description
	s.Owner = m.Owner
	s.Documentation = m.Documentation
	s.HealthCheckURL = m.HealthCheckURL
	return s
}

// FromStack builds the metadata record persisted for s.
func FromStack(s *engine.Stack) *Metadata {
	priority := s.Priority
	m := &Metadata{
		Category:       s.Category,
		Tags:           dedupe(s.Tags),
		DependsOn:      append([]string(nil), s.DependsOn...),
		Priority:       &priority,
		AutoStart:      s.AutoStart,
		Critical:       s.Critical,
		Description:    s.Description,
		Owner:          s.Owner,
		Documentation:  s.Documentation,
		HealthCheckURL: s.HealthCheckURL,
	}
	if s.Category != "" {
		m.Subcategory = s.Subcategory
	}
	return m
}

// dedupe drops repeated and empty values, keeping the first occurrence.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
