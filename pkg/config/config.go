package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stackfleet/composer/pkg/metadata"
	"github.com/stackfleet/composer/pkg/telemetry"
)

// Environment variables consulted by Load.
const (
	EnvConfig    = "COMPOSER_CONFIG"
	EnvStacksDir = "COMPOSER_STACKS_DIR"
	EnvDataDir   = "COMPOSER_DATA_DIR"
	EnvLogLevel  = "LOG_LEVEL"
)

// localNames are the config file names looked up in the working directory.
var localNames = []string{"composer.yaml", "composer.yml", "composer.toml"}

// Config is the composer configuration file.
type Config struct {
	// StacksDir is the directory whose subdirectories are stacks.
	StacksDir string `yaml:"stacks_dir" toml:"stacks_dir" validate:"required"`

	// MetadataFile is the per-stack metadata file name.
	MetadataFile string `yaml:"metadata_file" toml:"metadata_file" validate:"required,excludesall=/\\"`

	// ComposeFiles are the compose file names probed in order; the first
	// existing one wins.
	ComposeFiles []string `yaml:"compose_files" toml:"compose_files" validate:"min=1,dive,required"`

	// ComposeCommand is the orchestration tool invocation, e.g. [docker, compose].
	ComposeCommand []string `yaml:"compose_command" toml:"compose_command" validate:"min=1,dive,required"`

	// DefaultPriority applies to stacks whose metadata sets no priority.
	DefaultPriority int `yaml:"default_priority" toml:"default_priority" validate:"gte=0"`

	// DataDir holds composer state such as the history database.
	DataDir string `yaml:"data_dir" toml:"data_dir" validate:"required"`

	History HistoryConfig `yaml:"history" toml:"history"`

	Telemetry telemetry.Config `yaml:"telemetry" toml:"telemetry"`

	// Source is the file the configuration was read from, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Path overrides the database location. Defaults to <data_dir>/history.db.
	Path string `yaml:"path" toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StacksDir:       ".",
		MetadataFile:    metadata.DefaultFileName,
		ComposeFiles:    append([]string(nil), metadata.DefaultComposeFiles...),
		ComposeCommand:  []string{"docker", "compose"},
		DefaultPriority: metadata.DefaultPriority,
		DataDir:         defaultDataDir(),
		History:         HistoryConfig{Enabled: true},
		Telemetry:       *telemetry.DefaultConfig(),
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "composer")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "composer")
	}
	return ".composer"
}

// Load resolves, reads and validates the configuration. explicit is the
// --config flag value and may be empty.
func Load(explicit string) (*Config, error) {
	path, err := Locate(explicit)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single configuration file over the defaults without
// consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.Source = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Locate returns the configuration file to read: the explicit path, then
// $COMPOSER_CONFIG, then composer.{yaml,yml,toml} in the working directory,
// then the user config directory. An empty path means built-in defaults.
// An explicitly named file that does not exist is an error.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		return requireFile(explicit)
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return requireFile(env)
	}

	for _, name := range localNames {
		if isFile(name) {
			return name, nil
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
			path := filepath.Join(dir, "composer", name)
			if isFile(path) {
				return path, nil
			}
		}
	}

	return "", nil
}

func requireFile(path string) (string, error) {
	if !isFile(path) {
		return "", fmt.Errorf("config file %s not found", path)
	}
	return path, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	}

	// relative stacks_dir is anchored at the config file
	if cfg.StacksDir != "" && !filepath.IsAbs(cfg.StacksDir) {
		cfg.StacksDir = filepath.Join(filepath.Dir(path), cfg.StacksDir)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvStacksDir); v != "" {
		cfg.StacksDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
}

// Validate checks the configuration and reports every failing field.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check", trimRoot(fe.Namespace()), fe.Tag()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// trimRoot drops the leading struct name from a validator namespace.
func trimRoot(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// HistoryPath returns the history database location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.DataDir, "history.db")
}

// MetadataOptions returns the discovery and metadata settings.
func (c *Config) MetadataOptions() metadata.Options {
	return metadata.Options{
		FileName:        c.MetadataFile,
		ComposeFiles:    c.ComposeFiles,
		DefaultPriority: c.DefaultPriority,
	}
}
