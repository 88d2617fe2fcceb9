package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, true},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }, true},
		{"sampling out of range", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"stdout exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "stdout" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "debug", Format: "json"})

	logger.NewComponentLogger("executor").WithRunID("run-1").WithStack("web").Info("Starting stack")

	out := buf.String()
	for _, want := range []string{`"component":"executor"`, `"run_id":"run-1"`, `"stack":"web"`, `"message":"Starting stack"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LoggingConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Expected info message to be filtered")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Expected warn message to be written")
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "composer.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("Expected message in log file, got %s", data)
	}
}

func TestFromContext_Fallback(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("Expected a no-op logger")
	}
	// must not panic
	logger.WithError(errors.New("boom")).Error("ignored")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"error":   zerolog.ErrorLevel,
		"unknown": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// no-op instance must accept every call
	m.RecordStackAction("start", "success", time.Second)
	m.RecordBatch("up", "succeeded", time.Second)
	m.SetStacksDiscovered(3)
	m.SetValidationIssues("error", 1)
	m.RecordMetadataMutation("tag_add")
	m.RecordError("NOT_FOUND")

	if m.Registry() != nil {
		t.Error("Expected nil registry when disabled")
	}
	path := filepath.Join(t.TempDir(), "composer.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no textfile when disabled")
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "composer"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordStackAction("start", "success", 200*time.Millisecond)
	m.RecordStackAction("start", "failure", 100*time.Millisecond)
	m.RecordBatch("up", "partial", time.Second)
	m.SetValidationIssues("warning", 2)

	path := filepath.Join(t.TempDir(), "composer.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`composer_stack_actions_total{action="start",result="success"} 1`,
		`composer_stack_actions_total{action="start",result="failure"} 1`,
		`composer_batches_total{operation="up",status="partial"} 1`,
		`composer_validation_issues{severity="warning"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in textfile:\n%s", want, out)
		}
	}
}

func TestNewTelemetry_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "composer.log")

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}

	ctx := tel.WithContext(context.Background())
	if FromTelemetryContext(ctx) != tel {
		t.Error("Expected telemetry to round-trip through context")
	}

	op := StartOperation(ctx, "up")
	if op.Span == nil {
		t.Error("Expected a span when telemetry is present")
	}
	op.End(nil)

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), "list")
	if op.Span != nil {
		t.Error("Expected no span without telemetry")
	}
	if op.Logger == nil || op.Timer == nil {
		t.Error("Expected logger and timer to be set")
	}
	op.End(errors.New("ignored"))
}
