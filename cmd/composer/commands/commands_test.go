package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/stackfleet/composer/pkg/config"
	"github.com/stackfleet/composer/pkg/engine"
)

// fakeOrchestrator records every call instead of running docker compose.
type fakeOrchestrator struct {
	calls  []string
	fail   map[string]bool
	status map[string]engine.StackStatus
}

func (f *fakeOrchestrator) Start(_ context.Context, s *engine.Stack) error {
	f.calls = append(f.calls, "start "+s.Name)
	if f.fail[s.Name] {
		return errors.New("compose up failed")
	}
	return nil
}

func (f *fakeOrchestrator) Stop(_ context.Context, s *engine.Stack) error {
	f.calls = append(f.calls, "stop "+s.Name)
	if f.fail[s.Name] {
		return errors.New("compose down failed")
	}
	return nil
}

func (f *fakeOrchestrator) Status(_ context.Context, s *engine.Stack) (engine.StackStatus, error) {
	if st, ok := f.status[s.Name]; ok {
		return st, nil
	}
	return engine.StackStatus{State: engine.StatusUnknown}, errors.New("daemon unreachable")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// setupCLI creates a stacks directory with four stacks, isolates config and
// data directories and installs a fake orchestrator.
//
//	cache  infra           [database fast]  priority 30
//	db     infra           [database]       priority 10  auto-start
//	tools  (no metadata)                    priority 50
//	web    apps/frontend   [http]           priority 20  auto-start, depends on db
func setupCLI(t *testing.T) (string, *fakeOrchestrator) {
	t.Helper()
	color.NoColor = true

	root := t.TempDir()
	compose := "services:\n  app:\n    image: nginx:alpine\n"

	writeFile(t, filepath.Join(root, "cache", "docker-compose.yml"), compose)
	writeFile(t, filepath.Join(root, "cache", ".stack-meta.yaml"),
		"category: infra\ntags: [database, fast]\npriority: 30\n")

	writeFile(t, filepath.Join(root, "db", "docker-compose.yml"), compose)
	writeFile(t, filepath.Join(root, "db", ".stack-meta.yaml"),
		"category: infra\ntags: [database]\npriority: 10\nauto_start: true\n")

	writeFile(t, filepath.Join(root, "tools", "compose.yaml"), compose)

	writeFile(t, filepath.Join(root, "web", "docker-compose.yml"), compose)
	writeFile(t, filepath.Join(root, "web", ".stack-meta.yaml"),
		"category: apps\nsubcategory: frontend\ntags: [http]\ndepends_on: [db]\npriority: 20\n"+
			"auto_start: true\ndescription: Web frontend\n")

	t.Setenv("COMPOSER_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("COMPOSER_DATA_DIR", t.TempDir())
	t.Setenv("COMPOSER_STACKS_DIR", root)
	t.Setenv("LOG_LEVEL", "")

	orch := &fakeOrchestrator{
		fail: map[string]bool{},
		status: map[string]engine.StackStatus{
			"web": engine.NewStackStatus(1, 1),
		},
	}
	prev := newOrchestrator
	newOrchestrator = func(*config.Config, zerolog.Logger) orchestrator { return orch }
	t.Cleanup(func() { newOrchestrator = prev })

	return root, orch
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := newRootCommand("test", "none", "today")
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("composer %s failed: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("Expected output to contain %q, got:\n%s", w, out)
		}
	}
}

func assertExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected ExitError, got %v", err)
	}
	if exitErr.Code != code {
		t.Errorf("Expected exit code %d, got %d", code, exitErr.Code)
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand("1.0.0", "abc123", "2024-01-01")

	if cmd.Use != "composer" {
		t.Errorf("Expected Use 'composer', got %s", cmd.Use)
	}
	if !strings.Contains(cmd.Version, "1.0.0") {
		t.Errorf("Expected version to contain 1.0.0, got %s", cmd.Version)
	}

	for _, name := range []string{"list", "show", "status", "search", "up", "down", "restart",
		"autostart", "validate", "graph", "tag", "category", "history"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("Expected subcommand %s", name)
		}
	}
}

func TestListCommand(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "list")
	assertContains(t, out, "4 stacks:", "apps/frontend", "● auto-start", "[database, fast]")

	out = mustRun(t, "ls", "--category", "infra")
	assertContains(t, out, "2 stacks:", "cache", "db")
	if strings.Contains(out, "web") {
		t.Errorf("Expected web to be filtered out, got:\n%s", out)
	}

	out = mustRun(t, "list", "--tag", "nothing")
	assertContains(t, out, "No stacks found")
}

func TestListCommand_StacksDirFlag(t *testing.T) {
	setupCLI(t)

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "solo", "docker-compose.yml"), "services: {}\n")

	out := mustRun(t, "list", "--stacks-dir", other)
	assertContains(t, out, "1 stack:", "solo")
}

func TestListCommand_JSON(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "list", "--json")

	var stacks []engine.Stack
	if err := json.Unmarshal([]byte(out), &stacks); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\n%s", err, out)
	}
	if len(stacks) != 4 || stacks[0].Name != "cache" || stacks[3].Name != "web" {
		t.Errorf("Unexpected stacks: %+v", stacks)
	}
}

func TestShowCommand(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "show", "web")
	assertContains(t, out,
		"Stack: web",
		strings.Repeat("=", 60),
		"Description:  Web frontend",
		"Category:     apps/frontend",
		"Tags:         http",
		"Status:       running (1/1 containers)",
		"Auto-start:   yes",
		"Priority:     20",
		"Critical:     no",
		"Dependencies: db",
	)

	out = mustRun(t, "show", "tools")
	assertContains(t, out, "Description:  N/A", "Tags:         none", "Status:       unknown (0/0 containers)", "Auto-start:   no")
	if strings.Contains(out, "Priority:") {
		t.Errorf("Expected no priority line for a stack without auto-start, got:\n%s", out)
	}
}

func TestShowCommand_NotFound(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "show", "nope")
	assertExitCode(t, err, 1)
	assertContains(t, out, "Stack 'nope' not found")
}

func TestStatusCommand(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "status")
	assertContains(t, out, "running (1/1)", "unknown (0/0)")

	out = mustRun(t, "status", "web")
	assertContains(t, out, "web")
	if strings.Contains(out, "cache") {
		t.Errorf("Expected a single stack, got:\n%s", out)
	}

	_, err := runCLI(t, "status", "nope")
	assertExitCode(t, err, 1)
}

func TestSearchCommand(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "search", "DATA")
	assertContains(t, out, "Found 2 stack(s) matching 'DATA'", "cache", "db")

	out = mustRun(t, "search", "frontend")
	assertContains(t, out, "Found 1 stack(s)", "web")

	out = mustRun(t, "search", "zzz")
	assertContains(t, out, "No stacks found matching 'zzz'")
}

func TestLifecycleCommands(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCalls []string
		wantOut   []string
	}{
		{
			name:      "up single stack",
			args:      []string{"up", "web"},
			wantCalls: []string{"start web"},
			wantOut:   []string{"Starting 1 stack(s)...", "  Starting web... ✓"},
		},
		{
			name:      "up with dependencies",
			args:      []string{"up", "web", "--with-deps"},
			wantCalls: []string{"start db", "start web"},
			wantOut:   []string{"Starting 2 stack(s)..."},
		},
		{
			name:      "up category in discovery order",
			args:      []string{"up", "--category", "infra"},
			wantCalls: []string{"start cache", "start db"},
		},
		{
			name:      "up category by priority",
			args:      []string{"up", "--category", "infra", "--priority"},
			wantCalls: []string{"start db", "start cache"},
		},
		{
			name:      "up subcategory",
			args:      []string{"up", "--category", "apps/frontend"},
			wantCalls: []string{"start web"},
		},
		{
			name:      "down all by descending priority",
			args:      []string{"down", "--all"},
			wantCalls: []string{"stop tools", "stop cache", "stop web", "stop db"},
			wantOut:   []string{"Stopping 4 stack(s)...", "  Stopping tools... ✓"},
		},
		{
			name:      "restart tag",
			args:      []string{"restart", "--tag", "database"},
			wantCalls: []string{"stop cache", "stop db", "start cache", "start db"},
			wantOut:   []string{"Restarting 2 stack(s)..."},
		},
		{
			name:      "autostart by priority",
			args:      []string{"autostart"},
			wantCalls: []string{"start db", "start web"},
		},
		{
			name:      "empty selection",
			args:      []string{"up", "--tag", "nothing"},
			wantCalls: nil,
			wantOut:   []string{"Starting 0 stack(s)..."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, orch := setupCLI(t)

			out := mustRun(t, tt.args...)

			if strings.Join(orch.calls, ",") != strings.Join(tt.wantCalls, ",") {
				t.Errorf("Expected calls %v, got %v", tt.wantCalls, orch.calls)
			}
			assertContains(t, out, tt.wantOut...)
		})
	}
}

func TestUpCommand_FailureContinues(t *testing.T) {
	_, orch := setupCLI(t)
	orch.fail["cache"] = true

	out := mustRun(t, "up", "--category", "infra")

	if len(orch.calls) != 2 {
		t.Errorf("Expected both stacks to be attempted, got %v", orch.calls)
	}
	assertContains(t, out, "  Starting cache... ✗ FAILED", "compose up failed", "  Starting db... ✓", "1 of 2 stacks failed")
}

func TestUpCommand_NotFound(t *testing.T) {
	_, orch := setupCLI(t)

	out, err := runCLI(t, "up", "nope")
	assertExitCode(t, err, 1)
	assertContains(t, out, "Stack 'nope' not found")
	if len(orch.calls) != 0 {
		t.Errorf("Expected no orchestrator calls, got %v", orch.calls)
	}
}

func TestUpCommand_MissingDependency(t *testing.T) {
	root, orch := setupCLI(t)
	writeFile(t, filepath.Join(root, "web", ".stack-meta.yaml"), "depends_on: [ghost]\n")

	out, err := runCLI(t, "up", "web", "--with-deps")
	assertExitCode(t, err, 1)
	assertContains(t, out, "ghost")
	if len(orch.calls) != 0 {
		t.Errorf("Expected no orchestrator calls, got %v", orch.calls)
	}
}

func TestUpCommand_BatchSkipsUnresolvableDependencies(t *testing.T) {
	root, orch := setupCLI(t)
	writeFile(t, filepath.Join(root, "cache", ".stack-meta.yaml"),
		"category: infra\ntags: [database, fast]\npriority: 30\ndepends_on: [ghost]\n")

	out := mustRun(t, "up", "--category", "infra", "--with-deps")

	if strings.Join(orch.calls, ",") != "start db" {
		t.Errorf("Expected only db to start, got %v", orch.calls)
	}
	assertContains(t, out,
		"Starting 1 stack(s)...",
		"  Starting db... ✓",
		"  Starting cache... ✗ FAILED",
		"ghost",
		"1 of 2 stacks failed",
		"1 stack skipped: dependencies could not be resolved",
	)

	out = mustRun(t, "history")
	assertContains(t, out, "category:infra", "partial (1/2)")
}

func TestUpCommand_WithDepsAndPriority(t *testing.T) {
	root, orch := setupCLI(t)
	writeFile(t, filepath.Join(root, "db", ".stack-meta.yaml"),
		"category: infra\ntags: [database]\npriority: 90\n")

	mustRun(t, "up", "--tag", "http", "--with-deps", "--priority")

	if strings.Join(orch.calls, ",") != "start db,start web" {
		t.Errorf("Expected db before web, got %v", orch.calls)
	}
}

func TestLifecycleCommands_TargetErrors(t *testing.T) {
	setupCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no target", []string{"up"}},
		{"name and selector", []string{"down", "web", "--all"}},
		{"two selectors", []string{"restart", "--all", "--tag", "database"}},
		{"too many args", []string{"up", "web", "db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestUpCommand_JSONAndHistory(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "up", "web", "--json")

	var run struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\n%s", err, out)
	}
	if run.ID == "" || run.Operation != "up" || run.Status != "succeeded" {
		t.Fatalf("Unexpected run: %+v", run)
	}

	out = mustRun(t, "history")
	assertContains(t, out, run.ID[:8], "up", "stack:web", "succeeded (1/1)")

	out = mustRun(t, "history", "show", run.ID[:8])
	assertContains(t, out, "Run: "+run.ID, "Target:       stack:web", "✓ start web")

	out, err := runCLI(t, "history", "show", "ffffffff")
	assertExitCode(t, err, 1)
	assertContains(t, out, "Run 'ffffffff' not found")

	out = mustRun(t, "history", "delete", run.ID[:8])
	assertContains(t, out, "✓ Deleted run "+run.ID[:8]+" (up stack:web)")

	out = mustRun(t, "history")
	assertContains(t, out, "No runs recorded")

	out, err = runCLI(t, "history", "delete", run.ID)
	assertExitCode(t, err, 1)
	assertContains(t, out, "Run '"+run.ID+"' not found")
}

func TestHistoryCommand_Empty(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "history")
	assertContains(t, out, "No runs recorded")

	out = mustRun(t, "history", "audit")
	assertContains(t, out, "No changes recorded")
}

func TestValidateCommand(t *testing.T) {
	root, _ := setupCLI(t)

	out := mustRun(t, "validate")
	assertContains(t, out, "Validating stacks...", "  ⚠ tools: no .stack-meta.yaml file", "1 issue(s) found")

	writeFile(t, filepath.Join(root, "broken", ".stack-meta.yaml"), "depends_on: [ghost]\n")

	out, err := runCLI(t, "validate")
	assertExitCode(t, err, 1)
	assertContains(t, out,
		"  ✗ broken: docker-compose.yml not found",
		"  ✗ broken: dependency 'ghost' not found",
		"3 issue(s) found",
	)
}

func TestValidateCommand_AllValid(t *testing.T) {
	root, _ := setupCLI(t)
	writeFile(t, filepath.Join(root, "tools", ".stack-meta.yaml"), "category: ops\n")

	out := mustRun(t, "validate")
	assertContains(t, out, "✓ All stacks valid")
}

func TestGraphCommand(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "graph")
	assertContains(t, out, "Level 0: cache, db, tools", "Level 1: web")

	out = mustRun(t, "graph", "web")
	assertContains(t, out, "Start order for web:", "  1. db\n  2. web\n")

	out = mustRun(t, "graph", "--dot")
	assertContains(t, out, "digraph Stacks {", `"db" -> "web";`)
}

func TestGraphCommand_Cycle(t *testing.T) {
	root, _ := setupCLI(t)
	writeFile(t, filepath.Join(root, "db", ".stack-meta.yaml"), "depends_on: [web]\n")

	out, err := runCLI(t, "graph", "web")
	assertExitCode(t, err, 1)
	assertContains(t, out, "✗ ")
}

func TestCategoryCommands(t *testing.T) {
	root, _ := setupCLI(t)

	out := mustRun(t, "category", "list")
	assertContains(t, out, "Found 2 unique categories:", "  • apps/frontend (1 stack)", "  • infra (2 stacks)")

	out = mustRun(t, "category", "set", "tools", "media", "streaming")
	assertContains(t, out, "✓ Changed category for tools: none → media/streaming")

	data, err := os.ReadFile(filepath.Join(root, "tools", ".stack-meta.yaml"))
	if err != nil {
		t.Fatalf("Expected metadata file to be created: %v", err)
	}
	assertContains(t, string(data), "category: media", "subcategory: streaming")

	out = mustRun(t, "category", "set", "web", "apps/backend")
	assertContains(t, out, "✓ Changed category for web: apps/frontend → apps/backend")

	out = mustRun(t, "category", "rename", "infra", "core")
	assertContains(t, out, "✓ Renamed category 'infra' to 'core' across 2 stacks")

	out = mustRun(t, "list", "--category", "core")
	assertContains(t, out, "2 stacks:")

	out = mustRun(t, "category", "rename", "nope", "other")
	assertContains(t, out, "Category 'nope' not found on any stacks")

	out = mustRun(t, "category", "rename", "core", "core")
	assertContains(t, out, "Category 'core' not found on any stacks")

	out, err = runCLI(t, "category", "set", "nope", "x")
	assertExitCode(t, err, 1)
	assertContains(t, out, "Stack 'nope' not found")

	out = mustRun(t, "history", "audit", "--action", "category.rename")
	assertContains(t, out, "category.rename", "infra")
}

func TestCategoryList_Empty(t *testing.T) {
	setupCLI(t)
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "solo", "docker-compose.yml"), "services: {}\n")

	out := mustRun(t, "category", "list", "--stacks-dir", other)
	assertContains(t, out, "No categories found")
}

func TestTagCommands(t *testing.T) {
	root, _ := setupCLI(t)

	out := mustRun(t, "tag", "list")
	assertContains(t, out, "Found 3 unique tags:", "  • database (2 stacks)", "  • http (1 stack)")

	out = mustRun(t, "tag", "add", "tools", "ops", "cli")
	assertContains(t, out, "✓ Added ops, cli to tools")

	out = mustRun(t, "tag", "add", "tools", "ops")
	assertContains(t, out, "tools already has ops")

	out = mustRun(t, "tag", "remove", "tools", "cli", "missing")
	assertContains(t, out, "✓ Removed cli from tools")

	data, err := os.ReadFile(filepath.Join(root, "tools", ".stack-meta.yaml"))
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if strings.Contains(string(data), "cli") || !strings.Contains(string(data), "ops") {
		t.Errorf("Unexpected metadata after tag changes:\n%s", data)
	}

	out = mustRun(t, "tag", "rename", "database", "db")
	assertContains(t, out, "✓ Renamed tag 'database' to 'db' across 2 stacks")

	out = mustRun(t, "up", "--tag", "db")
	assertContains(t, out, "Starting 2 stack(s)...")

	out = mustRun(t, "tag", "rename", "database", "db")
	assertContains(t, out, "Tag 'database' not found on any stacks")

	out = mustRun(t, "tag", "rename", "db", "db")
	assertContains(t, out, "Tag 'db' not found on any stacks")

	out = mustRun(t, "history", "audit")
	assertContains(t, out, "tag.add", "tag.remove", "tag.rename")
}

func TestTargetFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   targetFlags
		args    []string
		want    string
		wantErr bool
	}{
		{"stack", targetFlags{}, []string{"web"}, "stack:web", false},
		{"all", targetFlags{all: true}, nil, "all", false},
		{"category", targetFlags{category: "media/streaming"}, nil, "category:media/streaming", false},
		{"tag", targetFlags{tag: "db"}, nil, "tag:db", false},
		{"nothing", targetFlags{}, nil, "", true},
		{"conflict", targetFlags{tag: "db"}, []string{"web"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := tt.flags.target(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if target.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, target.String())
			}
		})
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "stack"); got != "1 stack" {
		t.Errorf("Expected '1 stack', got %q", got)
	}
	if got := plural(0, "stack"); got != "0 stacks" {
		t.Errorf("Expected '0 stacks', got %q", got)
	}
}
