package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

func TestWatcher_ReportsMetadataChanges(t *testing.T) {
	root := setupStacksDir(t)
	w := NewWatcher(root, DefaultOptions(), zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() { changes <- struct{}{} })
	}()

	path := filepath.Join(root, "hello", DefaultFileName)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	// The watcher registers asynchronously; keep touching the file until a
	// change comes through.
	for received := false; !received; {
		select {
		case <-changes:
			received = true
		case <-tick.C:
			if err := os.WriteFile(path, []byte("category: changed\n"), 0o644); err != nil {
				t.Fatalf("Failed to write metadata: %v", err)
			}
		case <-deadline:
			t.Fatal("Timed out waiting for change notification")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestWatcher_Relevant(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(root, DefaultOptions(), zerolog.Nop())

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"metadata write", fsnotify.Event{Name: filepath.Join(root, "web", DefaultFileName), Op: fsnotify.Write}, true},
		{"compose create", fsnotify.Event{Name: filepath.Join(root, "web", "compose.yml"), Op: fsnotify.Create}, true},
		{"other file", fsnotify.Event{Name: filepath.Join(root, "web", "README.md"), Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "web", DefaultFileName), Op: fsnotify.Chmod}, false},
		{"stack dir removed", fsnotify.Event{Name: filepath.Join(root, "web"), Op: fsnotify.Remove}, true},
		{"hidden dir", fsnotify.Event{Name: filepath.Join(root, ".git"), Op: fsnotify.Create}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
