package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Discover scans root for stack directories. Every non-hidden
// subdirectory holding a compose definition or a metadata file is a stack.
// Entries are sorted by directory name, which is the registry's discovery
// order.
func Discover(root string, opts Options) ([]Entry, error) {
	opts = opts.withDefaults()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stacks directory: %w", err)
	}

	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read stacks directory %s: %w", abs, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}

		entry := inspect(filepath.Join(abs, d.Name()), opts)
		if !entry.HasCompose && !entry.HasMetadata {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// inspect probes a single stack directory.
func inspect(dir string, opts Options) Entry {
	entry := Entry{
		Name:         filepath.Base(dir),
		Dir:          dir,
		ComposeFile:  filepath.Join(dir, opts.ComposeFiles[0]),
		MetadataFile: filepath.Join(dir, opts.FileName),
	}

	for _, name := range opts.ComposeFiles {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			entry.ComposeFile = candidate
			entry.HasCompose = true
			break
		}
	}
	entry.HasMetadata = isFile(entry.MetadataFile)

	return entry
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
