package templating

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// readFile is swapped out in tests to inject read failures.
var readFile = os.ReadFile

// Store is an immutable snapshot of a template directory: the raw text of every
// regular file, keyed by its slash-separated path relative to the root.
type Store struct {
	root      string
	templates map[string]string
}

// Preload walks root recursively and loads every regular file into a new Store.
// Directories are traversed depth-first; symlinks, devices and other special
// entries are skipped. Any error aborts the load and is returned as a *FilesystemError.
func Preload(logger *slog.Logger, root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FilesystemError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FilesystemError{Op: "stat", Path: root, Err: ErrNotDirectory}
	}

	s := &Store{root: root, templates: map[string]string{}}
	if err = s.loadDirectory(logger, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// loadDirectory loads the directory at rel (relative to the root) and any subdirectories.
func (s *Store) loadDirectory(logger *slog.Logger, rel string) error {
	dir := filepath.Join(s.root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &FilesystemError{Op: "read directory", Path: dir, Err: err}
	}

	for _, entry := range entries {
		key := path.Join(rel, entry.Name())
		switch mode := entry.Type(); {
		case mode.IsRegular():
			full := filepath.Join(dir, entry.Name())
			content, err := readFile(full)
			if err != nil {
				return &FilesystemError{Op: "read", Path: full, Err: err}
			}
			s.templates[key] = newlineReplacer.Replace(string(content))
		case mode.IsDir():
			if err = s.loadDirectory(logger, key); err != nil {
				return err
			}
		default:
			logger.Debug("Skipping non-regular template entry", "key", key, "mode", mode.String())
		}
	}
	return nil
}

// Get returns the cached text for key.
func (s *Store) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	text, ok := s.templates[key]
	return text, ok
}

// Keys returns every cached key in lexical order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached templates.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.templates)
}

// Root returns the directory the Store was loaded from.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

