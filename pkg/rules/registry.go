package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"
)

// Registry manages the rule catalogs of a rules directory and keeps them
// current as files change. Each YAML file in the directory contributes one
// catalog; Snapshot merges them in file-name order so evaluation sees a
// deterministic rule sequence.
type Registry struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog // keyed by file base name
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, file string)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		catalogs: make(map[string]*Catalog),
	}
}

// NewRegistryWithDirectory creates a registry and loads every catalog file
// from the directory.
func NewRegistryWithDirectory(dir string) (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot merges the loaded catalogs into one read-only catalog. Callers
// hold the snapshot for the duration of a run; later reloads never mutate
// a handed-out snapshot.
func (r *Registry) Snapshot() *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.catalogs))
	for name := range r.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := &Catalog{Name: filepath.Base(r.dir)}
	for _, name := range names {
		merged.Rules = append(merged.Rules, r.catalogs[name].Rules...)
	}
	return merged
}

// Count returns the number of rules across all loaded catalogs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, catalog := range r.catalogs {
		n += len(catalog.Rules)
	}
	return n
}

// LoadDirectory loads all YAML catalog files from a directory.
func (r *Registry) LoadDirectory(dir string) error {
	r.dir = dir

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing to load yet; Watch may still be pointed elsewhere.
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, name)); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading catalogs: %s", strings.Join(loadErrors, "; "))
	}
	return nil
}

// LoadFile loads or replaces a single catalog file.
func (r *Registry) LoadFile(path string) error {
	catalog, err := LoadFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[filepath.Base(path)] = catalog
	return nil
}

// Remove drops the catalog contributed by the named file.
func (r *Registry) Remove(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.catalogs, filepath.Base(file))
}

// Reload clears the registry and reloads from the configured directory.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}

	r.mu.Lock()
	r.catalogs = make(map[string]*Catalog)
	r.mu.Unlock()

	return r.LoadDirectory(r.dir)
}

// SetOnChange sets a callback invoked after the registry reacts to a file
// system event.
func (r *Registry) SetOnChange(fn func(event string, file string)) {
	r.onChange = fn
}

// Watch starts watching the rules directory for changes.
func (r *Registry) Watch() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})

	go r.watchLoop()

	if err := watcher.Add(r.dir); err != nil {
		r.watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	return nil
}

// watchLoop handles file system events until StopWatch.
func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.stopChan:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")

			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")

			case event.Op&fsnotify.Remove == fsnotify.Remove:
				r.handleFileRemove(event.Name)

			case event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "rules watcher: %v\n", err)
		}
	}
}

func (r *Registry) handleFileChange(path string, eventType string) {
	if err := r.LoadFile(path); err != nil {
		// A half-written or malformed file keeps the previous catalog.
		fmt.Fprintf(os.Stderr, "rules watcher: reloading %s: %v\n", path, err)
		return
	}

	if r.onChange != nil {
		r.onChange(eventType, path)
	}
}

func (r *Registry) handleFileRemove(path string) {
	r.Remove(path)

	if r.onChange != nil {
		r.onChange("remove", path)
	}
}

// StopWatch stops watching the rules directory.
func (r *Registry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
}
