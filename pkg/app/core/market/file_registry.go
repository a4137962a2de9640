package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// allowList is the on-disk layout shared with other tools editing the file.
type allowList struct {
	ValidStocks []string `json:"valid_stocks"`
}

// FileRegistry reads the allow-list from a JSON file on every lookup, so
// edits by other processes take effect on the next order.
type FileRegistry struct {
	path string
	log  *zap.SugaredLogger

	// serializes writers inside this process
	mu sync.Mutex
}

func NewFileRegistry(path string, log *zap.SugaredLogger) *FileRegistry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FileRegistry{path: path, log: log}
}

func (r *FileRegistry) Path() string { return r.path }

// IsTradable reports false when the file cannot be read or parsed.
func (r *FileRegistry) IsTradable(symbol string) bool {
	symbols, err := r.Symbols()
	if err != nil {
		r.log.Warnw("symbol_registry_read_failed", "path", r.path, "err", err)
		return false
	}
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Symbols returns the current allow-list in file order.
func (r *FileRegistry) Symbols() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list: %w", err)
	}
	var al allowList
	if err := json.Unmarshal(data, &al); err != nil {
		return nil, fmt.Errorf("parse allow-list %s: %w", r.path, err)
	}
	return al.ValidStocks, nil
}

// EnsureFile writes defaults when the allow-list file does not exist yet.
func (r *FileRegistry) EnsureFile(defaults []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat allow-list: %w", err)
	}
	r.log.Infow("symbol_registry_created", "path", r.path, "symbols", defaults)
	return r.write(defaults)
}

// Add appends symbol to the allow-list. Adding a listed symbol is a no-op.
func (r *FileRegistry) Add(symbol string) error {
	symbol, err := normalize(symbol)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, err := r.Symbols()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, s := range symbols {
		if s == symbol {
			return nil
		}
	}
	return r.write(append(symbols, symbol))
}

// Remove drops symbol from the allow-list.
func (r *FileRegistry) Remove(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, err := r.Symbols()
	if err != nil {
		return err
	}
	kept := symbols[:0]
	found := false
	for _, s := range symbols {
		if s == symbol {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotRegistered, symbol)
	}
	return r.write(kept)
}

// write replaces the file atomically so concurrent readers never see a
// partial document.
func (r *FileRegistry) write(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.MarshalIndent(allowList{ValidStocks: symbols}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode allow-list: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create allow-list dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp allow-list: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write allow-list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close allow-list: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace allow-list: %w", err)
	}
	return nil
}

// Watch calls onChange with the sorted allow-list whenever the file is
// written, created or replaced, until ctx is done. The parent directory is
// watched because editors and Add replace the file by rename.
func (r *FileRegistry) Watch(ctx context.Context, onChange func(symbols []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", r.path, err)
	}

	r.log.Infow("symbol_registry_watching", "path", r.path)
	go r.watch(ctx, watcher, onChange)
	return nil
}

func (r *FileRegistry) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func([]string)) {
	defer watcher.Close()
	target := filepath.Clean(r.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Rename) {
				// vi and friends rename a temp file over the original
				time.Sleep(50 * time.Millisecond)
			}
			symbols, err := r.Symbols()
			if err != nil {
				r.log.Warnw("symbol_registry_reload_failed", "path", r.path, "err", err)
				continue
			}
			sorted := append([]string(nil), symbols...)
			sort.Strings(sorted)
			r.log.Infow("symbol_registry_changed", "path", r.path, "symbols", sorted)
			onChange(sorted)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.Errorw("symbol_registry_watch_error", "err", err)

		case <-ctx.Done():
			return
		}
	}
}

var (
	_ Registry = (*FileRegistry)(nil)
	_ Registry = (*MemoryRegistry)(nil)
)
