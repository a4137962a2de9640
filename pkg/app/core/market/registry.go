package market

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrEmptySymbol   = errors.New("symbol cannot be empty")
	ErrNotRegistered = errors.New("symbol not registered")
)

// Registry answers whether a symbol may be traded right now.
// Implementations may change between calls; callers must not cache answers.
type Registry interface {
	IsTradable(symbol string) bool
}

// MemoryRegistry is an in-process allow-list, safe for concurrent use.
type MemoryRegistry struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
}

// NewMemoryRegistry creates a registry holding the given symbols
func NewMemoryRegistry(symbols ...string) *MemoryRegistry {
	mr := &MemoryRegistry{
		symbols: make(map[string]struct{}, len(symbols)),
	}
	for _, s := range symbols {
		_ = mr.Register(s)
	}
	return mr
}

// Register adds a symbol. Registering an existing symbol is a no-op.
func (mr *MemoryRegistry) Register(symbol string) error {
	symbol, err := normalize(symbol)
	if err != nil {
		return err
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.symbols[symbol] = struct{}{}
	return nil
}

// Unregister removes a symbol
// Returns error if the symbol was not registered
func (mr *MemoryRegistry) Unregister(symbol string) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, exists := mr.symbols[symbol]; !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, symbol)
	}
	delete(mr.symbols, symbol)
	return nil
}

func (mr *MemoryRegistry) IsTradable(symbol string) bool {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	_, exists := mr.symbols[symbol]
	return exists
}

// List returns the registered symbols, sorted
func (mr *MemoryRegistry) List() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	out := make([]string, 0, len(mr.symbols))
	for s := range mr.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of registered symbols
func (mr *MemoryRegistry) Count() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.symbols)
}

// normalize trims a ticker and rejects blanks. Case is preserved: "xyz"
// and "XYZ" are different symbols.
func normalize(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", ErrEmptySymbol
	}
	return symbol, nil
}
