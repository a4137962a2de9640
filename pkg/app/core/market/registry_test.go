package market

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	mr := NewMemoryRegistry("XYZ", " ABC ")

	assert.True(t, mr.IsTradable("XYZ"))
	assert.True(t, mr.IsTradable("ABC"))
	assert.False(t, mr.IsTradable("xyz"))
	assert.Equal(t, []string{"ABC", "XYZ"}, mr.List())

	require.NoError(t, mr.Register("XYZ"))
	assert.Equal(t, 2, mr.Count())
	assert.Error(t, mr.Register("  "))

	require.NoError(t, mr.Unregister("ABC"))
	assert.False(t, mr.IsTradable("ABC"))
	assert.ErrorIs(t, mr.Unregister("ABC"), ErrNotRegistered)
}

func newFileRegistry(t *testing.T, body string) *FileRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valid_stocks.json")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return NewFileRegistry(path, nil)
}

func TestFileRegistry_IsTradable(t *testing.T) {
	r := newFileRegistry(t, `{"valid_stocks": ["XYZ", "ABC"]}`)

	assert.True(t, r.IsTradable("XYZ"))
	assert.True(t, r.IsTradable("ABC"))
	assert.False(t, r.IsTradable("DEF"))
}

func TestFileRegistry_SeesExternalEdits(t *testing.T) {
	r := newFileRegistry(t, `{"valid_stocks": ["XYZ"]}`)
	assert.False(t, r.IsTradable("ABC"))

	require.NoError(t, os.WriteFile(r.Path(), []byte(`{"valid_stocks": ["XYZ", "ABC"]}`), 0o644))
	assert.True(t, r.IsTradable("ABC"))
}

func TestFileRegistry_UnreadableMeansNotTradable(t *testing.T) {
	missing := newFileRegistry(t, "")
	assert.False(t, missing.IsTradable("XYZ"))

	garbage := newFileRegistry(t, `{"valid_stocks": [`)
	assert.False(t, garbage.IsTradable("XYZ"))
}

func TestFileRegistry_EnsureFile(t *testing.T) {
	r := newFileRegistry(t, "")
	require.NoError(t, r.EnsureFile([]string{"XYZ"}))

	symbols, err := r.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, symbols)

	// existing file is left alone
	require.NoError(t, r.EnsureFile([]string{"ABC"}))
	symbols, err = r.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, symbols)
}

func TestFileRegistry_AddRemove(t *testing.T) {
	r := newFileRegistry(t, "")

	require.NoError(t, r.Add("XYZ"))
	require.NoError(t, r.Add("ABC"))
	require.NoError(t, r.Add("ABC"))
	assert.Error(t, r.Add(""))

	symbols, err := r.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ", "ABC"}, symbols)

	require.NoError(t, r.Remove("XYZ"))
	assert.False(t, r.IsTradable("XYZ"))
	assert.True(t, r.IsTradable("ABC"))
	assert.ErrorIs(t, r.Remove("XYZ"), ErrNotRegistered)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(r.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileRegistry_Watch(t *testing.T) {
	r := newFileRegistry(t, `{"valid_stocks": ["XYZ"]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen [][]string
	)
	require.NoError(t, r.Watch(ctx, func(symbols []string) {
		mu.Lock()
		seen = append(seen, symbols)
		mu.Unlock()
	}))

	require.NoError(t, r.Add("ABC"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if len(s) == 2 && s[0] == "ABC" && s[1] == "XYZ" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
