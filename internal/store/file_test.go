package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMedium_LoadMissing(t *testing.T) {
	m := NewFileMedium(filepath.Join(t.TempDir(), "db.runtime.json"))
	_, err := m.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileMedium_ReplaceLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewFileMedium(filepath.Join(dir, "db.runtime.json"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Replace(ctx, []byte(`{"services":[]}`)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db.runtime.json", entries[0].Name())
}

func TestFileMedium_ReplaceIsAllOrNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.runtime.json")
	m := NewFileMedium(path)
	ctx := context.Background()

	docA := []byte(`{"services":[` + strings.Repeat(`{"name":"a","status":"online"},`, 4000) + `{"name":"a"}]}`)
	docB := []byte(`{"services":[` + strings.Repeat(`{"name":"b","status":"offline"},`, 2000) + `{"name":"b"}]}`)
	require.NoError(t, m.Replace(ctx, docA))

	stop := make(chan struct{})
	var torn sync.Map
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := os.ReadFile(path)
				if err != nil {
					torn.Store("read error: "+err.Error(), true)
					continue
				}
				if !bytes.Equal(got, docA) && !bytes.Equal(got, docB) {
					torn.Store(len(got), true)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		doc := docA
		if i%2 == 0 {
			doc = docB
		}
		require.NoError(t, m.Replace(ctx, doc))
	}
	close(stop)
	wg.Wait()

	count := 0
	torn.Range(func(_, _ any) bool { count++; return true })
	assert.Zero(t, count, "reader observed a partial document")
}

func TestResolveWorkingPath(t *testing.T) {
	tmp := t.TempDir()
	cwd := t.TempDir()

	assert.Equal(t, filepath.Join(tmp, "db.runtime.json"), ResolveWorkingPath(tmp, cwd, "db.runtime.json"))
	assert.Equal(t, filepath.Join(cwd, "db.runtime.json"),
		ResolveWorkingPath(filepath.Join(tmp, "does-not-exist"), cwd, "db.runtime.json"))
	assert.Equal(t, filepath.Join(cwd, "db.runtime.json"), ResolveWorkingPath("", cwd, "db.runtime.json"))
}
