package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadDelete(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	ref := "reports/7/receipt.pdf"
	require.NoError(t, s.Save(ctx, ref, []byte("%PDF-1.4")))
	assert.True(t, s.Exists(ctx, ref))
	assert.FileExists(t, filepath.Join(base, "reports", "7", "receipt.pdf"))

	content, err := s.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	// overwrite replaces content
	require.NoError(t, s.Save(ctx, ref, []byte("v2")))
	content, err = s.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))

	entries, err := os.ReadDir(filepath.Join(base, "reports", "7"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, s.Delete(ctx, ref))
	assert.False(t, s.Exists(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref), "deleting twice is not an error")
}

func TestLocalFileStorage_DeleteKeepsReportDirectory(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "reports/9/a.pdf", []byte("a")))
	require.NoError(t, s.Delete(ctx, "reports/9/a.pdf"))
	assert.DirExists(t, filepath.Join(base, "reports", "9"))
}

func TestLocalFileStorage_ConcurrentSaveAndDelete(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	const n = 50
	errs := make(chan error, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- s.Save(ctx, fmt.Sprintf("reports/3/%d.pdf", i), []byte("x"))
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- s.Delete(ctx, fmt.Sprintf("reports/3/%d.pdf", (i+1)%n))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, path := range []string{"", "../outside.pdf", "reports/../../x", "/etc/passwd", "."} {
		t.Run(path, func(t *testing.T) {
			assert.Error(t, s.Save(ctx, path, []byte("x")))
			_, err := s.Read(ctx, path)
			assert.Error(t, err)
			assert.Error(t, s.Delete(ctx, path))
			assert.False(t, s.Exists(ctx, path))
		})
	}
}

func TestLocalFileStorage_ReadMissing(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	_, err := s.Read(context.Background(), "reports/1/missing.pdf")
	assert.Error(t, err)
}

func TestLocalFileStorage_List(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	files, err := s.List(ctx, "reports")
	require.NoError(t, err)
	assert.Empty(t, files, "missing prefix lists nothing")

	require.NoError(t, s.Save(ctx, "reports/1/a.pdf", []byte("a")))
	require.NoError(t, s.Save(ctx, "reports/2/b.png", []byte("bb")))
	require.NoError(t, os.WriteFile(filepath.Join(base, "reports", "2", ".upload-123"), []byte("x"), 0o644))

	files, err = s.List(ctx, "reports")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "reports/1/a.pdf", files[0].Path)
	assert.Equal(t, "reports/2/b.png", files[1].Path)
	assert.Equal(t, int64(2), files[1].Size)
	assert.False(t, files[0].ModTime.IsZero())

	_, err = s.List(ctx, "../")
	assert.Error(t, err)
}
