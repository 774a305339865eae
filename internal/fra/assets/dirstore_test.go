package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDirStore(t *testing.T, files ...string) *DirStore {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		full := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("\x89PNG\r\n\x1a\n"+f), 0o644))
	}
	return NewDirStore(root)
}

func TestDirStore_WorksWithResolver(t *testing.T) {
	ds := createTestDirStore(t,
		"fra/test-instance-123/photos/fire-exits/b.png",
		"fra/test-instance-123/photos/fire-exits/a.png",
		"fra/test-instance-123/photos/extinguishers/x.png",
		"fra/other/photos/fire-exits/z.png",
	)
	r := createTestResolver(t, ds, DefaultConfig())

	got := r.Resolve(context.Background(), "test-instance-123")

	require.Len(t, got.Assets, 2)
	require.Len(t, got.Assets["fire-exits"], 2)
	assert.Equal(t, []string{"extinguishers", "fire-exits"}, got.Order)
	assert.Equal(t, "fra/test-instance-123/photos/fire-exits/a.png", got.Assets["fire-exits"][0].Path)
	assert.True(t, strings.HasPrefix(got.Assets["fire-exits"][0].URL, "file://"))

	photos := r.Fetch(context.Background(), got.Assets)
	require.Len(t, photos["extinguishers"], 1)
	assert.Equal(t, "image/png", photos["extinguishers"][0].ContentType)
}

func TestDirStore_MissingPrefixIsEmpty(t *testing.T) {
	ds := createTestDirStore(t)

	entries, err := ds.List(context.Background(), "fra/nobody/photos/", 50)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirStore_RejectsTraversal(t *testing.T) {
	ds := createTestDirStore(t)

	_, _, err := ds.Get(context.Background(), "fra/x/photos/../../../etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.ErrorIs(t, ds.Remove(context.Background(), "../outside"), ErrUnsafePath)
}

func TestDirStore_PutAndRemove(t *testing.T) {
	ds := createTestDirStore(t)
	ctx := context.Background()

	require.NoError(t, ds.Put(ctx, "fra/i1/documents/FRA-i1-b1.docx", []byte("PK"), ""))
	data, _, err := ds.Get(ctx, "fra/i1/documents/FRA-i1-b1.docx")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), data)

	require.NoError(t, ds.Remove(ctx, "fra/i1/documents/FRA-i1-b1.docx"))
	_, _, err = ds.Get(ctx, "fra/i1/documents/FRA-i1-b1.docx")
	assert.Error(t, err)
	assert.NoError(t, ds.Remove(ctx, "fra/i1/documents/FRA-i1-b1.docx"))
}
