package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fra-engine/internal/models"
)

// DirStore is an ObjectStore over a local directory tree. Object paths are
// slash-separated and relative to Root. Signed URLs are file:// URLs.
type DirStore struct {
	Root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

// ErrUnsafePath rejects object paths that leave the root.
var ErrUnsafePath = errors.New("unsafe object path")

func (d *DirStore) resolve(p string) (string, error) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, p)
		}
	}
	return filepath.Join(d.Root, filepath.FromSlash(path.Clean("/"+p))), nil
}

func (d *DirStore) List(ctx context.Context, prefix string, limit int) ([]models.ObjectEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := d.resolve(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	base := strings.TrimSuffix(prefix, "/") + "/"
	var out []models.ObjectEntry
	for _, e := range entries {
		out = append(out, models.ObjectEntry{Name: e.Name(), Path: base + e.Name(), IsPrefix: e.IsDir()})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *DirStore) SignedURL(_ context.Context, p string, _ time.Duration) (string, error) {
	file, err := d.resolve(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (d *DirStore) Remove(_ context.Context, paths ...string) error {
	for _, p := range paths {
		file, err := d.resolve(p)
		if err != nil {
			return err
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (d *DirStore) Get(_ context.Context, p string) ([]byte, string, error) {
	file, err := d.resolve(p)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, "", err
	}
	return data, mime.TypeByExtension(path.Ext(p)), nil
}

// Put writes body to p, creating parent directories.
func (d *DirStore) Put(_ context.Context, p string, body []byte, _ string) error {
	file, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, body, 0o644)
}
