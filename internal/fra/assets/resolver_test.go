package assets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failSign  map[string]bool
	failList  map[string]bool
	block     map[string]bool
	removed   []string
	removeErr error
	// dirOrder, when set, fixes the order placeholder prefixes are listed in.
	dirOrder []string
}

func newMemStore(keys ...string) *memStore {
	s := &memStore{
		objects:  map[string][]byte{},
		failSign: map[string]bool{},
		failList: map[string]bool{},
		block:    map[string]bool{},
	}
	for _, k := range keys {
		s.objects[k] = []byte("\x89PNG\r\n\x1a\n" + k)
	}
	return s
}

func (s *memStore) List(ctx context.Context, prefix string, limit int) ([]models.ObjectEntry, error) {
	s.mu.Lock()
	blocked, failed := s.block[prefix], s.failList[prefix]
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failed {
		return nil, errors.New("list failed")
	}

	sort.Strings(keys)
	var dirs, files []models.ObjectEntry
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name := rest[:idx]
			if !seen[name] {
				seen[name] = true
				dirs = append(dirs, models.ObjectEntry{Name: name, Path: prefix + name, IsPrefix: true})
			}
			continue
		}
		files = append(files, models.ObjectEntry{Name: rest, Path: k})
	}
	if len(s.dirOrder) > 0 {
		rank := map[string]int{}
		for i, name := range s.dirOrder {
			rank[name] = i
		}
		sort.SliceStable(dirs, func(i, j int) bool { return rank[dirs[i].Name] < rank[dirs[j].Name] })
	}
	out := append(dirs, files...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSign[path] {
		return "", errors.New("sign failed")
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

func (s *memStore) Remove(_ context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, paths...)
	return nil
}

func (s *memStore) Get(_ context.Context, path string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return data, "", nil
}

// ==========================
// Test Helper Functions
// ==========================

func createTestResolver(t *testing.T, store ObjectStore, cfg Config) *Resolver {
	if cfg.Namespace == "" {
		cfg.Namespace = "fra"
	}
	return NewResolver(store, cfg, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestResolver_Resolve_PreservesListingOrder(t *testing.T) {
	store := newMemStore(
		"fra/inst-1/photos/exits/b.jpg",
		"fra/inst-1/photos/exits/a.jpg",
		"fra/inst-1/photos/exits/c.jpg",
		"fra/inst-1/photos/panel/panel.png",
		"fra/inst-2/photos/exits/other.jpg",
	)
	r := createTestResolver(t, store, Config{})

	got := r.Resolve(context.Background(), "inst-1").Assets

	require.Len(t, got, 2)
	require.Len(t, got["exits"], 3)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, []string{got["exits"][0].Filename, got["exits"][1].Filename, got["exits"][2].Filename})
	assert.Equal(t, "fra/inst-1/photos/panel/panel.png", got["panel"][0].Path)
	assert.Contains(t, got["panel"][0].URL, "ttl=600")
}

func TestResolver_Resolve_KeepsPlaceholderListingOrder(t *testing.T) {
	store := newMemStore(
		"fra/inst-1/photos/alarm-panel/a.jpg",
		"fra/inst-1/photos/zone-exit/z.jpg",
		"fra/inst-1/photos/mid-store/m.jpg",
		"fra/inst-1/photos/blank/x.jpg",
	)
	store.dirOrder = []string{"zone-exit", "blank", "alarm-panel", "mid-store"}
	store.failSign["fra/inst-1/photos/blank/x.jpg"] = true
	r := createTestResolver(t, store, Config{})

	got := r.Resolve(context.Background(), "inst-1")

	assert.Equal(t, []string{"zone-exit", "alarm-panel", "mid-store"}, got.Order)
	assert.Equal(t, got.Order, got.Placeholders())
	assert.NotContains(t, got.Assets, "blank")
}

func TestResolver_Resolve_EmptyIsNotAnError(t *testing.T) {
	r := createTestResolver(t, newMemStore(), Config{})
	got := r.Resolve(context.Background(), "inst-1")
	assert.NotNil(t, got.Assets)
	assert.Empty(t, got.Assets)
	assert.Empty(t, got.Order)
}

func TestResolver_Resolve_FailuresAreIsolated(t *testing.T) {
	store := newMemStore(
		"fra/inst-1/photos/exits/a.jpg",
		"fra/inst-1/photos/exits/b.jpg",
		"fra/inst-1/photos/broken/x.jpg",
	)
	store.failSign["fra/inst-1/photos/exits/a.jpg"] = true
	store.failList["fra/inst-1/photos/broken/"] = true
	r := createTestResolver(t, store, Config{})

	got := r.Resolve(context.Background(), "inst-1").Assets

	require.Len(t, got, 1)
	require.Len(t, got["exits"], 1)
	assert.Equal(t, "b.jpg", got["exits"][0].Filename)
}

func TestResolver_Resolve_TopLevelListingFailure(t *testing.T) {
	store := newMemStore("fra/inst-1/photos/exits/a.jpg")
	store.failList["fra/inst-1/photos/"] = true
	r := createTestResolver(t, store, Config{})

	assert.Empty(t, r.Resolve(context.Background(), "inst-1").Assets)
}

func TestResolver_Resolve_Bounds(t *testing.T) {
	var keys []string
	for p := 0; p < 4; p++ {
		for f := 0; f < 5; f++ {
			keys = append(keys, fmt.Sprintf("fra/inst-1/photos/p%d/f%02d.jpg", p, f))
		}
	}
	r := createTestResolver(t, newMemStore(keys...), Config{MaxPlaceholders: 3, MaxFilesPerPlaceholder: 2})

	got := r.Resolve(context.Background(), "inst-1").Assets

	assert.Len(t, got, 3)
	for _, assets := range got {
		assert.Len(t, assets, 2)
	}
}

func TestResolver_Resolve_BudgetExhaustion(t *testing.T) {
	store := newMemStore(
		"fra/inst-1/photos/fast/a.jpg",
		"fra/inst-1/photos/stalled/b.jpg",
	)
	store.block["fra/inst-1/photos/stalled/"] = true
	r := createTestResolver(t, store, Config{Budget: 100 * time.Millisecond, CallTimeout: 5 * time.Second})

	start := time.Now()
	got := r.Resolve(context.Background(), "inst-1").Assets

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, got["fast"], 1)
	assert.NotContains(t, got, "stalled")
}

func TestResolver_Fetch(t *testing.T) {
	store := newMemStore(
		"fra/inst-1/photos/exits/a.jpg",
		"fra/inst-1/photos/exits/b.jpg",
	)
	r := createTestResolver(t, store, Config{})
	assets := models.AssetMap{"exits": {
		{Path: "fra/inst-1/photos/exits/a.jpg", Filename: "a.jpg"},
		{Path: "fra/inst-1/photos/exits/missing.jpg", Filename: "missing.jpg"},
		{Path: "fra/inst-1/photos/exits/b.jpg", Filename: "b.jpg"},
	}}

	photos := r.Fetch(context.Background(), assets)

	require.Len(t, photos["exits"], 2)
	assert.Equal(t, "a.jpg", photos["exits"][0].Filename)
	assert.Equal(t, "image/png", photos["exits"][0].ContentType)
	assert.Equal(t, "b.jpg", photos["exits"][1].Filename)
}

func TestResolver_DeletePhoto_RejectsForeignPaths(t *testing.T) {
	paths := []string{
		"",
		"fra/inst-2/photos/exits/a.jpg",
		"fra/inst-1/documents/FRA-inst-1.docx",
		"fra/inst-1/photos/",
		"fra/inst-1/photos/../../inst-2/photos/exits/a.jpg",
		"fra/inst-1/photos/exits//a.jpg",
		"other/inst-1/photos/exits/a.jpg",
		"fra/inst-10/photos/exits/a.jpg",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			store := newMemStore()
			r := createTestResolver(t, store, Config{})

			err := r.DeletePhoto(context.Background(), "inst-1", p)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidPath)
			assert.Empty(t, store.removed, "storage must not be called")
		})
	}
}

func TestResolver_DeletePhoto(t *testing.T) {
	store := newMemStore("fra/inst-1/photos/exits/a.jpg")
	r := createTestResolver(t, store, Config{})

	require.NoError(t, r.DeletePhoto(context.Background(), "inst-1", "fra/inst-1/photos/exits/a.jpg"))
	assert.Equal(t, []string{"fra/inst-1/photos/exits/a.jpg"}, store.removed)

	store.removeErr = errors.New("access denied")
	err := r.DeletePhoto(context.Background(), "inst-1", "fra/inst-1/photos/exits/a.jpg")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStorageError, apperrors.FromError(err).Code)
}

func TestFanOut_RespectsLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	results, complete := fanOut(context.Background(), 8, 3, time.Second, func(ctx context.Context, i int, emit func(int)) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		emit(i)
		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	assert.True(t, complete)
	assert.LessOrEqual(t, peak, 3)
	for i, r := range results {
		assert.Equal(t, []int{i}, r)
	}
}
