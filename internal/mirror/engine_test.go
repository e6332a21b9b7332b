package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmirror/mirrorbox/internal/store"
)

// fakeStore is an in-memory ObjectStore with injectable failures.
type fakeStore struct {
	objects map[string][]byte

	failGet     map[string]error
	failAtPage  int // 1-based page number that fails to list, 0 for never
	listErr     error
	listCalls   atomic.Int64
	getCalls    atomic.Int64
	pagerPrefix string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		failGet: make(map[string]error),
	}
}

func (f *fakeStore) put(key string, data []byte) {
	f.objects[key] = data
}

func (f *fakeStore) ListPager(prefix string, pageSize int32) store.ObjectPager {
	f.pagerPrefix = prefix
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var pages [][]*store.ObjectInfo
	for start := 0; start < len(keys); start += int(pageSize) {
		end := min(start+int(pageSize), len(keys))
		page := make([]*store.ObjectInfo, 0, end-start)
		for _, k := range keys[start:end] {
			page = append(page, &store.ObjectInfo{
				Key:  k,
				Size: int64(len(f.objects[k])),
			})
		}
		pages = append(pages, page)
	}

	return &fakePager{store: f, pages: pages}
}

func (f *fakeStore) GetObject(_ context.Context, key string) ([]byte, error) {
	f.getCalls.Add(1)
	if err, ok := f.failGet[key]; ok {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return data, nil
}

type fakePager struct {
	store *fakeStore
	pages [][]*store.ObjectInfo
	next  int
}

func (p *fakePager) HasMorePages() bool {
	return p.next < len(p.pages)
}

func (p *fakePager) NextPage(_ context.Context) ([]*store.ObjectInfo, error) {
	p.store.listCalls.Add(1)
	if p.store.failAtPage > 0 && p.next+1 == p.store.failAtPage {
		return nil, p.store.listErr
	}
	page := p.pages[p.next]
	p.next++
	return page, nil
}

var _ store.ObjectStore = (*fakeStore)(nil)

func newTestEngine(t *testing.T, fs *fakeStore, workers int) (*Engine, string) {
	t.Helper()
	mountRoot := t.TempDir()
	engine := NewEngine(fs, &Config{
		MountRoot: mountRoot,
		PageSize:  10,
		Workers:   workers,
	})
	return engine, mountRoot
}

func seedTree(fs *fakeStore, prefix string, n int) {
	for i := range n {
		fs.put(fmt.Sprintf("%ssrc/file_%03d.go", prefix, i), []byte(fmt.Sprintf("package f%d\n", i)))
	}
}

func TestSyncMirrorsAllObjectsAcrossPages(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 25)

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(25), res.FilesSynced)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, "acme/widgets/main/", fs.pagerPrefix)
	// 25 objects over a page size of 10 means 3 listing calls
	assert.Equal(t, int64(3), fs.listCalls.Load())

	for i := range 25 {
		path := filepath.Join(mountRoot, "acme", "widgets", "main", "src", fmt.Sprintf("file_%03d.go", i))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("package f%d\n", i), string(data))
	}

	var total int64
	for _, data := range fs.objects {
		total += int64(len(data))
	}
	assert.Equal(t, total, res.TotalSizeBytes)
}

func TestSyncDefaultsBranchToMain(t *testing.T) {
	fs := newFakeStore()
	fs.put("acme/widgets/main/README.md", []byte("# widgets"))

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.Equal(t, "main", res.Branch)
	assert.Equal(t, filepath.Join(mountRoot, "acme", "widgets", "main"), res.TargetDir)
}

func TestSyncValidationShortCircuits(t *testing.T) {
	fs := newFakeStore()
	engine, mountRoot := newTestEngine(t, fs, 1)

	_, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme"})
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "owner and repo are required", validationErr.Error())

	// no remote or filesystem calls
	assert.Zero(t, fs.listCalls.Load())
	assert.Zero(t, fs.getCalls.Load())
	entries, err := os.ReadDir(mountRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSyncSkipsDirectoryMarkers(t *testing.T) {
	fs := newFakeStore()
	fs.put("acme/widgets/main/src/", nil)
	fs.put("acme/widgets/main/src/main.go", []byte("package main\n"))

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.FilesSynced)
	assert.Empty(t, res.Skipped)

	// the marker never becomes a file; src exists only as a directory
	info, err := os.Stat(filepath.Join(mountRoot, "acme", "widgets", "main", "src"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(mountRoot, "acme", "widgets", "main", "src", "main.go"))
}

func TestSyncFailureIsolation(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 10)
	badKey := "acme/widgets/main/src/file_004.go"
	fs.failGet[badKey] = fmt.Errorf("connection reset")

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(9), res.FilesSynced)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, badKey, res.Skipped[0].Key)
	assert.Contains(t, res.Skipped[0].Error, "connection reset")
	assert.NoFileExists(t, filepath.Join(mountRoot, "acme", "widgets", "main", "src", "file_004.go"))
}

func TestSyncListingFailureIsFatal(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 25)
	fs.failAtPage = 2
	fs.listErr = fmt.Errorf("access denied")

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.Error(t, err)
	assert.Nil(t, res)

	var listingErr *ListingError
	require.ErrorAs(t, err, &listingErr)
	assert.Equal(t, "acme/widgets/main/", listingErr.Prefix)

	// objects materialized from the first page remain on disk, no rollback
	entries, err := os.ReadDir(filepath.Join(mountRoot, "acme", "widgets", "main", "src"))
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestSyncCleanRebuild(t *testing.T) {
	fs := newFakeStore()
	fs.put("acme/widgets/main/keep.txt", []byte("keep"))

	engine, mountRoot := newTestEngine(t, fs, 1)
	targetDir := filepath.Join(mountRoot, "acme", "widgets", "main")

	stale := filepath.Join(targetDir, "stale.txt")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("gone"), 0o644))

	// incremental run leaves extra local files alone
	_, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)
	assert.FileExists(t, stale)

	// clean run leaves an exact mirror
	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets", Clean: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(targetDir, "keep.txt"))
}

func TestSyncIdempotent(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 12)

	engine, mountRoot := newTestEngine(t, fs, 1)
	req := SyncRequest{Owner: "acme", Repo: "widgets"}

	first, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.FilesSynced, second.FilesSynced)
	assert.Equal(t, first.TotalSizeBytes, second.TotalSizeBytes)

	for i := range 12 {
		path := filepath.Join(mountRoot, "acme", "widgets", "main", "src", fmt.Sprintf("file_%03d.go", i))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("package f%d\n", i), string(data))
	}
}

func TestSyncRejectsTraversalKeys(t *testing.T) {
	fs := newFakeStore()
	fs.put("acme/widgets/main/ok.txt", []byte("fine"))
	fs.put("acme/widgets/main/../../../evil.txt", []byte("nope"))

	engine, mountRoot := newTestEngine(t, fs, 1)

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(1), res.FilesSynced)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "acme/widgets/main/../../../evil.txt", res.Skipped[0].Key)

	assert.NoFileExists(t, filepath.Join(mountRoot, "evil.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(mountRoot), "evil.txt"))
}

func TestSyncConcurrentWorkersExactTotals(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 120)

	engine, _ := newTestEngine(t, fs, 8)

	var progressCalls atomic.Int64
	engine.OnProgress(func(_ SyncRequest, _ int64) {
		progressCalls.Add(1)
	})

	res, err := engine.Sync(context.Background(), SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.Equal(t, int64(120), res.FilesSynced)
	var total int64
	for _, data := range fs.objects {
		total += int64(len(data))
	}
	assert.Equal(t, total, res.TotalSizeBytes)
	// 120 files with a progress signal every 100
	assert.Equal(t, int64(1), progressCalls.Load())
}

func TestSyncCancelled(t *testing.T) {
	fs := newFakeStore()
	seedTree(fs, "acme/widgets/main/", 25)

	engine, _ := newTestEngine(t, fs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := engine.Sync(ctx, SyncRequest{Owner: "acme", Repo: "widgets"})
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)
	assert.Zero(t, res.FilesSynced)
}
