package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/openmirror/mirrorbox/internal/store"
	"github.com/openmirror/mirrorbox/internal/utils"
)

// progressInterval is the number of successfully materialized objects between
// progress callbacks.
const progressInterval = 100

type Config struct {
	// MountRoot is the shared filesystem mount that target subtrees live under.
	MountRoot string `mapstructure:"mount_root"`

	// PageSize bounds each remote listing call. Zero means the store default.
	PageSize int32 `mapstructure:"page_size"`

	// Workers is the number of simultaneous object fetch/write pairs.
	// Zero or negative means sequential.
	Workers int `mapstructure:"workers"`
}

func (c *Config) Validate() error {
	if c.MountRoot == "" {
		return fmt.Errorf("mount_root required")
	}
	return nil
}

// ProgressFunc observes sync progress. It is called every progressInterval
// successfully materialized objects with the count so far.
type ProgressFunc func(req SyncRequest, synced int64)

// Engine mirrors one remote keyspace prefix onto a local directory tree per
// Sync call. The remote store is read-only from the engine's perspective; the
// target subtree is the only durable state it owns.
//
// A given (owner, repo, branch) subtree is exclusively owned by the run
// operating on it. Callers must not start concurrent runs against the same
// prefix; runs against different prefixes occupy disjoint subtrees and are
// safe to run concurrently.
type Engine struct {
	store      store.ObjectStore
	config     *Config
	onProgress ProgressFunc
}

func NewEngine(objStore store.ObjectStore, config *Config) *Engine {
	return &Engine{
		store:  objStore,
		config: config,
	}
}

// OnProgress registers the progress callback. Must be set before Sync.
func (e *Engine) OnProgress(fn ProgressFunc) {
	e.onProgress = fn
}

// Sync mirrors the keyspace under the request's prefix onto the local target
// subtree. A fetch or write failure for a single object is skipped and
// reported in the result; validation, target preparation and listing failures
// abort the whole run with a typed error.
//
// Cancelling ctx stops new listing and fetch calls; the partial result is
// returned with Cancelled set.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	prefix := req.Prefix()
	targetDir := req.TargetDir(e.config.MountRoot)

	slog.Info("sync start", "prefix", prefix, "target", targetDir, "clean", req.Clean)

	if err := prepareTarget(targetDir, req.Clean); err != nil {
		return nil, err
	}

	var (
		files      atomic.Int64
		sizeBytes  atomic.Int64
		skippedMu  sync.Mutex
		skipped    []SkippedObject
		listingErr error
	)

	skip := func(key string, err error) {
		slog.Warn("sync skip object", "key", key, "error", err)
		skippedMu.Lock()
		skipped = append(skipped, SkippedObject{Key: key, Error: err.Error()})
		skippedMu.Unlock()
	}

	workers := e.config.Workers
	if workers <= 0 {
		workers = 1
	}

	// Per-object errors are recorded as skips, never returned, so the group
	// only propagates parent cancellation.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	pager := e.store.ListPager(prefix, e.config.PageSize)

pages:
	for pager.HasMorePages() {
		if ctx.Err() != nil {
			break
		}

		page, err := pager.NextPage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			listingErr = &ListingError{Prefix: prefix, Err: err}
			break
		}

		for _, obj := range page {
			if obj.IsDirMarker() {
				continue
			}
			if ctx.Err() != nil {
				break pages
			}

			g.Go(func() error {
				e.materialize(gctx, req, obj, prefix, targetDir, &files, &sizeBytes, skip)
				return nil
			})
		}
	}

	g.Wait()

	if listingErr != nil {
		return nil, listingErr
	}

	cancelled := ctx.Err() != nil
	result := &SyncResult{
		Success:        !cancelled,
		Owner:          req.Owner,
		Repo:           req.Repo,
		Branch:         req.Branch,
		FilesSynced:    files.Load(),
		TotalSizeBytes: sizeBytes.Load(),
		TargetDir:      targetDir,
		Skipped:        skipped,
		Cancelled:      cancelled,
	}

	slog.Info("sync done",
		"prefix", prefix,
		"files", result.FilesSynced,
		"size", humanize.Bytes(uint64(result.TotalSizeBytes)),
		"skipped", len(result.Skipped),
		"cancelled", result.Cancelled)

	return result, nil
}

// materialize writes one remote object to its local path, isolating any
// failure to this object alone.
func (e *Engine) materialize(
	ctx context.Context,
	req SyncRequest,
	obj *store.ObjectInfo,
	prefix string,
	targetDir string,
	files *atomic.Int64,
	sizeBytes *atomic.Int64,
	skip func(key string, err error),
) {
	relKey := strings.TrimPrefix(obj.Key, prefix)

	path, err := safeJoin(targetDir, relKey)
	if err != nil {
		skip(obj.Key, err)
		return
	}

	if err := utils.EnsureParent(path); err != nil {
		skip(obj.Key, err)
		return
	}

	data, err := e.store.GetObject(ctx, obj.Key)
	if err != nil {
		// A cancelled fetch is not an object failure.
		if ctx.Err() != nil {
			return
		}
		skip(obj.Key, err)
		return
	}

	if err := writeFileAtomic(path, data); err != nil {
		skip(obj.Key, err)
		return
	}

	sizeBytes.Add(int64(len(data)))
	n := files.Add(1)
	if n%progressInterval == 0 && e.onProgress != nil {
		e.onProgress(req, n)
	}
}
