package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmirror/mirrorbox/internal/utils"
)

const latestCacheSize = 128

// Service wraps the sync engine for concurrent callers. It serializes runs
// per prefix with a file lock, journals every run, and keeps the latest run
// per prefix in an LRU cache for cheap status queries.
type Service struct {
	engine   *Engine
	journal  *Journal
	locksDir string
	latest   *lru.Cache[string, *SyncRun]
}

func NewService(engine *Engine, journal *Journal, config *Config) (*Service, error) {
	latest, err := lru.New[string, *SyncRun](latestCacheSize)
	if err != nil {
		return nil, err
	}

	return &Service{
		engine:   engine,
		journal:  journal,
		locksDir: filepath.Join(config.MountRoot, ".mirrorbox", "locks"),
		latest:   latest,
	}, nil
}

// Sync validates the request, takes the per-prefix lock and runs the engine.
// Every completed run (success, failure or cancel) is journaled; a prefix
// with a run already in flight yields ErrSyncInFlight.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	// Validation happens before the lock so malformed requests never touch
	// the filesystem or the journal.
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	lock, err := s.acquireLock(&req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("release prefix lock", "path", lock.Path(), "error", err)
		}
	}()

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	slog.Info("sync run", "run", runID, "owner", req.Owner, "repo", req.Repo, "branch", req.Branch, "clean", req.Clean)

	result, err := s.engine.Sync(ctx, req)
	finishedAt := time.Now().UTC()

	run := &SyncRun{
		ID:         runID,
		Owner:      req.Owner,
		Repo:       req.Repo,
		Branch:     req.Branch,
		Clean:      req.Clean,
		StartedAt:  startedAt.Format(time.RFC3339),
		FinishedAt: finishedAt.Format(time.RFC3339),
	}

	switch {
	case err != nil:
		run.Status = RunFailed
		run.Error = err.Error()
	case result.Cancelled:
		run.Status = RunCancelled
		run.FilesSynced = result.FilesSynced
		run.TotalSizeBytes = result.TotalSizeBytes
		run.SkippedCount = len(result.Skipped)
		run.TargetDir = result.TargetDir
	default:
		run.Status = RunSuccess
		run.FilesSynced = result.FilesSynced
		run.TotalSizeBytes = result.TotalSizeBytes
		run.SkippedCount = len(result.Skipped)
		run.TargetDir = result.TargetDir
	}

	if jerr := s.journal.Record(run); jerr != nil {
		slog.Error("journal sync run", "run", runID, "error", jerr)
	}
	s.latest.Add(req.Prefix(), run)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Latest returns the most recent run for a prefix, preferring the in-memory
// cache over the journal.
func (s *Service) Latest(owner, repo, branch string) (*SyncRun, bool) {
	req := SyncRequest{Owner: owner, Repo: repo, Branch: branch}
	req, err := req.Normalize()
	if err != nil {
		return nil, false
	}

	if run, ok := s.latest.Get(req.Prefix()); ok {
		return run, true
	}
	return s.journal.Latest(req.Owner, req.Repo, req.Branch)
}

// History returns up to limit most recent journaled runs for a prefix.
func (s *Service) History(owner, repo, branch string, limit int) ([]*SyncRun, error) {
	req := SyncRequest{Owner: owner, Repo: repo, Branch: branch}
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	return s.journal.History(req.Owner, req.Repo, req.Branch, limit)
}

// acquireLock takes the non-blocking per-prefix file lock. The lock file
// lives outside the target subtree so clean runs cannot delete it.
func (s *Service) acquireLock(req *SyncRequest) (*flock.Flock, error) {
	if err := utils.EnsureDir(s.locksDir); err != nil {
		return nil, &TargetPrepError{Dir: s.locksDir, Err: err}
	}

	name := fmt.Sprintf("%s~%s~%s.lock", req.Owner, req.Repo, req.Branch)
	lock := flock.New(filepath.Join(s.locksDir, name))

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire prefix lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInFlight
	}
	return lock, nil
}
