package mirror

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const journalSchemaSQL = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	branch TEXT NOT NULL,
	clean INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	files_synced INTEGER NOT NULL DEFAULT 0,
	total_size_bytes INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	target_dir TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_prefix ON sync_runs(owner, repo, branch, started_at);
`

type RunStatus string

const (
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// SyncRun is one journaled sync run. Timestamps are RFC3339 strings.
type SyncRun struct {
	ID             string    `db:"id" json:"id"`
	Owner          string    `db:"owner" json:"owner"`
	Repo           string    `db:"repo" json:"repo"`
	Branch         string    `db:"branch" json:"branch"`
	Clean          bool      `db:"clean" json:"clean"`
	Status         RunStatus `db:"status" json:"status"`
	FilesSynced    int64     `db:"files_synced" json:"filesSynced"`
	TotalSizeBytes int64     `db:"total_size_bytes" json:"totalSizeBytes"`
	SkippedCount   int       `db:"skipped_count" json:"skippedCount"`
	TargetDir      string    `db:"target_dir" json:"targetDir"`
	Error          string    `db:"error" json:"error,omitempty"`
	StartedAt      string    `db:"started_at" json:"startedAt"`
	FinishedAt     string    `db:"finished_at" json:"finishedAt"`
}

// Journal persists sync run history in SQLite.
type Journal struct {
	db *sqlx.DB
}

func NewJournal(db *sqlx.DB) (*Journal, error) {
	if _, err := db.Exec(journalSchemaSQL); err != nil {
		return nil, fmt.Errorf("initialize journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserts one finished run.
func (j *Journal) Record(run *SyncRun) error {
	_, err := j.db.NamedExec(
		`INSERT INTO sync_runs
			(id, owner, repo, branch, clean, status, files_synced, total_size_bytes, skipped_count, target_dir, error, started_at, finished_at)
		VALUES
			(:id, :owner, :repo, :branch, :clean, :status, :files_synced, :total_size_bytes, :skipped_count, :target_dir, :error, :started_at, :finished_at)`,
		run,
	)
	if err != nil {
		return fmt.Errorf("record sync run %s: %w", run.ID, err)
	}
	return nil
}

// Latest returns the most recent run for a prefix, if any.
func (j *Journal) Latest(owner, repo, branch string) (*SyncRun, bool) {
	var run SyncRun
	err := j.db.Get(&run,
		`SELECT * FROM sync_runs
		WHERE owner = ? AND repo = ? AND branch = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`,
		owner, repo, branch,
	)
	if err != nil {
		return nil, false
	}
	return &run, true
}

// History returns up to limit most recent runs for a prefix, newest first.
func (j *Journal) History(owner, repo, branch string, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	runs := []*SyncRun{}
	err := j.db.Select(&runs,
		`SELECT * FROM sync_runs
		WHERE owner = ? AND repo = ? AND branch = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`,
		owner, repo, branch, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sync run history: %w", err)
	}
	return runs, nil
}
