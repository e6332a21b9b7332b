package mirror

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmirror/mirrorbox/internal/db"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	sqlDB, err := db.NewSqliteDB(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	journal, err := NewJournal(sqlDB)
	require.NoError(t, err)
	return journal
}

func testRun(i int) *SyncRun {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	return &SyncRun{
		ID:             fmt.Sprintf("run-%04d", i),
		Owner:          "acme",
		Repo:           "widgets",
		Branch:         "main",
		Status:         RunSuccess,
		FilesSynced:    int64(i),
		TotalSizeBytes: int64(i * 1024),
		TargetDir:      "/mnt/mirror/acme/widgets/main",
		StartedAt:      started.Format(time.RFC3339),
		FinishedAt:     started.Add(30 * time.Second).Format(time.RFC3339),
	}
}

func TestJournalRecordAndLatest(t *testing.T) {
	journal := newTestJournal(t)

	_, ok := journal.Latest("acme", "widgets", "main")
	assert.False(t, ok)

	for i := range 3 {
		require.NoError(t, journal.Record(testRun(i)))
	}

	latest, ok := journal.Latest("acme", "widgets", "main")
	require.True(t, ok)
	assert.Equal(t, "run-0002", latest.ID)
	assert.Equal(t, int64(2), latest.FilesSynced)

	// other prefixes are independent
	_, ok = journal.Latest("acme", "widgets", "develop")
	assert.False(t, ok)
}

func TestJournalHistory(t *testing.T) {
	journal := newTestJournal(t)

	for i := range 5 {
		require.NoError(t, journal.Record(testRun(i)))
	}

	runs, err := journal.History("acme", "widgets", "main", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// newest first
	assert.Equal(t, "run-0004", runs[0].ID)
	assert.Equal(t, "run-0003", runs[1].ID)
	assert.Equal(t, "run-0002", runs[2].ID)
}

func TestJournalRecordsFailures(t *testing.T) {
	journal := newTestJournal(t)

	run := testRun(0)
	run.Status = RunFailed
	run.Error = "list objects under \"acme/widgets/main/\": access denied"
	require.NoError(t, journal.Record(run))

	latest, ok := journal.Latest("acme", "widgets", "main")
	require.True(t, ok)
	assert.Equal(t, RunFailed, latest.Status)
	assert.Contains(t, latest.Error, "access denied")
}
