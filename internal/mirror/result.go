package mirror

import (
	"fmt"
)

// SkippedObject records a single object that failed to fetch or write and was
// excluded from the run without aborting it.
type SkippedObject struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SyncResult is the outcome of one sync run. FilesSynced and TotalSizeBytes
// reflect exactly the set of objects successfully written, independent of
// execution order or concurrency degree.
type SyncResult struct {
	Success        bool            `json:"success"`
	Owner          string          `json:"owner"`
	Repo           string          `json:"repo"`
	Branch         string          `json:"branch"`
	FilesSynced    int64           `json:"filesSynced"`
	TotalSizeBytes int64           `json:"totalSizeBytes"`
	TargetDir      string          `json:"targetDir"`
	Skipped        []SkippedObject `json:"skipped,omitempty"`
	Cancelled      bool            `json:"cancelled,omitempty"`
}

// TotalSizeMB renders the byte total as a megabyte figure with two decimal
// places for display.
func (r *SyncResult) TotalSizeMB() string {
	return fmt.Sprintf("%.2f", float64(r.TotalSizeBytes)/(1024*1024))
}
