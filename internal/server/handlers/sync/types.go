package sync

import (
	"github.com/openmirror/mirrorbox/internal/mirror"
)

// SyncResponse is the wire form of a successful run. TotalSizeMB is a
// 2-decimal megabyte figure for display.
type SyncResponse struct {
	Success     bool                   `json:"success"`
	Owner       string                 `json:"owner"`
	Repo        string                 `json:"repo"`
	Branch      string                 `json:"branch"`
	FilesSynced int64                  `json:"filesSynced"`
	TotalSizeMB string                 `json:"totalSizeMB"`
	TargetDir   string                 `json:"targetDir"`
	Skipped     []mirror.SkippedObject `json:"skipped,omitempty"`
	Cancelled   bool                   `json:"cancelled,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type prefixQuery struct {
	Owner  string `form:"owner"`
	Repo   string `form:"repo"`
	Branch string `form:"branch"`
	Limit  int    `form:"limit"`
}

func newSyncResponse(res *mirror.SyncResult) *SyncResponse {
	return &SyncResponse{
		Success:     res.Success,
		Owner:       res.Owner,
		Repo:        res.Repo,
		Branch:      res.Branch,
		FilesSynced: res.FilesSynced,
		TotalSizeMB: res.TotalSizeMB(),
		TargetDir:   res.TargetDir,
		Skipped:     res.Skipped,
		Cancelled:   res.Cancelled,
	}
}
