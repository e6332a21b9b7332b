package mirror

import (
	"path/filepath"
	"strings"
)

const DefaultBranch = "main"

// SyncRequest identifies one source tree to mirror. Owner and Repo are
// required; Branch defaults to "main". Clean wipes the local target subtree
// before repopulating it.
type SyncRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Clean  bool   `json:"clean"`
}

// Normalize validates the request and applies defaults. It is a pure
// function with no side effects.
func (r SyncRequest) Normalize() (SyncRequest, error) {
	if r.Owner == "" || r.Repo == "" {
		return SyncRequest{}, &ValidationError{Reason: "owner and repo are required"}
	}
	if r.Branch == "" {
		r.Branch = DefaultBranch
	}

	// Each field becomes one path segment of the remote prefix and the local
	// target dir, so separators or dot segments would escape the subtree.
	for _, field := range []string{r.Owner, r.Repo, r.Branch} {
		if !isPathSegment(field) {
			return SyncRequest{}, &ValidationError{Reason: "owner, repo and branch must be single path segments"}
		}
	}

	return r, nil
}

// Prefix derives the remote keyspace prefix for this request.
func (r *SyncRequest) Prefix() string {
	return r.Owner + "/" + r.Repo + "/" + r.Branch + "/"
}

// TargetDir derives the local destination subtree under mountRoot.
func (r *SyncRequest) TargetDir(mountRoot string) string {
	return filepath.Join(mountRoot, r.Owner, r.Repo, r.Branch)
}

func isPathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
