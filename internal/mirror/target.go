package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmirror/mirrorbox/internal/utils"
)

// prepareTarget readies the local destination subtree. With clean set, any
// existing contents are irreversibly deleted before the directory is
// recreated; otherwise the create is idempotent and existing files are left
// untouched.
func prepareTarget(dir string, clean bool) error {
	if clean && utils.DirExists(dir) {
		if err := os.RemoveAll(dir); err != nil {
			return &TargetPrepError{Dir: dir, Err: err}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &TargetPrepError{Dir: dir, Err: err}
	}
	return nil
}

// safeJoin resolves relKey under dir and rejects any key whose cleaned path
// would land outside the target subtree. Keys come from an external store and
// are untrusted.
func safeJoin(dir, relKey string) (string, error) {
	if relKey == "" {
		return "", fmt.Errorf("empty relative key")
	}
	if strings.HasPrefix(relKey, "/") {
		return "", fmt.Errorf("absolute key %q", relKey)
	}

	cleaned := filepath.Clean(filepath.FromSlash(relKey))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes target dir", relKey)
	}

	joined := filepath.Join(dir, cleaned)

	rel, err := filepath.Rel(dir, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes target dir", relKey)
	}
	return joined, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// and a rename, so a reader never observes a partially written file. Any
// existing file at path is overwritten.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".mirrorbox-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
