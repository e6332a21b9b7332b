package store

import (
	"context"
	"strings"
	"time"
)

// ObjectInfo describes a single remote object as returned by a listing page.
type ObjectInfo struct {
	Key          string `json:"key"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// IsDirMarker reports whether the key is an empty "folder" placeholder.
// Such keys carry no content and must never be materialized as files.
func (o *ObjectInfo) IsDirMarker() bool {
	return strings.HasSuffix(o.Key, "/")
}

// ObjectStore is the read-only view of the remote object store consumed by
// the sync engine. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// ListPager returns a pager over all objects under prefix, fetching up
	// to pageSize keys per listing call.
	ListPager(prefix string, pageSize int32) ObjectPager

	// GetObject retrieves the full content of an object by its key.
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// ObjectPager walks a paginated listing one page at a time. It is not
// resumable; restart from ListPager to re-enumerate.
type ObjectPager interface {
	// HasMorePages reports whether another page is available.
	HasMorePages() bool

	// NextPage fetches the next page of object descriptors.
	NextPage(ctx context.Context) ([]*ObjectInfo, error)
}

const timeFormat = time.RFC3339
