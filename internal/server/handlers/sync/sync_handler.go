package sync

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmirror/mirrorbox/internal/mirror"
)

// Syncer is the slice of the mirror service the handler consumes. Tests
// substitute a fake.
type Syncer interface {
	Sync(ctx context.Context, req mirror.SyncRequest) (*mirror.SyncResult, error)
	Latest(owner, repo, branch string) (*mirror.SyncRun, bool)
	History(owner, repo, branch string, limit int) ([]*mirror.SyncRun, error)
}

type Handler struct {
	svc Syncer
}

func New(svc Syncer) *Handler {
	return &Handler{svc: svc}
}

// Sync runs one mirror pass for the requested (owner, repo, branch).
func (h *Handler) Sync(ctx *gin.Context) {
	var req mirror.SyncRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, &ErrorResponse{
			Error: "invalid request body",
		})
		return
	}

	res, err := h.svc.Sync(ctx.Request.Context(), req)
	if err != nil {
		h.syncError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, newSyncResponse(res))
}

// Latest returns the most recent run for a prefix.
func (h *Handler) Latest(ctx *gin.Context) {
	var q prefixQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.PureJSON(http.StatusBadRequest, &ErrorResponse{Error: "invalid query"})
		return
	}

	run, ok := h.svc.Latest(q.Owner, q.Repo, q.Branch)
	if !ok {
		ctx.PureJSON(http.StatusNotFound, &ErrorResponse{Error: "no sync runs for this prefix"})
		return
	}

	ctx.PureJSON(http.StatusOK, run)
}

// History returns the journaled runs for a prefix, newest first.
func (h *Handler) History(ctx *gin.Context) {
	var q prefixQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.PureJSON(http.StatusBadRequest, &ErrorResponse{Error: "invalid query"})
		return
	}

	runs, err := h.svc.History(q.Owner, q.Repo, q.Branch, q.Limit)
	if err != nil {
		h.syncError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"runs": runs,
	})
}

func (h *Handler) syncError(ctx *gin.Context, err error) {
	var validationErr *mirror.ValidationError

	switch {
	case errors.As(err, &validationErr):
		ctx.PureJSON(http.StatusBadRequest, &ErrorResponse{Error: validationErr.Error()})
	case errors.Is(err, mirror.ErrSyncInFlight):
		ctx.PureJSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
	default:
		ctx.PureJSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
	}
}
