package api

import (
	"net/http"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"dayplan/plan"
)

// TriggerSync handles POST /api/v1/sync
// Asks the feed for a full snapshot now. Returns 503 Service Unavailable
// while the feed connection is down; the post-open resync covers the gap.
func TriggerSync(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}

	if err := sess.Sync(); err != nil {
		return writeError(ctx, http.StatusServiceUnavailable, "feed is not connected")
	}

	logger.Info("Manual resync requested")
	return writeSuccess(ctx, http.StatusOK, sess.Status())
}

// CompleteTask handles POST /api/v1/tasks/:id/complete
// Applies the completion locally and notifies the feed. Already-complete
// tasks succeed without effect; unknown ids are a 404.
func CompleteTask(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}

	id := ctx.Request().Param("id")
	if id == "" {
		return writeError(ctx, http.StatusBadRequest, "task id is required")
	}

	if err := sess.MarkTaskComplete(id); err != nil {
		return writeError(ctx, http.StatusNotFound, "task not found: "+id)
	}

	doc, _ := sess.Snapshot().FindDocument(plan.KindTask, id)
	logger.Info("Task completed", "task_id", id)
	return writeSuccess(ctx, http.StatusOK, doc)
}
