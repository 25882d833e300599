package api

import (
	"net/http"

	"github.com/rohanthewiz/rweb"

	"dayplan/session"
)

// GetPlan handles GET /api/v1/plan
// Returns the full day aggregate in its wire JSON form.
func GetPlan(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}
	return writeSuccess(ctx, http.StatusOK, sess.Snapshot())
}

// GetPlanFingerprint handles GET /api/v1/plan/fingerprint
// Returns just the fingerprint, for cheap freshness polling.
func GetPlanFingerprint(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}
	return writeSuccess(ctx, http.StatusOK, map[string]string{
		"fingerprint": sess.Fingerprint(),
	})
}

// GetStatus handles GET /api/v1/status
// Returns the session health view: connectivity, counters, entity counts.
func GetStatus(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}
	return writeSuccess(ctx, http.StatusOK, sess.Status())
}

// GetChanges handles GET /api/v1/changes
// Returns the applied-change journal, oldest first.
func GetChanges(ctx rweb.Context) error {
	sess := activeSession
	if sess == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync session is not configured")
	}

	entries := sess.Journal()
	// Return empty array instead of null if no changes
	if entries == nil {
		entries = []session.JournalEntry{}
	}
	return writeSuccess(ctx, http.StatusOK, entries)
}
