package web

import (
	"dayplan/session"
	"dayplan/views/pages"
	"dayplan/web/api"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes configures all application routes
func setupRoutes(s *rweb.Server, sess *session.SyncSession, recent *digestLog) {
	// Page routes - HTML responses

	s.Get("/", func(ctx rweb.Context) error {
		ctx.Response().SetHeader("Content-Type", "text/html; charset=utf-8")

		page := pages.StatusPage{
			Status:  sess.Status(),
			Plan:    sess.Snapshot(),
			Digests: recent.recent(),
			Journal: sess.Journal(),
		}
		return ctx.WriteHTML(page.Render())
	})

	// API v1 routes - JSON responses
	s.Get("/api/v1/health", api.HealthCheck)

	// Plan state
	s.Get("/api/v1/plan", api.GetPlan)                        // Full day aggregate
	s.Get("/api/v1/plan/fingerprint", api.GetPlanFingerprint) // Just the fingerprint
	s.Get("/api/v1/status", api.GetStatus)                    // Session health
	s.Get("/api/v1/changes", api.GetChanges)                  // Applied-change journal

	// Actions
	s.Post("/api/v1/sync", api.TriggerSync)                // Force a full resync
	s.Post("/api/v1/tasks/:id/complete", api.CompleteTask) // Optimistic completion
}
