package api

import (
	"github.com/rohanthewiz/rweb"

	"dayplan/session"
)

// activeSession is the sync session handlers read from and act on. The
// server wires it once at startup.
var activeSession *session.SyncSession

// SetSession stores the sync session for handlers to use
func SetSession(s *session.SyncSession) {
	activeSession = s
}

// APIResponse provides a consistent JSON response structure for all API endpoints.
// Success responses include data, error responses include an error message.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeSuccess sends a successful JSON response with data.
// Uses rweb's built-in WriteJSON which sets content-type automatically.
func writeSuccess(ctx rweb.Context, status int, data any) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// HealthCheck returns the health status of the application
func HealthCheck(c rweb.Context) error {
	return c.WriteJSON(map[string]any{
		"status":  "healthy",
		"service": "dayplan",
	})
}
