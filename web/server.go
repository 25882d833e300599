package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"dayplan/session"
	"dayplan/web/api"
)

// NewServer creates and configures the RWeb server around a sync session.
// The server is the session's one digest consumer: it fans digests out to
// the SSE stream and keeps the recent lines the status page shows.
func NewServer(sess *session.SyncSession, addr string) *rweb.Server {
	return buildServer(sess, rweb.ServerOptions{
		Address: addr,
		Verbose: true,
	})
}

// NewTestServer builds the same server with caller-supplied options, so
// tests can use a dynamic port and a ready channel.
func NewTestServer(sess *session.SyncSession, opts rweb.ServerOptions) *rweb.Server {
	return buildServer(sess, opts)
}

func buildServer(sess *session.SyncSession, opts rweb.ServerOptions) *rweb.Server {
	s := rweb.NewServer(opts)

	// Apply middleware
	s.Use(rweb.RequestInfo)          // Logs request info
	s.Use(CorsMiddleware)            // Custom CORS middleware
	s.Use(SecurityHeadersMiddleware) // Security headers
	s.Use(LoggingMiddleware)         // Request logging

	// API handlers reach the session through the api package
	api.SetSession(sess)

	// Fan session digests out to the SSE stream and the status page
	recent := newDigestLog(digestLogCapacity)
	eventsCh := make(chan any, 16)
	go fanOutDigests(sess, recent, eventsCh)

	// Setup routes
	setupRoutes(s, sess, recent)

	// Server-Sent Events for live digest lines
	s.Get("/events", func(c rweb.Context) error {
		logger.Info("SSE connection established")
		return s.SetupSSE(c, eventsCh)
	})

	return s
}

// Run starts the server
func Run(s *rweb.Server, addr string) error {
	logger.Info("DayPlan web server starting", "address", addr)
	return s.Run()
}
