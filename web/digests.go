package web

import (
	"sync"

	"github.com/rohanthewiz/logger"

	"dayplan/session"
)

// digestLogCapacity bounds the recent-digest list on the status page.
const digestLogCapacity = 20

// digestLog keeps the latest digests for page rendering. The session's
// digest channel is consume-once, so the web layer retains what the status
// page needs after forwarding each digest to the SSE stream.
type digestLog struct {
	mu      sync.Mutex
	entries []session.Digest
}

func newDigestLog(capacity int) *digestLog {
	return &digestLog{entries: make([]session.Digest, 0, capacity)}
}

// add appends a digest, dropping the oldest once full.
func (l *digestLog) add(d session.Digest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == cap(l.entries) {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, d)
}

// recent returns the kept digests newest-first.
func (l *digestLog) recent() []session.Digest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.Digest, len(l.entries))
	for i, d := range l.entries {
		out[len(l.entries)-1-i] = d
	}
	return out
}

// fanOutDigests drains the session's digest stream for the life of the
// process, recording each digest and pushing it to SSE subscribers. The
// events channel send never blocks; a full channel drops the event.
func fanOutDigests(sess *session.SyncSession, recent *digestLog, eventsCh chan any) {
	for d := range sess.Digests() {
		recent.add(d)

		event := map[string]any{
			"type":            "digest",
			"kind":            d.Kind,
			"text":            d.Text,
			"at":              d.At,
			"tasks_completed": d.TasksCompleted,
		}
		select {
		case eventsCh <- event:
		default:
			logger.Debug("SSE channel full, skipping digest")
		}
	}
}
