package feed_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dayplan/feed"
)

// waitTimeout bounds every blocking wait in these tests.
const waitTimeout = 3 * time.Second

// ============================================================================
// Test harness: an in-process websocket peer
//
// feedServer accepts websocket connections, records the Authorization header
// of each, decodes every client frame, and can push frames back or drop all
// connections to force the transport through its reconnect path.
// ============================================================================

// serverConn pairs an accepted websocket with the request header we care about.
type serverConn struct {
	ws   *websocket.Conn
	auth string
}

type feedServer struct {
	httpSrv  *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn

	connCh  chan serverConn
	frameCh chan map[string]any
}

// newFeedServer starts the websocket peer and registers its shutdown.
func newFeedServer(t *testing.T) *feedServer {
	t.Helper()

	fs := &feedServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connCh:  make(chan serverConn, 8),
		frameCh: make(chan map[string]any, 64),
	}

	fs.httpSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		fs.mu.Lock()
		fs.conns = append(fs.conns, ws)
		fs.mu.Unlock()

		fs.connCh <- serverConn{ws: ws, auth: r.Header.Get("Authorization")}

		for {
			var frame map[string]any
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			fs.frameCh <- frame
		}
	}))

	t.Cleanup(func() {
		fs.dropAll()
		fs.httpSrv.Close()
	})
	return fs
}

// url returns the ws:// address of the server.
func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.httpSrv.URL, "http")
}

// waitConn blocks until a client connects.
func (fs *feedServer) waitConn(t *testing.T) serverConn {
	t.Helper()
	select {
	case sc := <-fs.connCh:
		return sc
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a client connection")
		return serverConn{}
	}
}

// waitFrame blocks until the client sends a frame.
func (fs *feedServer) waitFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case frame := <-fs.frameCh:
		return frame
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a client frame")
		return nil
	}
}

// expectNoFrame asserts the client stays quiet for a beat.
func (fs *feedServer) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case frame := <-fs.frameCh:
		t.Fatalf("expected no client frame, got %v", frame)
	case <-time.After(150 * time.Millisecond):
	}
}

// expectNoConn asserts no new client connection arrives for a beat.
func (fs *feedServer) expectNoConn(t *testing.T) {
	t.Helper()
	select {
	case <-fs.connCh:
		t.Fatal("expected no new client connection")
	case <-time.After(150 * time.Millisecond):
	}
}

// push writes a frame from the server to one client connection.
func (fs *feedServer) push(t *testing.T, sc serverConn, v any) {
	t.Helper()
	if err := sc.ws.WriteJSON(v); err != nil {
		t.Fatalf("server push failed: %v", err)
	}
}

// pushRaw writes raw bytes, for malformed-frame cases.
func (fs *feedServer) pushRaw(t *testing.T, sc serverConn, data string) {
	t.Helper()
	if err := sc.ws.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		t.Fatalf("server raw push failed: %v", err)
	}
}

// dropAll closes every accepted connection, forcing clients to reconnect.
func (fs *feedServer) dropAll() {
	fs.mu.Lock()
	conns := fs.conns
	fs.conns = nil
	fs.mu.Unlock()

	for _, ws := range conns {
		_ = ws.Close()
	}
}

// stateRecorder collects transport state transitions for assertions.
type stateRecorder struct {
	ch chan feed.State
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan feed.State, 32)}
}

func (r *stateRecorder) record(s feed.State) {
	r.ch <- s
}

// waitFor drains transitions until want shows up.
func (r *stateRecorder) waitFor(t *testing.T, want feed.State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case s := <-r.ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

// frameTopics extracts and sorts the topics list from a subscribe frame.
func frameTopics(t *testing.T, frame map[string]any) []string {
	t.Helper()
	raw, ok := frame["topics"].([]any)
	if !ok {
		t.Fatalf("frame has no topics list: %v", frame)
	}
	topics := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("non-string topic in frame: %v", frame)
		}
		topics = append(topics, s)
	}
	sort.Strings(topics)
	return topics
}

func assertTopics(t *testing.T, frame map[string]any, frameType string, want ...string) {
	t.Helper()
	if got := frame["type"]; got != frameType {
		t.Fatalf("expected frame type %q, got %v", frameType, got)
	}
	got := frameTopics(t, frame)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected topics %v, got %v", want, got)
	}
}

// ============================================================================
// Connection lifecycle
// ============================================================================

// TestDialCarriesTicketAndReplaysSubscriptions verifies that the dial sends
// the bearer ticket, that topics registered before Connect are announced in
// one subscribe frame on open, and that a topic added while open goes out
// as an incremental subscribe.
func TestDialCarriesTicketAndReplaysSubscriptions(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	tr := feed.NewTransport(feed.Config{
		URL:            fs.url(),
		Ticket:         "ticket-abc",
		ReconnectDelay: 30 * time.Millisecond,
		OnState:        rec.record,
		Dialer:         &websocket.Dialer{HandshakeTimeout: 2 * time.Second},
	})
	defer tr.Close()

	tr.Subscribe("reminders:client-1", func(string, feed.TopicEvent) {})
	tr.Subscribe("plan:2026-08-25", func(string, feed.TopicEvent) {})

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	sc := fs.waitConn(t)
	if sc.auth != "Bearer ticket-abc" {
		t.Errorf("expected bearer ticket on dial, got %q", sc.auth)
	}

	rec.waitFor(t, feed.StateOpen)
	assertTopics(t, fs.waitFrame(t), "subscribe", "reminders:client-1", "plan:2026-08-25")

	// A topic added while open is announced on its own.
	tr.Subscribe("alerts", func(string, feed.TopicEvent) {})
	assertTopics(t, fs.waitFrame(t), "subscribe", "alerts")

	if !tr.Connected() {
		t.Error("expected Connected() while open")
	}
}

// TestReconnectReplaysTopicsAddedWhileDisconnected drops the connection and
// verifies the next open replays every topic with an active handler,
// including one registered during the gap.
func TestReconnectReplaysTopicsAddedWhileDisconnected(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	var tr *feed.Transport
	var addedDuringGap atomic.Bool
	tr = feed.NewTransport(feed.Config{
		URL:            fs.url(),
		ReconnectDelay: 30 * time.Millisecond,
		OnState: func(s feed.State) {
			rec.record(s)
			// Register a topic in the window between drop and redial.
			if s == feed.StateClosed && addedDuringGap.CompareAndSwap(false, true) {
				tr.Subscribe("gamma", func(string, feed.TopicEvent) {})
			}
		},
	})
	defer tr.Close()

	tr.Subscribe("alpha", func(string, feed.TopicEvent) {})

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)
	assertTopics(t, fs.waitFrame(t), "subscribe", "alpha")

	tr.Subscribe("beta", func(string, feed.TopicEvent) {})
	assertTopics(t, fs.waitFrame(t), "subscribe", "beta")

	fs.dropAll()
	rec.waitFor(t, feed.StateClosed)

	// The redial must announce the full set in one frame.
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)
	assertTopics(t, fs.waitFrame(t), "subscribe", "alpha", "beta", "gamma")
}

// TestConnectRejectedWhileRunning locks in the single-run-loop guarantee.
func TestConnectRejectedWhileRunning(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	tr := feed.NewTransport(feed.Config{
		URL:     fs.url(),
		OnState: rec.record,
	})
	defer tr.Close()

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)

	if err := tr.Connect(); err == nil {
		t.Fatal("expected second Connect to be rejected while open")
	}

	// After Close the transport may start a fresh run.
	tr.Close()
	rec.waitFor(t, feed.StateStopped)

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect after Close failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)
}

// TestReconnectPredicateDeclines verifies that a false ShouldReconnect ends
// the run loop in StateStopped instead of redialing.
func TestReconnectPredicateDeclines(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	var allow atomic.Bool
	allow.Store(true)

	tr := feed.NewTransport(feed.Config{
		URL:             fs.url(),
		ReconnectDelay:  30 * time.Millisecond,
		ShouldReconnect: allow.Load,
		OnState:         rec.record,
	})
	defer tr.Close()

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)

	allow.Store(false)
	fs.dropAll()

	rec.waitFor(t, feed.StateStopped)
	fs.expectNoConn(t)

	if got := tr.State(); got != feed.StateStopped {
		t.Errorf("expected StateStopped, got %s", got)
	}
}

// ============================================================================
// Frame handling
// ============================================================================

// TestSendJSONOnlyWhenOpen verifies the no-queue contract: sends fail before
// connect and after close, and succeed only while the socket is open.
func TestSendJSONOnlyWhenOpen(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	tr := feed.NewTransport(feed.Config{
		URL:     fs.url(),
		OnState: rec.record,
	})
	defer tr.Close()

	if ok := tr.SendJSON(map[string]string{"type": "ping"}); ok {
		t.Error("expected SendJSON to fail before Connect")
	}

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)

	if ok := tr.SendJSON(map[string]string{"type": "ping"}); !ok {
		t.Fatal("expected SendJSON to succeed while open")
	}
	frame := fs.waitFrame(t)
	if frame["type"] != "ping" {
		t.Errorf("expected ping frame, got %v", frame)
	}

	tr.Close()
	rec.waitFor(t, feed.StateStopped)

	if ok := tr.SendJSON(map[string]string{"type": "ping"}); ok {
		t.Error("expected SendJSON to fail after Close")
	}
}

// TestUnsubscribeOnLastHandlerRemoval verifies that only the removal of a
// topic's last handler produces an unsubscribe frame, and that cancel is
// idempotent.
func TestUnsubscribeOnLastHandlerRemoval(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	tr := feed.NewTransport(feed.Config{
		URL:     fs.url(),
		OnState: rec.record,
	})
	defer tr.Close()

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)

	cancel1 := tr.Subscribe("alpha", func(string, feed.TopicEvent) {})
	assertTopics(t, fs.waitFrame(t), "subscribe", "alpha")

	// Second handler on the same topic: no wire traffic.
	cancel2 := tr.Subscribe("alpha", func(string, feed.TopicEvent) {})
	fs.expectNoFrame(t)

	// First removal leaves a live handler: still no wire traffic.
	cancel1()
	fs.expectNoFrame(t)

	// Last removal unsubscribes.
	cancel2()
	assertTopics(t, fs.waitFrame(t), "unsubscribe", "alpha")

	// Cancel is idempotent.
	cancel2()
	fs.expectNoFrame(t)
}

// TestTopicEventRouting verifies the dispatch split: topic events reach only
// that topic's handlers, every other frame type lands in OnMessage, and
// malformed frames are dropped without wedging the read loop.
func TestTopicEventRouting(t *testing.T) {
	fs := newFeedServer(t)
	rec := newStateRecorder()

	events := make(chan feed.TopicEvent, 4)
	kinds := make(chan string, 4)

	tr := feed.NewTransport(feed.Config{
		URL: fs.url(),
		OnMessage: func(kind string, frame []byte) {
			kinds <- kind
		},
		OnState: rec.record,
	})
	defer tr.Close()

	tr.Subscribe("reminders:client-1", func(topic string, ev feed.TopicEvent) {
		events <- ev
	})

	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	sc := fs.waitConn(t)
	rec.waitFor(t, feed.StateOpen)
	fs.waitFrame(t) // subscription replay

	// Garbage and events for unsubscribed topics are dropped silently.
	fs.pushRaw(t, sc, "this is not json")
	fs.push(t, sc, map[string]any{
		"type":  "topic_event",
		"topic": "someone-else",
		"event": map[string]any{"event_type": "reminder", "event_data": map[string]any{}},
	})

	// A session-level envelope goes to OnMessage.
	fs.push(t, sc, map[string]any{"type": "state_changes", "changes": []any{}})

	// A topic event for the subscribed topic goes to the handler.
	fs.push(t, sc, map[string]any{
		"type":  "topic_event",
		"topic": "reminders:client-1",
		"event": map[string]any{
			"event_type": "reminder",
			"event_data": map[string]any{"text": "stand up"},
		},
	})

	select {
	case kind := <-kinds:
		if kind != "state_changes" {
			t.Errorf("expected OnMessage kind state_changes, got %q", kind)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for OnMessage")
	}

	select {
	case ev := <-events:
		if ev.EventType != "reminder" {
			t.Errorf("expected event_type reminder, got %q", ev.EventType)
		}
		var data map[string]string
		if err := json.Unmarshal(ev.EventData, &data); err != nil {
			t.Fatalf("event_data did not round-trip: %v", err)
		}
		if data["text"] != "stand up" {
			t.Errorf("expected event text to survive dispatch, got %v", data)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for topic event")
	}

	// The handler saw exactly one event; the foreign-topic one never arrived.
	if len(events) != 0 {
		t.Errorf("expected no further events, found %d buffered", len(events))
	}
	if len(kinds) != 0 {
		t.Errorf("expected no further OnMessage calls, found %d buffered", len(kinds))
	}
}
