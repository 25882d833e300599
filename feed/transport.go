package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Reconnecting Topic Transport
//
// One Transport value owns one websocket connection to the plan feed and
// keeps it alive across drops. The rest of the app never touches the socket;
// it registers topic handlers, sends JSON frames, and watches state changes.
//
// Design decisions:
//   - Explicit state machine instead of a bool: the UI distinguishes
//     "connecting", "waiting to reconnect", and "stopped for good", and the
//     reconnect policy hangs off the Closed state.
//   - Subscriptions are client state. The server keeps nothing across
//     connections, so after every successful dial the transport replays one
//     subscribe frame listing every registered topic.
//   - Single read goroutine per connection; topic handlers run on it, so
//     events arrive in wire order. Writers share the socket behind a write
//     mutex (gorilla conns allow one concurrent writer).
//   - SendJSON never queues. A failed send returns false and the caller
//     decides what to re-send after the next open; queued frames against a
//     dead socket would only reorder against the post-reconnect replay.
// ============================================================================

// State identifies where the transport is in its connection lifecycle.
type State int

const (
	// StateDisconnected is the initial state before Connect is called.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the websocket is established and frames flow.
	StateOpen
	// StateClosed means the connection dropped; a reconnect wait follows
	// unless the policy declines.
	StateClosed
	// StateStopped is terminal for a run loop: entered by Close or when the
	// reconnect predicate declines. Connect may begin a fresh run from here.
	StateStopped
)

// String returns the lowercase name used in logs and status JSON.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// DefaultReconnectDelay is the fixed wait between reconnect attempts when
// the config does not set one.
const DefaultReconnectDelay = 3 * time.Second

// Config carries everything a Transport needs to dial and maintain the feed.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Ticket is the bearer credential sent on the dial request.
	Ticket string

	// ReconnectDelay is the fixed wait between reconnect attempts.
	// Zero or negative means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// ShouldReconnect is consulted before every redial after a drop,
	// including after the wait (a teardown can land mid-backoff).
	// nil means always reconnect.
	ShouldReconnect func() bool

	// OnMessage receives every inbound frame that is not a topic event,
	// keyed by the frame's type field. May be nil.
	OnMessage func(kind string, frame []byte)

	// OnState fires after every state change, outside the transport lock,
	// so it is safe to call back into the transport. May be nil.
	OnState func(State)

	// Dialer overrides the websocket dialer; tests point it at a local
	// server. nil means websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// TopicEvent is the payload delivered to topic handlers.
type TopicEvent struct {
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
}

// Handler consumes events for one subscribed topic. Handlers run on the
// read-loop goroutine, so events on a connection arrive in wire order.
type Handler func(topic string, ev TopicEvent)

// frameEnvelope is the outer shape of every inbound frame.
type frameEnvelope struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
}

// subscribeFrame is the outbound subscribe/unsubscribe message.
type subscribeFrame struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// Transport maintains one websocket connection to the feed, redialing after
// drops and replaying topic subscriptions on every open.
type Transport struct {
	cfg Config

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	topics map[string]map[int]Handler
	nextID int
	cancel context.CancelFunc

	// writeMu serializes frame writes; mu is never held across a write.
	writeMu sync.Mutex
}

// NewTransport prepares a transport in StateDisconnected.
// Nothing dials until Connect.
func NewTransport(cfg Config) *Transport {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Transport{
		cfg:    cfg,
		state:  StateDisconnected,
		topics: make(map[string]map[int]Handler),
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connected reports whether frames can be sent right now.
func (t *Transport) Connected() bool {
	return t.State() == StateOpen
}

// Connect starts the run loop. Only Disconnected and Stopped accept it;
// while a run loop is live (connecting, open, or waiting to redial) further
// calls are rejected, so two concurrent connections can never exist.
func (t *Transport) Connect() error {
	t.mu.Lock()
	if t.state != StateDisconnected && t.state != StateStopped {
		t.mu.Unlock()
		return serr.New("feed transport already running: " + t.state.String())
	}
	if t.cfg.URL == "" {
		t.mu.Unlock()
		return serr.New("feed URL is empty")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.state = StateConnecting
	t.mu.Unlock()

	t.notify(StateConnecting)
	go t.run(ctx, cancel)
	return nil
}

// Close tears the transport down: the run loop, any reconnect wait, and any
// dial in flight all unblock, and the transport lands in StateStopped.
func (t *Transport) Close() {
	t.mu.Lock()
	cancel := t.cancel
	stopDirectly := cancel == nil && t.state != StateStopped
	if stopDirectly {
		// Never connected, so no run loop owns the state machine.
		t.state = StateStopped
	}
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopDirectly {
		t.notify(StateStopped)
	}
}

// Subscribe registers a handler for a topic. Registration works in any
// state; when the connection is open and the topic is new, an incremental
// subscribe frame goes out immediately. The returned cancel removes the
// handler; removing the last handler for a topic sends unsubscribe (when
// open) and drops the topic from the reconnect replay set.
func (t *Transport) Subscribe(topic string, h Handler) (cancel func()) {
	t.mu.Lock()
	if t.topics[topic] == nil {
		t.topics[topic] = make(map[int]Handler)
	}
	t.nextID++
	id := t.nextID
	t.topics[topic][id] = h
	first := len(t.topics[topic]) == 1
	open := t.state == StateOpen
	t.mu.Unlock()

	if first && open {
		t.sendFrame(subscribeFrame{Type: "subscribe", Topics: []string{topic}})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			handlers := t.topics[topic]
			delete(handlers, id)
			last := handlers != nil && len(handlers) == 0
			if last {
				delete(t.topics, topic)
			}
			stillOpen := t.state == StateOpen
			t.mu.Unlock()

			if last && stillOpen {
				t.sendFrame(subscribeFrame{Type: "unsubscribe", Topics: []string{topic}})
			}
		})
	}
}

// SendJSON writes v as one JSON text frame. Returns false when the
// connection is not open or the write fails; frames are never queued.
func (t *Transport) SendJSON(v any) bool {
	t.mu.Lock()
	conn := t.conn
	open := t.state == StateOpen
	t.mu.Unlock()

	if !open || conn == nil {
		return false
	}

	t.writeMu.Lock()
	err := conn.WriteJSON(v)
	t.writeMu.Unlock()

	if err != nil {
		logger.Debug("Feed write failed", "error", err)
		return false
	}
	return true
}

// run is the connection loop: dial, pump frames, and on every exit decide
// between a reconnect wait and stopping. One run goroutine exists per
// Connect; it owns all state transitions except the one Connect itself makes.
func (t *Transport) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	for {
		conn, err := t.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.transition(StateStopped)
				return
			}
			logger.LogErr(err, "feed dial failed", "url", t.cfg.URL)
			t.transition(StateClosed)
			if !t.awaitReconnect(ctx) {
				return
			}
			continue
		}

		topics := t.openAndSnapshot(conn)

		// Watcher closes the socket on cancellation so the read loop always
		// unblocks, even when Close lands between dial and the first read.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		t.notify(StateOpen)

		// The server keeps no subscription state across connections, so
		// every open replays the full topic set in one frame.
		if len(topics) > 0 {
			t.sendFrame(subscribeFrame{Type: "subscribe", Topics: topics})
		}

		t.readFrames(conn)
		close(done)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			t.transition(StateStopped)
			return
		}

		logger.Info("Feed connection closed", "url", t.cfg.URL)
		t.transition(StateClosed)
		if !t.awaitReconnect(ctx) {
			return
		}
	}
}

// dial establishes the websocket, carrying the feed ticket as a bearer header.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.Ticket != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Ticket)
	}

	conn, resp, err := t.cfg.Dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, serr.Wrap(err, "feed dial rejected with status "+resp.Status)
		}
		return nil, serr.Wrap(err, "feed dial failed")
	}
	return conn, nil
}

// awaitReconnect applies the reconnect policy after a drop: consult the
// predicate, wait the fixed delay, then re-check the context and the
// predicate (Close or a session teardown can land mid-wait).
// Returns true when the loop should dial again.
func (t *Transport) awaitReconnect(ctx context.Context) bool {
	if !t.shouldReconnect() {
		logger.Info("Feed reconnect declined; stopping")
		t.transition(StateStopped)
		return false
	}

	select {
	case <-ctx.Done():
		t.transition(StateStopped)
		return false
	case <-time.After(t.cfg.ReconnectDelay):
	}

	if ctx.Err() != nil {
		t.transition(StateStopped)
		return false
	}
	if !t.shouldReconnect() {
		logger.Info("Feed reconnect declined; stopping")
		t.transition(StateStopped)
		return false
	}

	return t.transition(StateConnecting)
}

func (t *Transport) shouldReconnect() bool {
	if t.cfg.ShouldReconnect == nil {
		return true
	}
	return t.cfg.ShouldReconnect()
}

// readFrames pumps inbound frames until the connection errors or closes.
func (t *Transport) readFrames(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		t.dispatch(frame)
	}
}

// dispatch routes one inbound frame: topic events go to that topic's
// handlers, everything else is forwarded to OnMessage keyed by frame type.
// Undecodable frames are dropped with a debug log; the fingerprint
// mechanism catches any real divergence.
func (t *Transport) dispatch(frame []byte) {
	var env frameEnvelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		logger.Debug("Dropping undecodable feed frame", "frame", string(frame))
		return
	}

	if env.Type != "topic_event" {
		if t.cfg.OnMessage != nil {
			t.cfg.OnMessage(env.Type, frame)
		}
		return
	}

	var ev TopicEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		logger.Debug("Dropping malformed topic event", "topic", env.Topic, "error", err)
		return
	}

	for _, h := range t.handlersFor(env.Topic) {
		h(env.Topic, ev)
	}
}

// handlersFor snapshots a topic's handlers so dispatch never invokes them
// under the lock.
func (t *Transport) handlersFor(topic string) []Handler {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.topics[topic]
	if len(m) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

// openAndSnapshot stores the fresh connection, flips to StateOpen, and
// snapshots the replay set under one lock. A Subscribe racing the open then
// either lands in the replay frame or sends its own incremental frame,
// never both.
func (t *Transport) openAndSnapshot(conn *websocket.Conn) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conn = conn
	t.state = StateOpen
	topics := make([]string, 0, len(t.topics))
	for topic := range t.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (t *Transport) sendFrame(v any) {
	if !t.SendJSON(v) {
		logger.Debug("Feed frame not sent; connection not open")
	}
}

// transition moves the run loop to next and fires OnState. StateStopped is
// terminal for a run: once there (say Close raced the read loop), later
// transitions from the same run are discarded. Returns false when discarded.
func (t *Transport) transition(next State) bool {
	t.mu.Lock()
	if t.state == next || (t.state == StateStopped && next != StateStopped) {
		t.mu.Unlock()
		return false
	}
	t.state = next
	t.mu.Unlock()

	t.notify(next)
	return true
}

func (t *Transport) notify(s State) {
	if t.cfg.OnState != nil {
		t.cfg.OnState(s)
	}
}
