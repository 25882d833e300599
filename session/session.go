package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"dayplan/feed"
	"dayplan/plan"
)

// ============================================================================
// Sync Session
//
// The session owns the current day aggregate and everything derived from
// it: fingerprint, journal, digest stream, counters. Server frames arrive
// through the transport's OnMessage on the read-loop goroutine; the HTTP
// surface reads from other goroutines, so one mutex guards all session
// state.
//
// Trust model: incremental change batches are applied optimistically and
// verified against the fingerprint the server declares. On mismatch the
// session asks for a full snapshot instead of erroring; the snapshot is
// always authoritative. Incremental trust also does not survive a
// connection gap, so every (re)open triggers a resync request.
// ============================================================================

// digestBuffer is the digest channel capacity. Digests are a low-priority
// signal; when no one drains them, new ones are dropped with a warning
// rather than blocking the read loop.
const digestBuffer = 16

// Digest is one low-priority notification line for the UI.
type Digest struct {
	At             time.Time `json:"at"`
	Kind           string    `json:"kind"` // "changes", "snapshot", or "reminder"
	Text           string    `json:"text"`
	TasksCompleted int       `json:"tasks_completed,omitempty"`
}

// Status is a point-in-time view of session health.
type Status struct {
	ClientID            string     `json:"client_id"`
	PlanDate            string     `json:"plan_date"`
	Connected           bool       `json:"connected"`
	TransportState      string     `json:"transport_state"`
	Fingerprint         string     `json:"fingerprint"`
	LastApplied         *time.Time `json:"last_applied,omitempty"`
	SnapshotsReceived   int        `json:"snapshots_received"`
	BatchesApplied      int        `json:"batches_applied"`
	ChangesApplied      int        `json:"changes_applied"`
	ResyncsRequested    int        `json:"resyncs_requested"`
	ResyncPending       bool       `json:"resync_pending"`
	TasksCompletedToday int        `json:"tasks_completed_today"`
	TaskCount           int        `json:"task_count"`
	EventCount          int        `json:"event_count"`
	RoutineCount        int        `json:"routine_count"`
}

// Inbound session envelopes, forwarded by the transport's OnMessage.
type stateSnapshotFrame struct {
	Type        string           `json:"type"`
	State       *plan.DayContext `json:"state"`
	Fingerprint string           `json:"fingerprint"`
}

type stateChangesFrame struct {
	Type        string              `json:"type"`
	Changes     []plan.ChangeRecord `json:"changes"`
	Fingerprint string              `json:"fingerprint"`
}

// Outbound frames.
type resyncRequestFrame struct {
	Type string `json:"type"`
}

type taskActionFrame struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	TaskID   string `json:"task_id"`
	ActionID string `json:"action_id"`
}

// SyncSession keeps one day's aggregate in step with the plan feed.
type SyncSession struct {
	cfg       *Config
	transport *feed.Transport

	mu          sync.Mutex
	current     *plan.DayContext
	fingerprint string
	journal     *journal
	lastApplied time.Time

	snapshotsReceived int
	batchesApplied    int
	changesApplied    int
	resyncsRequested  int
	tasksCompleted    int
	resyncPending     bool

	digests chan Digest
	closed  atomic.Bool

	reminderCancel func()
}

// NewSession builds a session from config: validates it, warms the state
// from the snapshot cache when one is present, mints the feed ticket, and
// wires the transport. Nothing connects until Start.
func NewSession(cfg *Config) (*SyncSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, serr.Wrap(err, "invalid session config")
	}

	s := &SyncSession{
		cfg:     cfg,
		current: plan.NewDayContext(),
		journal: newJournal(),
		digests: make(chan Digest, digestBuffer),
	}

	s.warmFromCache()

	fp, err := s.current.Fingerprint()
	if err != nil {
		return nil, serr.Wrap(err, "failed to fingerprint initial state")
	}
	s.fingerprint = fp

	ticket := ""
	if cfg.FeedSecret != "" {
		ticket, err = MintFeedTicket([]byte(cfg.FeedSecret), cfg.ClientID, cfg.PlanDate)
		if err != nil {
			return nil, serr.Wrap(err, "failed to mint feed ticket")
		}
	} else {
		logger.Warn("No feed secret configured; dialing without a ticket")
	}

	s.transport = feed.NewTransport(feed.Config{
		URL:            cfg.FeedURL,
		Ticket:         ticket,
		ReconnectDelay: cfg.ReconnectDelay,
		// A closed session must not reconnect, even from mid-backoff.
		ShouldReconnect: func() bool { return !s.closed.Load() },
		OnMessage:       s.handleFrame,
		OnState:         s.handleState,
	})

	s.reminderCancel = s.transport.Subscribe("reminders:"+cfg.ClientID, s.handleReminder)

	return s, nil
}

// Start connects the transport; frames begin flowing on its read loop.
func (s *SyncSession) Start() error {
	if s.closed.Load() {
		return serr.New("session is closed")
	}
	if err := s.transport.Connect(); err != nil {
		return serr.Wrap(err, "failed to start feed transport")
	}
	logger.Info("Sync session started",
		"client_id", s.cfg.ClientID,
		"plan_date", s.cfg.PlanDate,
		"feed_url", s.cfg.FeedURL,
	)
	return nil
}

// Close flips the reconnect predicate off before closing the transport, so
// a teardown racing a backoff wait cannot produce a stray reconnect. The
// digest channel stays open; it simply goes quiet.
func (s *SyncSession) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.reminderCancel != nil {
		s.reminderCancel()
	}
	s.transport.Close()
	logger.Info("Sync session closed", "client_id", s.cfg.ClientID)
}

// Snapshot returns the current aggregate. Read-only by contract: the
// reconciler never mutates an installed context, so callers may hold the
// reference across batches and compare by pointer.
func (s *SyncSession) Snapshot() *plan.DayContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Fingerprint returns the fingerprint of the current aggregate.
func (s *SyncSession) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// Connected reports whether the feed connection is open right now.
func (s *SyncSession) Connected() bool {
	return s.transport.Connected()
}

// Digests returns the notification stream. Single consumer; the channel is
// never closed.
func (s *SyncSession) Digests() <-chan Digest {
	return s.digests
}

// Journal returns the applied-change history, oldest first.
func (s *SyncSession) Journal() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.tail()
}

// SubscribeTopic registers a feed topic handler through the session, so
// collaborators never hold the transport directly.
func (s *SyncSession) SubscribeTopic(topic string, h feed.Handler) (cancel func()) {
	return s.transport.Subscribe(topic, h)
}

// Sync asks the feed for a full snapshot now.
func (s *SyncSession) Sync() error {
	if !s.requestResync("manual sync") {
		return serr.New("feed is not connected")
	}
	return nil
}

// MarkTaskComplete applies a completion locally and notifies the server.
// The local apply uses the same change-record path as a server batch, so
// the next inbound batch or fingerprint check confirms or corrects it.
// Returns an error only when the task id is unknown locally; a failed
// notify is logged and left for the resync machinery.
func (s *SyncSession) MarkTaskComplete(taskID string) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	doc, found := cur.FindDocument(plan.KindTask, taskID)
	if !found {
		return serr.New("unknown task id: " + taskID)
	}
	if plan.AsTask(doc).Status == plan.StatusComplete {
		return nil
	}

	rec := plan.ChangeRecord{
		ChangeType: plan.ChangeUpdated,
		EntityType: string(plan.KindTask),
		EntityID:   taskID,
		EntityPatch: []plan.PatchOp{
			{Op: plan.OpReplace, Path: "status", Value: plan.StatusComplete},
		},
	}
	s.applyBatch([]plan.ChangeRecord{rec}, "")

	action := taskActionFrame{
		Type:     "task_action",
		Action:   "complete",
		TaskID:   taskID,
		ActionID: uuid.New().String(),
	}
	if !s.transport.SendJSON(action) {
		logger.Warn("Task completion not delivered; next resync will reconcile", "task_id", taskID)
	}

	return nil
}

// Status assembles a point-in-time health view for the UI and API.
func (s *SyncSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ClientID:            s.cfg.ClientID,
		PlanDate:            s.cfg.PlanDate,
		Connected:           s.transport.Connected(),
		TransportState:      s.transport.State().String(),
		Fingerprint:         s.fingerprint,
		SnapshotsReceived:   s.snapshotsReceived,
		BatchesApplied:      s.batchesApplied,
		ChangesApplied:      s.changesApplied,
		ResyncsRequested:    s.resyncsRequested,
		ResyncPending:       s.resyncPending,
		TasksCompletedToday: s.tasksCompleted,
		TaskCount:           len(s.current.Tasks),
		EventCount:          len(s.current.Events),
		RoutineCount:        len(s.current.Routines),
	}
	if !s.lastApplied.IsZero() {
		t := s.lastApplied
		st.LastApplied = &t
	}
	return st
}

// handleState reacts to transport lifecycle changes. Every open asks for a
// full snapshot: incremental trust does not survive a gap, and this also
// flushes any resync request that failed to send while disconnected.
func (s *SyncSession) handleState(st feed.State) {
	logger.Info("Feed state changed", "state", st.String())
	if st != feed.StateOpen {
		return
	}
	s.requestResync("connection opened")
}

// handleFrame routes session-level envelopes from the transport.
func (s *SyncSession) handleFrame(kind string, frame []byte) {
	switch kind {
	case "state_snapshot":
		s.applySnapshot(frame)
	case "state_changes":
		s.applyChangeBatch(frame)
	default:
		logger.Debug("Ignoring feed frame", "kind", kind)
	}
}

// handleReminder turns reminder topic events into digest lines.
func (s *SyncSession) handleReminder(topic string, ev feed.TopicEvent) {
	var body struct {
		Text string `json:"text"`
	}
	if len(ev.EventData) > 0 {
		if err := json.Unmarshal(ev.EventData, &body); err != nil {
			logger.Debug("Ignoring malformed reminder event", "topic", topic, "error", err)
			return
		}
	}
	text := body.Text
	if text == "" {
		text = ev.EventType
	}
	s.emitDigest(Digest{At: time.Now(), Kind: "reminder", Text: text})
}

// applySnapshot installs a wholesale state replacement. The declared
// fingerprint is advisory here: a mismatch is logged, but the snapshot is
// authoritative by definition, so it is installed either way.
func (s *SyncSession) applySnapshot(frame []byte) {
	var env stateSnapshotFrame
	if err := json.Unmarshal(frame, &env); err != nil {
		logger.LogErr(err, "failed to decode state snapshot")
		return
	}

	state := env.State
	if state == nil {
		state = plan.NewDayContext()
	}
	if dropped := sanitizeSnapshot(state); dropped > 0 {
		logger.Warn("Snapshot carried invalid entities", "dropped", dropped)
	}

	fp, err := state.Fingerprint()
	if err != nil {
		logger.LogErr(err, "failed to fingerprint snapshot state")
		return
	}
	if env.Fingerprint != "" && env.Fingerprint != fp {
		logger.Warn("Snapshot fingerprint mismatch; installing snapshot anyway",
			"declared", env.Fingerprint,
			"computed", fp,
		)
	}

	now := time.Now()
	s.mu.Lock()
	prev := s.current
	completed := plan.CountCompletedBetween(prev, state)
	s.current = state
	s.fingerprint = fp
	s.lastApplied = now
	s.snapshotsReceived++
	s.tasksCompleted += completed
	s.mu.Unlock()

	s.persistSnapshot(state, fp)
	s.emitDigest(Digest{At: now, Kind: "snapshot", Text: "plan refreshed from server", TasksCompleted: completed})

	logger.Info("Installed state snapshot",
		"fingerprint", fp,
		"tasks", len(state.Tasks),
		"events", len(state.Events),
		"routines", len(state.Routines),
	)
}

// applyChangeBatch decodes and reconciles an incremental batch.
func (s *SyncSession) applyChangeBatch(frame []byte) {
	var env stateChangesFrame
	if err := json.Unmarshal(frame, &env); err != nil {
		logger.LogErr(err, "failed to decode change batch")
		return
	}
	s.applyBatch(env.Changes, env.Fingerprint)
}

// applyBatch runs a change batch through the reconciler and, when it
// really changed something, installs the result, records journal entries,
// emits a digest, and rewrites the snapshot cache. A declared fingerprint
// that disagrees with the local one triggers a resync request, a soft
// signal rather than an error, because the batch itself already applied.
func (s *SyncSession) applyBatch(changes []plan.ChangeRecord, declared string) {
	now := time.Now()

	s.mu.Lock()
	prev := s.current
	next, updated := plan.ApplyChanges(prev, changes)

	var fp string
	var completed int
	if updated {
		var err error
		fp, err = next.Fingerprint()
		if err != nil {
			s.mu.Unlock()
			logger.LogErr(err, "failed to fingerprint reconciled state")
			return
		}
		completed = plan.CountCompletedBetween(prev, next)
		s.current = next
		s.fingerprint = fp
		s.lastApplied = now
		s.batchesApplied++
		s.changesApplied += len(changes)
		s.tasksCompleted += completed
		s.recordJournal(prev, next, changes, now)
	} else {
		fp = s.fingerprint
	}
	s.mu.Unlock()

	if updated {
		s.persistSnapshot(next, fp)
		if text := plan.SummarizeChanges(changes); text != "" {
			s.emitDigest(Digest{At: now, Kind: "changes", Text: text, TasksCompleted: completed})
		}
	}

	if declared != "" && declared != fp {
		logger.Warn("Fingerprint mismatch after change batch",
			"declared", declared,
			"computed", fp,
		)
		s.requestResync("fingerprint mismatch")
	}
}

// recordJournal appends one entry per change record that had an observable
// effect. Caller holds the session mutex.
func (s *SyncSession) recordJournal(prev, next *plan.DayContext, changes []plan.ChangeRecord, at time.Time) {
	for _, rec := range changes {
		kind, known := plan.ParseKind(rec.EntityType)
		if !known {
			continue
		}

		var prevDoc, nextDoc plan.Document
		if prev != nil {
			prevDoc, _ = prev.FindDocument(kind, rec.EntityID)
		}
		nextDoc, _ = next.FindDocument(kind, rec.EntityID)

		switch rec.ChangeType {
		case plan.ChangeCreated, plan.ChangeUpdated:
			if nextDoc == nil {
				continue // discarded by the reconciler
			}
		case plan.ChangeDeleted:
			if prevDoc == nil {
				continue // deletion of something never held
			}
		default:
			continue
		}

		s.journal.add(entryFor(rec, prevDoc, nextDoc, at))
	}
}

// requestResync asks the feed for a full snapshot. A failed send marks the
// request pending; the post-open resync flushes it.
func (s *SyncSession) requestResync(reason string) bool {
	sent := s.transport.SendJSON(resyncRequestFrame{Type: "resync_request"})

	s.mu.Lock()
	if sent {
		s.resyncsRequested++
		s.resyncPending = false
	} else {
		s.resyncPending = true
	}
	s.mu.Unlock()

	if sent {
		logger.Info("Requested full resync", "reason", reason)
	} else {
		logger.Debug("Resync request deferred until next open", "reason", reason)
	}
	return sent
}

// persistSnapshot rewrites the cache file. Failures are logged, not
// propagated: the cache is an optimization, the feed stays authoritative.
func (s *SyncSession) persistSnapshot(state *plan.DayContext, fingerprint string) {
	if s.cfg.CachePath == "" {
		return
	}
	if err := SaveSnapshot(s.cfg.CachePath, state, fingerprint); err != nil {
		logger.LogErr(err, "failed to cache snapshot")
	}
}

// warmFromCache restores the last cached aggregate when it verifies
// against its recorded fingerprint. Any problem means a cold start.
func (s *SyncSession) warmFromCache() {
	if s.cfg.CachePath == "" {
		return
	}

	snap, err := LoadSnapshot(s.cfg.CachePath)
	if err != nil {
		logger.LogErr(err, "snapshot cache unreadable; starting cold")
		return
	}
	if snap == nil {
		return
	}

	fp, err := snap.State.Fingerprint()
	if err != nil || fp != snap.Fingerprint {
		logger.Warn("Snapshot cache failed fingerprint verification; starting cold",
			"recorded", snap.Fingerprint,
			"computed", fp,
		)
		return
	}

	s.current = snap.State
	logger.Info("Warmed plan state from snapshot cache",
		"fingerprint", fp,
		"saved_at", snap.SavedAt.Format(time.RFC3339),
	)
}

// emitDigest hands a digest to the consumer without ever blocking the
// read loop. When the buffer is full the newest digest is dropped.
func (s *SyncSession) emitDigest(d Digest) {
	select {
	case s.digests <- d:
	default:
		logger.Warn("Digest channel full; dropping digest", "kind", d.Kind, "text", d.Text)
	}
}

// sanitizeSnapshot drops entities that fail schema validation so one bad
// document cannot poison the whole aggregate. Returns how many it dropped.
func sanitizeSnapshot(state *plan.DayContext) int {
	dropped := 0
	if state.Day != nil {
		if err := plan.ValidateEntity(plan.KindDay, state.Day); err != nil {
			logger.LogErr(err, "dropping invalid day record")
			state.Day = nil
			dropped++
		}
	}
	state.Tasks, dropped = filterValid(plan.KindTask, state.Tasks, dropped)
	state.Events, dropped = filterValid(plan.KindEvent, state.Events, dropped)
	state.Routines, dropped = filterValid(plan.KindRoutine, state.Routines, dropped)
	return dropped
}

func filterValid(kind plan.Kind, docs []plan.Document, dropped int) ([]plan.Document, int) {
	out := docs[:0]
	for _, doc := range docs {
		if err := plan.ValidateEntity(kind, doc); err != nil {
			logger.LogErr(err, "dropping invalid "+string(kind)+" record")
			dropped++
			continue
		}
		out = append(out, doc)
	}
	return out, dropped
}
