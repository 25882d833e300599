package session

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"dayplan/plan"
)

// ============================================================================
// Change Journal
//
// A fixed-size ring of the most recent applied changes, rendered for
// humans. Updates to an entity's primary text field carry a compact
// [-old][+new] diff so the journal answers "what exactly changed" without
// storing full before/after documents.
// ============================================================================

// journalCapacity bounds the in-memory history; older entries fall off.
const journalCapacity = 64

// JournalEntry is one applied change.
type JournalEntry struct {
	At       time.Time `json:"at"`
	Verb     string    `json:"verb"`
	Label    string    `json:"label"`
	EntityID string    `json:"entity_id"`
	Summary  string    `json:"summary,omitempty"`
}

// journal is a fixed-capacity ring of the latest entries. Not goroutine
// safe; the session serializes access under its own mutex.
type journal struct {
	entries []JournalEntry
	next    int
}

func newJournal() *journal {
	return &journal{entries: make([]JournalEntry, 0, journalCapacity)}
}

// add appends an entry, overwriting the oldest once the ring is full.
func (j *journal) add(e JournalEntry) {
	if len(j.entries) < journalCapacity {
		j.entries = append(j.entries, e)
		return
	}
	j.entries[j.next] = e
	j.next = (j.next + 1) % journalCapacity
}

// tail returns the entries oldest-first.
func (j *journal) tail() []JournalEntry {
	if len(j.entries) < journalCapacity {
		out := make([]JournalEntry, len(j.entries))
		copy(out, j.entries)
		return out
	}
	out := make([]JournalEntry, 0, journalCapacity)
	out = append(out, j.entries[j.next:]...)
	out = append(out, j.entries[:j.next]...)
	return out
}

// entryFor builds the journal entry for one applied change. prevDoc and
// nextDoc are the entity before and after the batch; either may be nil.
func entryFor(rec plan.ChangeRecord, prevDoc, nextDoc plan.Document, at time.Time) JournalEntry {
	entry := JournalEntry{
		At:       at,
		Verb:     journalVerb(rec.ChangeType),
		Label:    journalLabel(rec.EntityType),
		EntityID: rec.EntityID,
	}

	kind, known := plan.ParseKind(rec.EntityType)
	if !known {
		return entry
	}

	field := primaryTextField(kind)
	before := textOf(prevDoc, field)
	after := textOf(nextDoc, field)

	switch rec.ChangeType {
	case plan.ChangeCreated:
		entry.Summary = after
	case plan.ChangeDeleted:
		entry.Summary = before
	case plan.ChangeUpdated:
		entry.Summary = renderTextDiff(before, after)
	}
	return entry
}

// journalVerb matches the digest vocabulary so the journal and the
// notification lines read the same.
func journalVerb(t plan.ChangeType) string {
	switch t {
	case plan.ChangeCreated:
		return "added"
	case plan.ChangeUpdated:
		return "updated"
	case plan.ChangeDeleted:
		return "removed"
	}
	return string(t)
}

// journalLabel renders an entity type for display, reading underscores in
// unrecognized types as spaces.
func journalLabel(entityType string) string {
	if kind, known := plan.ParseKind(entityType); known {
		return string(kind)
	}
	return strings.ReplaceAll(entityType, "_", " ")
}

// primaryTextField names the field whose edits are worth diffing per kind.
func primaryTextField(kind plan.Kind) string {
	switch kind {
	case plan.KindTask, plan.KindRoutine:
		return "name"
	case plan.KindEvent:
		return "title"
	case plan.KindDay:
		return "notes"
	}
	return ""
}

func textOf(doc plan.Document, field string) string {
	if doc == nil || field == "" {
		return ""
	}
	s, _ := doc[field].(string)
	return s
}

// renderTextDiff renders a text edit as the unchanged spans with [-old] and
// [+new] segments inline. Semantic cleanup keeps the segments readable
// words instead of character soup. Returns "" when nothing changed.
func renderTextDiff(before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-")
			b.WriteString(d.Text)
			b.WriteString("]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("[+")
			b.WriteString(d.Text)
			b.WriteString("]")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
