package plan

import (
	"fmt"
	"strings"
)

// maxSummaryGroups bounds the length of a change digest; anything beyond
// this many distinct groups is folded into a trailing "more updates" count.
const maxSummaryGroups = 3

// SummarizeChanges renders a bounded, human-readable digest of a change
// batch for low-priority notifications, e.g. "2 tasks updated, 1 event
// added, and 3 more updates". Returns "" for an empty batch. Pure string
// assembly; no I/O.
func SummarizeChanges(changes []ChangeRecord) string {
	type group struct {
		label string
		verb  string
		count int
	}

	var groups []group
	index := make(map[string]int)

	for _, rec := range changes {
		verb, ok := changeVerb(rec.ChangeType)
		if !ok {
			continue
		}
		label := entityLabel(rec.EntityType)
		key := label + "\x00" + verb
		if i, seen := index[key]; seen {
			groups[i].count++
			continue
		}
		// Distinct groups keep first-seen order.
		index[key] = len(groups)
		groups = append(groups, group{label: label, verb: verb, count: 1})
	}

	if len(groups) == 0 {
		return ""
	}

	shown := groups
	more := 0
	if len(groups) > maxSummaryGroups {
		shown = groups[:maxSummaryGroups]
		for _, g := range groups[maxSummaryGroups:] {
			more += g.count
		}
	}

	parts := make([]string, 0, len(shown))
	for _, g := range shown {
		parts = append(parts, fmt.Sprintf("%d %s %s", g.count, pluralize(g.label, g.count), g.verb))
	}
	out := strings.Join(parts, ", ")
	if more > 0 {
		out += fmt.Sprintf(", and %d more updates", more)
	}
	return out
}

// CountCompletedBetween counts tasks that are COMPLETE in next but were
// not COMPLETE (or did not exist) in prev, compared by id. Completion is
// the one transition worth its own user-facing signal.
func CountCompletedBetween(prev, next *DayContext) int {
	if next == nil {
		return 0
	}
	prevStatus := make(map[string]string)
	if prev != nil {
		for _, doc := range prev.Tasks {
			prevStatus[EntityID(doc)] = stringField(doc, "status")
		}
	}

	count := 0
	for _, doc := range next.Tasks {
		if stringField(doc, "status") != StatusComplete {
			continue
		}
		if prevStatus[EntityID(doc)] != StatusComplete {
			count++
		}
	}
	return count
}

// CountCompletedFromChanges counts the tasks a change batch transitions
// into COMPLETE relative to prev. The batch is merged exactly the way the
// reconciler would merge it, so discarded records and unresolvable patch
// ops never inflate the count.
func CountCompletedFromChanges(prev *DayContext, changes []ChangeRecord) int {
	next, updated := ApplyChanges(prev, changes)
	if !updated {
		return 0
	}
	return CountCompletedBetween(prev, next)
}

// changeVerb maps a change type onto the verb the digest uses.
func changeVerb(t ChangeType) (string, bool) {
	switch t {
	case ChangeCreated:
		return "added", true
	case ChangeUpdated:
		return "updated", true
	case ChangeDeleted:
		return "removed", true
	}
	return "", false
}

// entityLabel maps an entity type onto its digest label. Types this client
// does not recognize still summarize, with underscores read as spaces.
func entityLabel(entityType string) string {
	if kind, known := ParseKind(entityType); known {
		return string(kind)
	}
	return strings.ReplaceAll(entityType, "_", " ")
}

func pluralize(label string, count int) string {
	if count == 1 {
		return label
	}
	return label + "s"
}
