package plan

import (
	"dayplan/canon"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Change Reconciler
//
// Merges an ordered batch of change records into a day context without
// mutating the input. Each collection is copied shallowly before its first
// mutation, every patched or replaced entity is a fresh document, and the
// original context is returned untouched when the batch turns out to be a
// no-op, so downstream consumers can use pointer identity to skip work.
//
// Malformed input is contained here, never propagated: records with
// unrecognized entity types are ignored, a patch pointer that does not
// resolve skips just that op, and an entity that comes out of a patch
// without an identifier or in violation of its schema is dropped.
// ============================================================================

// ApplyChanges merges changes into cur and reports whether anything really
// changed. When nothing did, the returned pointer is cur itself and the
// flag is false; otherwise a new context assembled from the updated
// collections is returned. Unchanged collections keep their original slices.
func ApplyChanges(cur *DayContext, changes []ChangeRecord) (*DayContext, bool) {
	if cur == nil {
		cur = NewDayContext()
	}
	if len(changes) == 0 {
		return cur, false
	}

	for _, rec := range changes {
		if _, known := ParseKind(rec.EntityType); !known {
			logger.Debug("Ignoring change for unrecognized entity type", "entity_type", rec.EntityType)
		}
	}

	tasks, tasksChanged := applyToCollection(cur.Tasks, KindTask, changes)
	events, eventsChanged := applyToCollection(cur.Events, KindEvent, changes)
	routines, routinesChanged := applyToCollection(cur.Routines, KindRoutine, changes)
	day, dayChanged := applyToDay(cur.Day, changes)

	if !tasksChanged && !eventsChanged && !routinesChanged && !dayChanged {
		return cur, false
	}

	return &DayContext{
		Day:      day,
		Tasks:    tasks,
		Events:   events,
		Routines: routines,
	}, true
}

// applyToCollection runs the records for one entity kind against a single
// collection. Returns the original slice and false when no record made a
// real difference.
func applyToCollection(col []Document, kind Kind, changes []ChangeRecord) ([]Document, bool) {
	idf := identityField(kind)
	work := col
	copied := false
	changed := false

	ensureCopy := func() {
		if !copied {
			work = append([]Document(nil), work...)
			copied = true
		}
	}

	for _, rec := range changes {
		k, known := ParseKind(rec.EntityType)
		if !known || k != kind {
			continue
		}

		switch rec.ChangeType {
		case ChangeDeleted:
			idx := indexByField(work, idf, rec.EntityID)
			if idx < 0 {
				continue // already gone; deletes are idempotent
			}
			ensureCopy()
			work = append(work[:idx], work[idx+1:]...)
			changed = true

		case ChangeCreated, ChangeUpdated:
			next, ok := buildEntity(work, kind, rec)
			if !ok {
				continue
			}
			id := stringField(next, idf)
			idx := indexByField(work, idf, id)
			if idx >= 0 {
				if equalDocs(work[idx], next) {
					// The server re-sent an entity we already hold.
					continue
				}
				ensureCopy()
				work[idx] = next
			} else {
				ensureCopy()
				work = append(work, next)
			}
			changed = true

		default:
			logger.Debug("Ignoring change with unknown change type", "change_type", string(rec.ChangeType))
		}
	}

	if !changed {
		return col, false
	}
	return work, true
}

// applyToDay handles the day singleton: replaced wholesale by full records,
// patched in place like any entity, adopted only when it really differs.
func applyToDay(day Document, changes []ChangeRecord) (Document, bool) {
	cur := day
	changed := false

	for _, rec := range changes {
		k, known := ParseKind(rec.EntityType)
		if !known || k != KindDay {
			continue
		}

		switch rec.ChangeType {
		case ChangeDeleted:
			if cur != nil {
				cur = nil
				changed = true
			}
		case ChangeCreated, ChangeUpdated:
			next, ok := buildDay(cur, rec)
			if !ok {
				continue
			}
			if equalDocs(cur, next) {
				continue
			}
			cur = next
			changed = true
		default:
			logger.Debug("Ignoring day change with unknown change type", "change_type", string(rec.ChangeType))
		}
	}

	if !changed {
		return day, false
	}
	return cur, true
}

// buildEntity produces the document a created/updated record yields for a
// collection entity, or ok=false when the record must be discarded. The
// patch path wins over entity_data when both are present.
func buildEntity(work []Document, kind Kind, rec ChangeRecord) (Document, bool) {
	idf := identityField(kind)

	if len(rec.EntityPatch) > 0 {
		var base Document
		if idx := indexByField(work, idf, rec.EntityID); idx >= 0 {
			base = work[idx]
		}
		// A missing base means create-via-patch from an empty document.
		next := applyPatch(base, rec.EntityPatch)
		if stringField(next, idf) == "" {
			// A malformed patch must never insert an element nothing can
			// address afterwards.
			logger.Debug("Discarding patched entity with no identifier",
				"entity_type", string(kind), "entity_id", rec.EntityID)
			return nil, false
		}
		if err := ValidateEntity(kind, next); err != nil {
			logger.LogErr(serr.Wrap(err, "discarding patched entity that fails its schema"), "entity skipped")
			return nil, false
		}
		return next, true
	}

	if rec.EntityData == nil {
		logger.Debug("Change record carries neither data nor patch",
			"entity_type", string(kind), "entity_id", rec.EntityID)
		return nil, false
	}
	next := CloneDocument(rec.EntityData)
	if stringField(next, idf) == "" {
		logger.Debug("Discarding entity snapshot with no identifier",
			"entity_type", string(kind), "entity_id", rec.EntityID)
		return nil, false
	}
	if err := ValidateEntity(kind, next); err != nil {
		logger.LogErr(serr.Wrap(err, "discarding entity snapshot that fails its schema"), "entity skipped")
		return nil, false
	}
	return next, true
}

// buildDay is buildEntity for the singleton: patches always apply to the
// current day record regardless of the record's entity_id.
func buildDay(cur Document, rec ChangeRecord) (Document, bool) {
	if len(rec.EntityPatch) > 0 {
		next := applyPatch(cur, rec.EntityPatch)
		if stringField(next, "date") == "" {
			logger.Debug("Discarding patched day with no date")
			return nil, false
		}
		if err := ValidateEntity(KindDay, next); err != nil {
			logger.LogErr(serr.Wrap(err, "discarding patched day that fails its schema"), "day skipped")
			return nil, false
		}
		return next, true
	}

	if rec.EntityData == nil {
		logger.Debug("Day change carries neither data nor patch")
		return nil, false
	}
	next := CloneDocument(rec.EntityData)
	if err := ValidateEntity(KindDay, next); err != nil {
		logger.LogErr(serr.Wrap(err, "discarding day snapshot that fails its schema"), "day skipped")
		return nil, false
	}
	return next, true
}

// indexByField finds the first document whose field equals id, or -1.
// An empty id never matches; documents without identifiers cannot enter a
// collection in the first place.
func indexByField(docs []Document, field, id string) int {
	if id == "" {
		return -1
	}
	for i, doc := range docs {
		if stringField(doc, field) == id {
			return i
		}
	}
	return -1
}

// equalDocs is deep structural equality between two documents, treating a
// nil map as null.
func equalDocs(a, b Document) bool {
	return canon.Equal(docValue(a), docValue(b))
}
