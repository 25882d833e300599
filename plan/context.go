package plan

import "dayplan/canon"

// DayContext is the aggregate state: the day record plus the task, event,
// and routine collections for one day. The sync session owns the current
// snapshot exclusively; everyone else receives read-only references, and
// the reconciler never mutates one in place.
type DayContext struct {
	Day      Document   `json:"day"`
	Tasks    []Document `json:"tasks"`
	Events   []Document `json:"events"`
	Routines []Document `json:"routines"`
}

// NewDayContext returns an empty aggregate.
func NewDayContext() *DayContext {
	return &DayContext{}
}

// CanonicalValue builds the canonical map form the fingerprint is computed
// over: always the same four keys, a null day when none is loaded, and
// empty arrays rather than nulls for empty collections.
func (c *DayContext) CanonicalValue() map[string]any {
	return map[string]any{
		"day":      docValue(c.Day),
		"tasks":    docsToValues(c.Tasks),
		"events":   docsToValues(c.Events),
		"routines": docsToValues(c.Routines),
	}
}

// Fingerprint computes the lowercase hex SHA-256 of the canonical encoding
// of the aggregate. Equal aggregates always produce identical fingerprints.
func (c *DayContext) Fingerprint() (string, error) {
	return canon.Fingerprint(c.CanonicalValue())
}

// FindDocument looks an entity up by id in the collection for kind.
// For KindDay it returns the singleton when one is loaded, ignoring id.
func (c *DayContext) FindDocument(kind Kind, id string) (Document, bool) {
	if kind == KindDay {
		if c.Day == nil {
			return nil, false
		}
		return c.Day, true
	}
	col := c.collection(kind)
	idf := identityField(kind)
	for _, doc := range col {
		if stringField(doc, idf) == id {
			return doc, true
		}
	}
	return nil, false
}

// collection returns the slice holding entities of kind, or nil for the
// day singleton.
func (c *DayContext) collection(kind Kind) []Document {
	switch kind {
	case KindTask:
		return c.Tasks
	case KindEvent:
		return c.Events
	case KindRoutine:
		return c.Routines
	}
	return nil
}

// docValue converts a possibly-nil Document into a canonicalizable value.
// A nil map must become a nil interface so it encodes as null, not {}.
func docValue(d Document) any {
	if d == nil {
		return nil
	}
	return d
}

func docsToValues(docs []Document) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = docValue(d)
	}
	return out
}
