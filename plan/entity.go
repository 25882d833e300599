package plan

import (
	"encoding/json"
	"fmt"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Entities
//
// Every entity travels and rests as a Document, the decoded JSON form, so
// unknown fields coming from a newer server survive round trips and the
// state fingerprint stays comparable with the server's. The entity kinds
// are a closed set, and each kind carries an explicit field schema that is
// checked whenever an entity enters the aggregate. A malformed patch is
// caught by that check instead of silently corrupting state.
// ============================================================================

// Document is one decoded JSON entity. Values follow encoding/json
// conventions: map[string]any for objects, []any for arrays, float64 for
// numbers.
type Document = map[string]any

// Kind identifies which collection of the day context an entity lives in.
type Kind string

const (
	KindDay     Kind = "day"
	KindTask    Kind = "task"
	KindEvent   Kind = "event"
	KindRoutine Kind = "routine"
)

// ParseKind maps a wire entity_type string onto a known Kind.
// The second result is false for types this client does not recognize;
// such records are skipped so newer servers remain compatible.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindDay, KindTask, KindEvent, KindRoutine:
		return Kind(s), true
	}
	return "", false
}

// Task status values used by the completion counter. Validation accepts
// any string here so a server can introduce new statuses without being
// rejected; only COMPLETE has meaning to this engine.
const (
	StatusNotStarted = "NOT_STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusComplete   = "COMPLETE"
	StatusSkipped    = "SKIPPED"
)

// fieldKind is the JSON type a schema field must hold when present.
type fieldKind int

const (
	fieldString fieldKind = iota
	fieldNumber
	fieldBool
	fieldArray
)

// fieldSpec describes one known field of an entity kind.
type fieldSpec struct {
	name     string
	kind     fieldKind
	required bool
}

// entitySchemas lists the known fields per kind. Unknown fields are left
// alone on purpose; the schema guards the types of the fields this client
// reads, not the full shape of the document.
var entitySchemas = map[Kind][]fieldSpec{
	KindTask: {
		{name: "id", kind: fieldString, required: true},
		{name: "name", kind: fieldString},
		{name: "notes", kind: fieldString},
		{name: "status", kind: fieldString},
		{name: "date", kind: fieldString},
		{name: "time", kind: fieldString},
		{name: "duration_minutes", kind: fieldNumber},
		{name: "position", kind: fieldNumber},
		{name: "routine_id", kind: fieldString},
		{name: "subtasks", kind: fieldArray},
		{name: "tags", kind: fieldArray},
	},
	KindEvent: {
		{name: "id", kind: fieldString, required: true},
		{name: "title", kind: fieldString},
		{name: "starts_at", kind: fieldString},
		{name: "ends_at", kind: fieldString},
		{name: "location", kind: fieldString},
		{name: "notes", kind: fieldString},
		{name: "all_day", kind: fieldBool},
	},
	KindRoutine: {
		{name: "id", kind: fieldString, required: true},
		{name: "name", kind: fieldString},
		{name: "time", kind: fieldString},
		{name: "days_of_week", kind: fieldArray},
		{name: "active", kind: fieldBool},
	},
	KindDay: {
		{name: "date", kind: fieldString, required: true},
		{name: "notes", kind: fieldString},
		{name: "mood", kind: fieldString},
		{name: "plan_locked", kind: fieldBool},
	},
}

// identityField names the field that keys an entity of the given kind.
// The day singleton is keyed by its date; everything else by id.
func identityField(kind Kind) string {
	if kind == KindDay {
		return "date"
	}
	return "id"
}

// EntityID returns the identifier of a collection entity, or "" when the
// document has none.
func EntityID(doc Document) string {
	return stringField(doc, "id")
}

// ValidateEntity checks doc against the explicit field schema for its kind.
// Required fields must be present non-empty strings; optional fields may be
// absent or null but reject with the wrong JSON type. Fields outside the
// schema pass untouched.
func ValidateEntity(kind Kind, doc Document) error {
	specs, known := entitySchemas[kind]
	if !known {
		return serr.New("unknown entity kind: " + string(kind))
	}
	for _, fs := range specs {
		v, present := doc[fs.name]
		if !present || v == nil {
			if fs.required {
				return serr.New(fmt.Sprintf("%s is missing required field %q", kind, fs.name))
			}
			continue
		}
		if !matchesFieldKind(v, fs.kind) {
			return serr.New(fmt.Sprintf("%s field %q has type %T, want %s", kind, fs.name, v, fieldKindName(fs.kind)))
		}
		if fs.required {
			if s, _ := v.(string); s == "" {
				return serr.New(fmt.Sprintf("%s has empty required field %q", kind, fs.name))
			}
		}
	}
	return nil
}

func matchesFieldKind(v any, k fieldKind) bool {
	switch k {
	case fieldString:
		_, ok := v.(string)
		return ok
	case fieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case fieldBool:
		_, ok := v.(bool)
		return ok
	case fieldArray:
		_, ok := v.([]any)
		return ok
	}
	return false
}

func fieldKindName(k fieldKind) string {
	switch k {
	case fieldString:
		return "string"
	case fieldNumber:
		return "number"
	case fieldBool:
		return "bool"
	case fieldArray:
		return "array"
	}
	return "unknown"
}

// ===== Typed read views =====
//
// The documents stay the source of truth; these views give the app layer
// structured access to the fields it renders without losing unknown fields
// from the stored form.

// Task is a typed view over a task document.
type Task struct {
	ID              string
	Name            string
	Notes           string
	Status          string
	Date            string
	Time            string
	DurationMinutes float64
	Position        float64
	RoutineID       string
	Tags            []string
}

// AsTask extracts the known task fields from doc.
func AsTask(doc Document) Task {
	return Task{
		ID:              stringField(doc, "id"),
		Name:            stringField(doc, "name"),
		Notes:           stringField(doc, "notes"),
		Status:          stringField(doc, "status"),
		Date:            stringField(doc, "date"),
		Time:            stringField(doc, "time"),
		DurationMinutes: numberField(doc, "duration_minutes"),
		Position:        numberField(doc, "position"),
		RoutineID:       stringField(doc, "routine_id"),
		Tags:            stringSliceField(doc, "tags"),
	}
}

// Event is a typed view over a calendar entry document.
type Event struct {
	ID       string
	Title    string
	StartsAt string
	EndsAt   string
	Location string
	Notes    string
	AllDay   bool
}

// AsEvent extracts the known event fields from doc.
func AsEvent(doc Document) Event {
	return Event{
		ID:       stringField(doc, "id"),
		Title:    stringField(doc, "title"),
		StartsAt: stringField(doc, "starts_at"),
		EndsAt:   stringField(doc, "ends_at"),
		Location: stringField(doc, "location"),
		Notes:    stringField(doc, "notes"),
		AllDay:   boolField(doc, "all_day"),
	}
}

// Routine is a typed view over a routine document.
type Routine struct {
	ID         string
	Name       string
	Time       string
	DaysOfWeek []string
	Active     bool
}

// AsRoutine extracts the known routine fields from doc.
func AsRoutine(doc Document) Routine {
	return Routine{
		ID:         stringField(doc, "id"),
		Name:       stringField(doc, "name"),
		Time:       stringField(doc, "time"),
		DaysOfWeek: stringSliceField(doc, "days_of_week"),
		Active:     boolField(doc, "active"),
	}
}

// Day is a typed view over the day record.
type Day struct {
	Date       string
	Notes      string
	Mood       string
	PlanLocked bool
}

// AsDay extracts the known day fields from doc.
func AsDay(doc Document) Day {
	return Day{
		Date:       stringField(doc, "date"),
		Notes:      stringField(doc, "notes"),
		Mood:       stringField(doc, "mood"),
		PlanLocked: boolField(doc, "plan_locked"),
	}
}

func stringField(doc Document, name string) string {
	if doc == nil {
		return ""
	}
	s, _ := doc[name].(string)
	return s
}

func numberField(doc Document, name string) float64 {
	if doc == nil {
		return 0
	}
	switch v := doc[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func boolField(doc Document, name string) bool {
	if doc == nil {
		return false
	}
	b, _ := doc[name].(bool)
	return b
}

func stringSliceField(doc Document, name string) []string {
	if doc == nil {
		return nil
	}
	arr, _ := doc[name].([]any)
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
