package plan

// ChangeType says what happened to the entity a change record names.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Patch op names. OpRemove is recognized so a batch containing it still
// decodes and applies, but it is deliberately never executed: the feed has
// always shipped field removals as full snapshots, and consumers have come
// to rely on remove being inert. Do not make it delete fields without
// coordinating a protocol rev.
const (
	OpReplace = "replace"
	OpAdd     = "add"
	OpRemove  = "remove"
)

// PatchOp is one operation inside a change record's entity_patch. Path is
// a slash-delimited pointer into the entity ("status", "subtasks/0/done").
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// ChangeRecord is one create/update/delete notification for a single
// entity. Created and updated records carry either a full entity snapshot
// in entity_data or an ordered patch list in entity_patch; when both are
// present the patch takes precedence. Deleted records carry neither. A
// record is consumed exactly once by the reconciler and then discarded.
type ChangeRecord struct {
	ChangeType  ChangeType `json:"change_type"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	EntityData  Document   `json:"entity_data,omitempty"`
	EntityPatch []PatchOp  `json:"entity_patch,omitempty"`
}
