package plan

import (
	"strconv"
	"strings"

	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Patch Application
//
// Partial updates arrive as ordered op lists against a single entity. Ops
// are always applied to a deep clone, never the live document, so a failed
// op cannot leave shared state half-written. A pointer that cannot be
// resolved against the current shape skips just that op; the rest of the
// patch still lands.
// ============================================================================

// applyPatch clones doc and applies ops in order, returning the clone.
// The input document is never touched.
func applyPatch(doc Document, ops []PatchOp) Document {
	out := CloneDocument(doc)
	for _, op := range ops {
		switch op.Op {
		case OpReplace, OpAdd:
			segs := splitPointer(op.Path)
			if len(segs) == 0 {
				logger.Debug("Skipping patch op with empty path", "op", op.Op)
				continue
			}
			if _, ok := setIn(out, segs, op.Value); !ok {
				logger.Debug("Patch pointer does not resolve, leaving field untouched", "path", op.Path)
			}
		case OpRemove:
			// Recognized but inert; see the op constants.
		default:
			logger.Debug("Skipping unknown patch op", "op", op.Op)
		}
	}
	return out
}

// splitPointer breaks a slash-delimited pointer into segments. Leading and
// trailing slashes are tolerated; an empty pointer yields no segments.
func splitPointer(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// setIn writes v at the pointer path inside container, creating
// intermediate objects and null-filled array slots as needed, and returns
// the (possibly reallocated) container. ok is false when an existing
// non-container value blocks the path; in that case nothing was written.
func setIn(container any, segs []string, v any) (any, bool) {
	seg := segs[0]
	switch c := container.(type) {
	case Document:
		if len(segs) == 1 {
			c[seg] = v
			return c, true
		}
		child, exists := c[seg]
		if !exists || child == nil {
			child = emptyContainerFor(segs[1])
		}
		updated, ok := setIn(child, segs[1:], v)
		if !ok {
			return c, false
		}
		c[seg] = updated
		return c, true
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 {
			return c, false
		}
		for len(c) <= idx {
			c = append(c, nil)
		}
		if len(segs) == 1 {
			c[idx] = v
			return c, true
		}
		child := c[idx]
		if child == nil {
			child = emptyContainerFor(segs[1])
		}
		updated, ok := setIn(child, segs[1:], v)
		if !ok {
			return c, false
		}
		c[idx] = updated
		return c, true
	default:
		return container, false
	}
}

// emptyContainerFor picks the container to create for a missing
// intermediate: an array when the next segment is an index, else an object.
func emptyContainerFor(nextSeg string) any {
	if _, err := strconv.Atoi(nextSeg); err == nil {
		return []any{}
	}
	return Document{}
}

// CloneDocument returns a deep copy of doc. Nested objects and arrays are
// copied recursively; scalars are shared (they are immutable).
func CloneDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return CloneDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}
