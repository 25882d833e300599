package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"

	"dayplan/plan"
)

// ============================================================================
// Snapshot Cache
//
// One file caches the last known aggregate so a restart shows the plan
// before the feed delivers its first snapshot. The state itself stays in
// JSON inside the envelope: decoding it takes the exact same path as a wire
// snapshot, so cached documents carry the same value types and the same
// fingerprints. Msgpack frames the envelope around it.
// ============================================================================

// snapshotFormatVersion guards the cache file layout. Bump it on any change
// to snapshotEnvelope; old files are then discarded instead of misread.
const snapshotFormatVersion = 1

// snapshotEnvelope is the on-disk layout of the cache file.
type snapshotEnvelope struct {
	Version     int       `msgpack:"version"`
	Fingerprint string    `msgpack:"fingerprint"`
	SavedAt     time.Time `msgpack:"saved_at"`
	StateJSON   []byte    `msgpack:"state_json"`
}

// Snapshot is a cached aggregate restored from disk.
type Snapshot struct {
	State       *plan.DayContext
	Fingerprint string
	SavedAt     time.Time
}

// SaveSnapshot writes the aggregate and its fingerprint to path, creating
// parent directories as needed. An empty path disables caching.
func SaveSnapshot(path string, state *plan.DayContext, fingerprint string) error {
	if path == "" {
		return nil
	}
	if state == nil {
		return serr.New("cannot cache a nil day context")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return serr.Wrap(err, "failed to encode snapshot state")
	}

	env := snapshotEnvelope{
		Version:     snapshotFormatVersion,
		Fingerprint: fingerprint,
		SavedAt:     time.Now(),
		StateJSON:   stateJSON,
	}

	packed, err := msgpack.Marshal(env)
	if err != nil {
		return serr.Wrap(err, "failed to encode snapshot envelope")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return serr.Wrap(err, "failed to create snapshot directory")
		}
	}
	if err := os.WriteFile(path, packed, 0644); err != nil {
		return serr.Wrap(err, "failed to write snapshot file")
	}

	return nil
}

// LoadSnapshot reads a cached aggregate back. A missing file is not an
// error; it returns (nil, nil) so callers treat it as a cold start.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to read snapshot file")
	}

	var env snapshotEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, serr.Wrap(err, "failed to decode snapshot envelope")
	}
	if env.Version != snapshotFormatVersion {
		return nil, serr.New(fmt.Sprintf("snapshot format version %d, want %d", env.Version, snapshotFormatVersion))
	}

	state := plan.NewDayContext()
	if err := json.Unmarshal(env.StateJSON, state); err != nil {
		return nil, serr.Wrap(err, "failed to decode snapshot state")
	}

	return &Snapshot{
		State:       state,
		Fingerprint: env.Fingerprint,
		SavedAt:     env.SavedAt,
	}, nil
}
