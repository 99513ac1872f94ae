package checklist

import (
	"context"
	"encoding/json"

	"visadoc-backend/internal/kv"
	"visadoc-backend/internal/shared/metrics"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

// Store persists title -> status snapshots. Every failure degrades to
// session-only state: Load returns an empty map and Save only logs.
type Store struct {
	kv kv.Store
}

// NewStore wraps backend. A nil backend gives a store that never persists.
func NewStore(backend kv.Store) *Store {
	return &Store{kv: backend}
}

// Load returns the saved snapshot for fingerprint. Entries with unknown status
// values are dropped.
func (s *Store) Load(ctx context.Context, fingerprint string) map[string]Status {
	out := map[string]Status{}
	if s == nil || s.kv == nil {
		return out
	}
	key := Key(fingerprint)
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		metrics.IncStorageFailure()
		telemetry.Warn("checklist.load_failed", map[string]any{"key": key, "error": util.SanitizeError(err)})
		return out
	}
	if !found {
		return out
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		telemetry.Warn("checklist.snapshot_corrupt", map[string]any{"key": key, "error": util.SanitizeError(err)})
		return out
	}
	for title, v := range decoded {
		if st := Status(v); st.Valid() {
			out[title] = st
		}
	}
	return out
}

// Save overwrites the snapshot for fingerprint.
func (s *Store) Save(ctx context.Context, fingerprint string, snapshot map[string]Status) {
	if s == nil || s.kv == nil {
		return
	}
	key := Key(fingerprint)
	if snapshot == nil {
		snapshot = map[string]Status{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		telemetry.Error("checklist.save_failed", map[string]any{"key": key, "error": util.SanitizeError(err)})
		return
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		metrics.IncStorageFailure()
		telemetry.Warn("checklist.save_failed", map[string]any{"key": key, "error": util.SanitizeError(err)})
	}
}
