package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"segcheck/internal/config"
	"segcheck/internal/protocol"
	"segcheck/internal/segment"
)

// MustOpenStore opens a segment.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *segment.Store {
	t.Helper()

	store, err := segment.Open(cfg)
	if err != nil {
		t.Fatalf("segment.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Seed inserts one segment per id, backed by a short WAV file under the
// config's audio dir. Each segment spans one second starting at its position.
func Seed(t testing.TB, cfg *config.Config, store *segment.Store, ids ...string) []protocol.SegmentPayload {
	t.Helper()

	audioPath := filepath.Join(cfg.Paths.AudioDir, "source.wav")
	WriteWAV(t, audioPath, int64(len(ids)+1)*1000)

	segments := make([]protocol.SegmentPayload, 0, len(ids))
	for i, id := range ids {
		segments = append(segments, protocol.SegmentPayload{
			ID:          id,
			URL:         audioPath,
			SegmentType: "silence",
			Chunk:       protocol.Chunk{Start: int64(i) * 1000, End: int64(i)*1000 + 500},
		})
	}
	if _, err := store.Insert(context.Background(), segments); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return segments
}

// SetStatus saves a decision for id as user.
func SetStatus(t testing.TB, store *segment.Store, id, status, user string, labels ...string) *segment.Segment {
	t.Helper()

	anno := protocol.Annotation{
		SegmentPayload: protocol.SegmentPayload{ID: id},
		CurrentStatus:  protocol.Status{Name: status, Source: user},
		Labels:         labels,
	}
	seg, err := store.SaveAnnotation(context.Background(), anno)
	if err != nil {
		t.Fatalf("store.SaveAnnotation(%s): %v", id, err)
	}
	return seg
}
