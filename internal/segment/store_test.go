package segment_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"segcheck/internal/protocol"
	"segcheck/internal/segment"
	"segcheck/internal/testsupport"
)

func TestInsertAssignsCatalogueOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a", "b", "c")

	ctx := context.Background()
	segments, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, want := range []string{"a", "b", "c"} {
		if segments[i].ID != want || segments[i].Index != i+1 {
			t.Fatalf("segment %d = %s/%d, want %s/%d", i, segments[i].ID, segments[i].Index, want, i+1)
		}
		if segments[i].CurrentStatus.Name != protocol.StatusUnchecked {
			t.Fatalf("expected new segment unchecked, got %q", segments[i].CurrentStatus.Name)
		}
	}

	more := []protocol.SegmentPayload{{ID: "d", URL: "x.wav", SegmentType: "silence", Chunk: protocol.Chunk{Start: 0, End: 10}}}
	if _, err := store.Insert(ctx, more); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	seg, err := store.Get(ctx, "d")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if seg.Index != 4 {
		t.Fatalf("expected appended index 4, got %d", seg.Index)
	}
}

func TestInsertRejectsDuplicatesAndInvalid(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a")

	ctx := context.Background()
	dup := []protocol.SegmentPayload{{ID: "a", URL: "x.wav", SegmentType: "silence"}}
	if _, err := store.Insert(ctx, dup); !errors.Is(err, segment.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	inBatch := []protocol.SegmentPayload{
		{ID: "x", URL: "x.wav", SegmentType: "silence"},
		{ID: "x", URL: "x.wav", SegmentType: "silence"},
	}
	if _, err := store.Insert(ctx, inBatch); !errors.Is(err, segment.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for in-batch duplicate, got %v", err)
	}
	invalid := []protocol.SegmentPayload{{ID: "y", URL: "x.wav", SegmentType: "silence", Chunk: protocol.Chunk{Start: 10, End: 1}}}
	if _, err := store.Insert(ctx, invalid); !errors.Is(err, segment.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if count, _ := store.Count(ctx); count != 1 {
		t.Fatalf("expected rejected batches to leave 1 segment, got %d", count)
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, segment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAnnotationHistoryRule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a")

	first := testsupport.SetStatus(t, store, "a", protocol.StatusOK, "anna")
	if len(first.StatusHistory) != 0 {
		t.Fatalf("saving over unchecked must not grow history, got %+v", first.StatusHistory)
	}
	if first.CurrentStatus.Name != protocol.StatusOK || first.CurrentStatus.Source != "anna" {
		t.Fatalf("unexpected current status: %+v", first.CurrentStatus)
	}
	if first.CurrentStatus.Timestamp == "" {
		t.Fatal("expected timestamp to be filled")
	}

	second := testsupport.SetStatus(t, store, "a", protocol.StatusSkip, "bert")
	if len(second.StatusHistory) != 1 || second.StatusHistory[0] != first.CurrentStatus {
		t.Fatalf("expected previous status appended, got %+v", second.StatusHistory)
	}

	third := testsupport.SetStatus(t, store, "a", protocol.StatusOK, "anna")
	if len(third.StatusHistory) != 2 || third.StatusHistory[1] != second.CurrentStatus {
		t.Fatalf("expected two history entries, got %+v", third.StatusHistory)
	}
	for _, past := range third.StatusHistory {
		if past.Name == protocol.StatusUnchecked {
			t.Fatalf("history must never contain unchecked: %+v", third.StatusHistory)
		}
	}
}

func TestSaveAnnotationIgnoresClientHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a")

	anno := protocol.Annotation{
		SegmentPayload: protocol.SegmentPayload{UUID: "a"},
		CurrentStatus:  protocol.Status{Name: "OK", Source: "anna"},
		StatusHistory:  []protocol.Status{{Name: protocol.StatusUnchecked}, {Name: "skip", Source: "forged"}},
		Labels:         []string{" Bad  Sample ", "bad sample", ""},
		Comment:        "noisy",
	}
	saved, err := store.SaveAnnotation(context.Background(), anno)
	if err != nil {
		t.Fatalf("SaveAnnotation failed: %v", err)
	}
	if len(saved.StatusHistory) != 0 {
		t.Fatalf("client-supplied history must be ignored, got %+v", saved.StatusHistory)
	}
	if len(saved.Labels) != 1 || saved.Labels[0] != protocol.LabelBadSample {
		t.Fatalf("expected normalized labels, got %v", saved.Labels)
	}
	if saved.Comment != "noisy" || saved.CurrentStatus.Name != protocol.StatusOK {
		t.Fatalf("unexpected saved record: %+v", saved)
	}
}

func TestSaveAnnotationValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a")
	ctx := context.Background()

	cases := []struct {
		name string
		anno protocol.Annotation
		want error
	}{
		{"no id", protocol.Annotation{CurrentStatus: protocol.Status{Name: "ok"}}, segment.ErrInvalid},
		{"unknown id", protocol.Annotation{SegmentPayload: protocol.SegmentPayload{ID: "zz"}, CurrentStatus: protocol.Status{Name: "ok"}}, segment.ErrNotFound},
		{"bad status", protocol.Annotation{SegmentPayload: protocol.SegmentPayload{ID: "a"}, CurrentStatus: protocol.Status{Name: "great"}}, segment.ErrUnknownStatus},
		{"url mismatch", protocol.Annotation{SegmentPayload: protocol.SegmentPayload{ID: "a", URL: "other.wav"}, CurrentStatus: protocol.Status{Name: "ok"}}, segment.ErrInvalid},
		{"bad chunk", protocol.Annotation{SegmentPayload: protocol.SegmentPayload{ID: "a", Chunk: protocol.Chunk{Start: 9, End: 3}}, CurrentStatus: protocol.Status{Name: "ok"}}, segment.ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.SaveAnnotation(ctx, tc.anno); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCatalogueReflectsSaves(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a", "b")
	ctx := context.Background()

	before, err := store.Catalogue(ctx)
	if err != nil {
		t.Fatalf("Catalogue failed: %v", err)
	}
	if len(before) != 2 || before[0].Status != protocol.StatusUnchecked {
		t.Fatalf("unexpected catalogue: %+v", before)
	}

	testsupport.SetStatus(t, store, "b", protocol.StatusSkip, "anna", "bad sample")

	after, err := store.Catalogue(ctx)
	if err != nil {
		t.Fatalf("Catalogue failed: %v", err)
	}
	if after[1].Status != protocol.StatusSkip || len(after[1].Labels) != 1 {
		t.Fatalf("expected cached entry to be refreshed, got %+v", after[1])
	}
	if before[1].Status != protocol.StatusUnchecked {
		t.Fatal("earlier catalogue copy must not change")
	}
}

func TestStatsCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, "a", "b", "c", "d")
	testsupport.SetStatus(t, store, "a", protocol.StatusOK, "anna")
	testsupport.SetStatus(t, store, "b", protocol.StatusSkip, "bert", "bad sample")
	testsupport.SetStatus(t, store, "c", protocol.StatusSkip, "anna")

	ctx := context.Background()
	if _, err := store.SaveAnnotation(ctx, protocol.Annotation{
		SegmentPayload: protocol.SegmentPayload{ID: "c"},
		CurrentStatus:  protocol.Status{Name: "skip", Source: "anna"},
		Comment:        "clipped",
	}); err != nil {
		t.Fatalf("SaveAnnotation failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := map[string]int{
		"total":             4,
		"checked":           3,
		"unchecked":         1,
		"status:ok":         1,
		"status:skip":       1,
		"status:bad sample": 1,
		"checked by:anna":   2,
		"checked by:bert":   1,
		"label:bad sample":  1,
		"comment":           1,
	}
	for key, value := range want {
		if stats[key] != value {
			t.Fatalf("stats[%q] = %d, want %d (all: %v)", key, stats[key], value, stats)
		}
	}
}

func TestImportAndExportRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := t.TempDir()
	testsupport.WriteJSON(t, filepath.Join(project, "source", "001.json"),
		`{"id":"s1","url":"a.wav","segment_type":"silence","chunk":{"start":0,"end":100}}`)
	testsupport.WriteJSON(t, filepath.Join(project, "source", "002.json"),
		`{"url":"b.wav","segment_type":"silence","chunks":[{"start":0,"end":50},{"start":60,"end":90}]}`)
	testsupport.WriteJSON(t, filepath.Join(project, "annotation", "s1.json"),
		`{"id":"s1","url":"a.wav","segment_type":"silence","chunk":{"start":5,"end":100},
		  "current_status":{"name":"skip","source":"bert"},
		  "status_history":[{"name":"ok","source":"anna"}],"labels":["bad sample"],"comment":"hum"}`)

	result, err := store.ImportDir(ctx, project)
	if err != nil {
		t.Fatalf("ImportDir failed: %v", err)
	}
	if result.Segments != 3 || result.Annotations != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}

	seg, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if seg.CurrentStatus.Name != "skip" || len(seg.StatusHistory) != 1 || seg.Chunk.Start != 5 {
		t.Fatalf("annotation not restored: %+v", seg)
	}

	out := t.TempDir()
	written, err := store.Export(ctx, out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 exported annotation, got %d", written)
	}
	if _, err := os.Stat(filepath.Join(out, "s1.json")); err != nil {
		t.Fatalf("expected exported file: %v", err)
	}
	annotations, err := segment.LoadAnnotationDir(out)
	if err != nil {
		t.Fatalf("LoadAnnotationDir failed: %v", err)
	}
	if len(annotations) != 1 || annotations[0].Comment != "hum" {
		t.Fatalf("unexpected exported annotations: %+v", annotations)
	}
}

func TestRestoreRejectsUncheckedHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	segs := testsupport.Seed(t, cfg, store, "a")

	anno := protocol.Annotation{
		SegmentPayload: segs[0],
		CurrentStatus:  protocol.Status{Name: "ok"},
		StatusHistory:  []protocol.Status{{Name: "unchecked"}},
	}
	if err := store.RestoreAnnotation(context.Background(), anno); !errors.Is(err, segment.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := segment.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.Seed(t, cfg, store, "a")
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if count, err := reopened.Count(context.Background()); err != nil || count != 1 {
		t.Fatalf("expected 1 segment after reopen, got %d (%v)", count, err)
	}
}
