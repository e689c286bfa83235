package audio_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"segcheck/internal/audio"
	"segcheck/internal/protocol"
	"segcheck/internal/testsupport"
)

func TestWindowClampsAtSourceStart(t *testing.T) {
	offset, duration, rel := audio.Window(protocol.Chunk{Start: 500, End: 1500}, 1000, 1000)
	if offset != 0 {
		t.Fatalf("expected offset clamped to 0, got %d", offset)
	}
	if duration != 2500 {
		t.Fatalf("expected duration 2500, got %d", duration)
	}
	if rel.Start != 500 || rel.End != 1500 {
		t.Fatalf("unexpected relative chunk %+v", rel)
	}

	offset, duration, rel = audio.Window(protocol.Chunk{Start: 5000, End: 6000}, 1000, 250)
	if offset != 4000 || duration != 2250 {
		t.Fatalf("unexpected window offset=%d duration=%d", offset, duration)
	}
	if rel.Start != 1000 || rel.End != 2000 {
		t.Fatalf("unexpected relative chunk %+v", rel)
	}
}

func TestPassthroughReturnsWholeFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	size := testsupport.WriteWAV(t, filepath.Join(cfg.Paths.AudioDir, "clip.wav"), 250)

	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	chunk := protocol.Chunk{Start: 10, End: 200}
	got, err := ex.Extract(context.Background(), "clip.wav", chunk, 1000, 1000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(got.Audio)
	if err != nil {
		t.Fatalf("decode audio: %v", err)
	}
	if int64(len(raw)) != size {
		t.Fatalf("expected %d bytes, got %d", size, len(raw))
	}
	if got.Chunk != chunk || got.Offset != 0 {
		t.Fatalf("expected chunk passed through, got %+v offset %d", got.Chunk, got.Offset)
	}
	if got.FileType != "audio/wav" {
		t.Fatalf("unexpected file type %q", got.FileType)
	}
}

func TestPassthroughMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	_, err = ex.Extract(context.Background(), "file://"+filepath.Join(cfg.Paths.AudioDir, "nope.wav"), protocol.Chunk{End: 1}, 0, 0)
	if !errors.Is(err, audio.ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
}

func TestPassthroughDownloadsHTTPSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	local := filepath.Join(cfg.Paths.AudioDir, "remote.wav")
	size := testsupport.WriteWAV(t, local, 100)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/remote.wav" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, local)
	}))
	defer srv.Close()

	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	got, err := ex.Extract(context.Background(), srv.URL+"/audio/remote.wav", protocol.Chunk{End: 50}, 0, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(got.Audio)
	if int64(len(raw)) != size {
		t.Fatalf("expected %d downloaded bytes, got %d", size, len(raw))
	}

	_, err = ex.Extract(context.Background(), srv.URL+"/audio/missing.wav", protocol.Chunk{End: 50}, 0, 0)
	if !errors.Is(err, audio.ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing for 404, got %v", err)
	}
}

func TestFFmpegExtractorReportsOffset(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Audio.Extractor = "ffmpeg"
	source := filepath.Join(cfg.Paths.AudioDir, "long.wav")
	testsupport.WriteWAV(t, source, 3000)

	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	got, err := ex.Extract(context.Background(), source, protocol.Chunk{Start: 1500, End: 2000}, 500, 500)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Offset != 1000 {
		t.Fatalf("expected offset 1000, got %d", got.Offset)
	}
	if got.Chunk.Start != 500 || got.Chunk.End != 1000 {
		t.Fatalf("unexpected relative chunk %+v", got.Chunk)
	}
	if got.Audio == "" {
		t.Fatalf("expected encoded audio")
	}
}

func TestFFmpegFailureSurfacesOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Audio.Extractor = "ffmpeg"
	failing := filepath.Join(testsupport.BaseDir(cfg), "ffmpeg-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'invalid data' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cfg.Audio.FFmpegBinary = failing
	source := filepath.Join(cfg.Paths.AudioDir, "a.wav")
	testsupport.WriteWAV(t, source, 100)

	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	if _, err := ex.Extract(context.Background(), source, protocol.Chunk{End: 50}, 0, 0); err == nil {
		t.Fatalf("expected ffmpeg failure")
	}
}

func TestNewRejectsUnknownExtractor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Audio.Extractor = "sox"
	if _, err := audio.New(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown extractor")
	}
}

func TestMimeType(t *testing.T) {
	cases := map[string]string{
		"wav":  "audio/wav",
		".MP3": "audio/mpeg",
		"":     "application/octet-stream",
	}
	for in, want := range cases {
		if got := audio.MimeType(in); got != want {
			t.Fatalf("MimeType(%q) = %q, want %q", in, got, want)
		}
	}
}
