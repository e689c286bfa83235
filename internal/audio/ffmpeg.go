package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// FFmpeg cuts chunks with the ffmpeg binary.
type FFmpeg struct {
	Binary   string
	Encoding string

	sources sourceResolver
	logger  *slog.Logger
}

// Window computes the extraction window for chunk widened by the context.
// The returned chunk is relative to offset.
func Window(chunk protocol.Chunk, leftCtx, rightCtx int64) (offset, duration int64, relative protocol.Chunk) {
	offset = max(chunk.Start-max(leftCtx, 0), 0)
	end := chunk.End + max(rightCtx, 0)
	duration = end - offset
	relative = protocol.Chunk{Start: chunk.Start - offset, End: chunk.End - offset}
	return offset, duration, relative
}

func (f *FFmpeg) Extract(ctx context.Context, url string, chunk protocol.Chunk, leftCtx, rightCtx int64) (protocol.AudioChunk, error) {
	if err := chunk.Validate(); err != nil {
		return protocol.AudioChunk{}, fmt.Errorf("extract audio: %w", err)
	}
	source, cleanup, err := f.sources.localPath(ctx, url)
	defer cleanup()
	if err != nil {
		return protocol.AudioChunk{}, err
	}

	offset, duration, relative := Window(chunk, leftCtx, rightCtx)
	encoding := strings.TrimPrefix(f.Encoding, ".")
	if encoding == "" {
		encoding = "wav"
	}
	dest := tempPath("." + encoding)
	defer os.Remove(dest)

	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", millisToSeconds(offset),
		"-t", millisToSeconds(duration),
		"-i", source,
		"-f", encoding,
		dest,
	}
	started := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return protocol.AudioChunk{}, fmt.Errorf("ffmpeg extract chunk: %w: %s", err, strings.TrimSpace(string(output)))
	}

	audio, err := encodeFile(dest)
	if err != nil {
		return protocol.AudioChunk{}, err
	}
	if f.logger != nil {
		f.logger.Debug("audio chunk extracted",
			logging.String("source", source),
			logging.Int64("offset_ms", offset),
			logging.Int64("duration_ms", duration),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return protocol.AudioChunk{
		Audio:    audio,
		FileType: MimeType(encoding),
		Chunk:    relative,
		Offset:   offset,
	}, nil
}

func millisToSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}
