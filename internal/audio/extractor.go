package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"segcheck/internal/config"
	"segcheck/internal/fileutil"
	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// ErrSourceMissing reports a segment url that does not resolve to readable audio.
var ErrSourceMissing = errors.New("audio source missing")

// Extractor produces the audio for one segment. leftCtx and rightCtx widen
// the window on each side, in milliseconds.
type Extractor interface {
	Extract(ctx context.Context, url string, chunk protocol.Chunk, leftCtx, rightCtx int64) (protocol.AudioChunk, error)
}

// New returns the extractor selected by audio.extractor.
func New(cfg *config.Config, logger *slog.Logger) (Extractor, error) {
	if cfg == nil {
		return nil, errors.New("audio: config is required")
	}
	logger = logging.NewComponentLogger(logger, "audio")
	src := sourceResolver{
		audioDir: cfg.Paths.AudioDir,
		client:   &http.Client{Timeout: time.Duration(cfg.Audio.DownloadTimeout) * time.Second},
	}
	switch cfg.Audio.Extractor {
	case "ffmpeg":
		return &FFmpeg{
			Binary:   cfg.Audio.FFmpegBinary,
			Encoding: cfg.Audio.Encoding,
			sources:  src,
			logger:   logger,
		}, nil
	case "passthrough":
		return &Passthrough{sources: src}, nil
	default:
		return nil, fmt.Errorf("audio: unsupported extractor %q", cfg.Audio.Extractor)
	}
}

type sourceResolver struct {
	audioDir string
	client   *http.Client
}

// localPath returns a readable path for ref. The cleanup func removes any
// temporary download and is always safe to call.
func (s sourceResolver) localPath(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", noop, fmt.Errorf("%w: empty url", ErrSourceMissing)
	}

	parsed, err := url.Parse(ref)
	if err == nil {
		switch strings.ToLower(parsed.Scheme) {
		case "http", "https":
			return s.download(ctx, parsed)
		case "file":
			return checkReadable(parsed.Path, noop)
		}
	}

	path := ref
	if !filepath.IsAbs(path) && s.audioDir != "" {
		path = filepath.Join(s.audioDir, path)
	}
	return checkReadable(path, noop)
}

func checkReadable(path string, cleanup func()) (string, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", cleanup, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return "", cleanup, fmt.Errorf("stat audio source: %w", err)
	}
	if info.IsDir() {
		return "", cleanup, fmt.Errorf("%w: %s is a directory", ErrSourceMissing, path)
	}
	return path, cleanup, nil
}

func (s sourceResolver) download(ctx context.Context, ref *url.URL) (string, func(), error) {
	noop := func() {}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return "", noop, fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("download %s: %w", ref.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("%w: download %s returned %d", ErrSourceMissing, ref.Redacted(), resp.StatusCode)
	}

	tmp := tempPath(filepath.Ext(ref.Path))
	_, err = fileutil.WriteStreamAtomic(tmp, func(w io.Writer) (int64, error) {
		return io.Copy(w, resp.Body)
	}, 0o600)
	if err != nil {
		return "", noop, fmt.Errorf("download %s: %w", ref.Redacted(), err)
	}
	cleanup := func() { _ = os.Remove(tmp) }
	return tmp, cleanup, nil
}

func tempPath(ext string) string {
	return filepath.Join(os.TempDir(), "segcheck-"+uuid.NewString()+ext)
}

var mimeTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"opus": "audio/ogg",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"webm": "audio/webm",
}

// MimeType maps an encoding name or file extension to a mime type.
func MimeType(encoding string) string {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(encoding), "."))
	if known, ok := mimeTypes[ext]; ok {
		return known
	}
	if ext != "" {
		if guessed := mime.TypeByExtension("." + ext); guessed != "" {
			return guessed
		}
	}
	return "application/octet-stream"
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
