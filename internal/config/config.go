package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"segcheck/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	AudioDir  string `toml:"audio_dir"`
	StaticDir string `toml:"static_dir"`
}

// Server contains the persistent-connection transport settings.
type Server struct {
	Bind                string   `toml:"bind"`
	KeepAliveInterval   int      `toml:"keep_alive_interval"`
	IdleTimeout         int      `toml:"idle_timeout"`
	WriteTimeout        int      `toml:"write_timeout"`
	MaxMessageBytes     int64    `toml:"max_message_bytes"`
	SendBuffer          int      `toml:"send_buffer"`
	AllowedOrigins      []string `toml:"allowed_origins"`
	CloseOnSessionError bool     `toml:"close_on_session_error"`
	OperatorToken       string   `toml:"operator_token"`
}

// Locks contains the idle-lock reaper settings. An idle timeout of zero
// disables reaping; locks are then released only by unlock or disconnect.
type Locks struct {
	IdleTimeout  int `toml:"idle_timeout"`
	ReapInterval int `toml:"reap_interval"`
}

// Coordinator contains request handling settings.
type Coordinator struct {
	AcquireRetries int `toml:"acquire_retries"`
}

// Audio contains settings for the audio extraction collaborator.
type Audio struct {
	Extractor        string `toml:"extractor"`
	Encoding         string `toml:"encoding"`
	DefaultContextMS int64  `toml:"default_context_ms"`
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	DownloadTimeout  int    `toml:"download_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for segcheck.
//
// Configuration sections by subsystem:
//   - Paths: database, log, audio and static asset directories
//   - Server: bind address, keep-alive cadence and connection limits
//   - Locks: idle lock reaping
//   - Coordinator: acquisition retry budget
//   - Audio: chunk extraction backend and context window
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Server      Server      `toml:"server"`
	Locks       Locks       `toml:"locks"`
	Coordinator Coordinator `toml:"coordinator"`
	Audio       Audio       `toml:"audio"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/segcheck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("segcheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the segment database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "segments.db")
}

// LockFilePath returns the single-instance lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "segcheck.lock")
}

// KeepAliveInterval returns the server keep-alive cadence.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.Server.KeepAliveInterval) * time.Second
}

// IdleTimeout returns how long a connection may stay silent before teardown.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeout) * time.Second
}

// WriteTimeout returns the per-frame write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// LockIdleTimeout returns the lock reaper timeout, zero when disabled.
func (c *Config) LockIdleTimeout() time.Duration {
	return time.Duration(c.Locks.IdleTimeout) * time.Second
}

// LockReapInterval returns how often the reaper scans the lock table.
func (c *Config) LockReapInterval() time.Duration {
	return time.Duration(c.Locks.ReapInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
