package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLocks(); err != nil {
		return err
	}
	if err := c.validateCoordinator(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q is not a host:port address: %w", c.Server.Bind, err)
	}
	if err := ensurePositiveMap(map[string]int{
		"server.keep_alive_interval": c.Server.KeepAliveInterval,
		"server.idle_timeout":        c.Server.IdleTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
	}); err != nil {
		return err
	}
	if c.Server.IdleTimeout <= c.Server.KeepAliveInterval {
		return errors.New("server.idle_timeout must be greater than server.keep_alive_interval")
	}
	if c.Server.MaxMessageBytes <= 0 {
		return errors.New("server.max_message_bytes must be positive")
	}
	return nil
}

func (c *Config) validateLocks() error {
	if c.Locks.IdleTimeout < 0 {
		return errors.New("locks.idle_timeout must be >= 0 (0 disables reaping)")
	}
	if c.Locks.IdleTimeout > 0 && c.Locks.ReapInterval <= 0 {
		return errors.New("locks.reap_interval must be positive when locks.idle_timeout is set")
	}
	return nil
}

func (c *Config) validateCoordinator() error {
	if c.Coordinator.AcquireRetries < 1 {
		return errors.New("coordinator.acquire_retries must be >= 1")
	}
	return nil
}

func (c *Config) validateAudio() error {
	switch c.Audio.Extractor {
	case extractorFFmpeg, extractorPassthrough:
	default:
		return fmt.Errorf("audio.extractor: unsupported value %q (want %q or %q)", c.Audio.Extractor, extractorFFmpeg, extractorPassthrough)
	}
	if c.Audio.DefaultContextMS < 0 {
		return errors.New("audio.default_context_ms must be >= 0")
	}
	if c.Audio.DownloadTimeout <= 0 {
		return errors.New("audio.download_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
