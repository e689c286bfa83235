package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"segcheck/internal/config"
	"segcheck/internal/daemon"
	"segcheck/internal/logging"
	"segcheck/internal/segment"
	"segcheck/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *segment.Store
	daemon     *daemon.Daemon
	addr       string
	configPath string
}

// setupCLITestEnv writes a config file and, when serve is true, starts a
// daemon seeded with ids.
func setupCLITestEnv(t *testing.T, serve bool, ids ...string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{cfg: cfg, configPath: configPath}
	if !serve {
		return env
	}

	store := testsupport.MustOpenStore(t, cfg)
	if len(ids) > 0 {
		testsupport.Seed(t, cfg, store, ids...)
	}
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	env.store = store
	env.daemon = d
	env.addr = d.Addr()
	return env
}

func runCLI(t *testing.T, args []string, addr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\naudio_dir = %q\n\n[server]\nbind = %q\noperator_token = %q\n\n[audio]\nextractor = %q\ndefault_context_ms = %d\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.AudioDir,
		cfg.Server.Bind,
		cfg.Server.OperatorToken,
		cfg.Audio.Extractor,
		cfg.Audio.DefaultContextMS,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
