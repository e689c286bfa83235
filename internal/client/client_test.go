package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"segcheck/internal/audio"
	"segcheck/internal/client"
	"segcheck/internal/coordinator"
	"segcheck/internal/protocol"
	"segcheck/internal/server"
	"segcheck/internal/testsupport"
)

func startServer(t *testing.T, ids ...string) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Seed(t, cfg, store, ids...)
	ex, err := audio.New(cfg, nil)
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	hub := server.NewHub()
	coord := coordinator.New(cfg, store, ex, nil, coordinator.WithNotifier(hub))
	srv, err := server.New(cfg, coord, hub, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return ts.URL
}

func TestClientAnnotationRoundTrip(t *testing.T) {
	addr := startServer(t, "A", "B")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr, "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	query := protocol.Query{UserName: "u1", StepSize: 1, RequestStatus: protocol.StatusFilter{protocol.StatusUnchecked}}
	seg, ok, err := c.Next(ctx, query)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if seg.ID != "A" {
		t.Fatalf("expected A, got %s", seg.ID)
	}
	if c.ID() == "" {
		t.Fatalf("expected server-assigned session id")
	}

	anno := seg.Annotation
	anno.CurrentStatus = protocol.Status{Name: protocol.StatusOK}
	query.CurrID = seg.ID
	next, ok, err := c.SaveUnlockAndNext(ctx, protocol.SaveUnlockAndNext{Annotation: anno, Query: query})
	if err != nil || !ok || next.ID != "B" {
		t.Fatalf("SaveUnlockAndNext: id=%s ok=%v err=%v", next.ID, ok, err)
	}

	if err := c.Unlock(ctx, "B", "u1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	var respErr *client.ResponseError
	if err := c.Unlock(ctx, "B", "u1"); !errors.As(err, &respErr) || respErr.Kind != string(coordinator.KindLockConflict) {
		t.Fatalf("expected lock conflict on second unlock, got %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["checked"] != 1 || stats["status:ok"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestOperatorHTTPHelpers(t *testing.T) {
	addr := startServer(t, "A")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr, "c1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if _, ok, err := c.Next(ctx, protocol.Query{UserName: "u1"}); err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}

	status, err := client.FetchStatus(ctx, addr)
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if len(status.Locks) != 1 || status.Locks[0].Holder != "c1" {
		t.Fatalf("unexpected status %+v", status)
	}

	result, err := client.UnlockAll(ctx, addr, "admin", "")
	if err != nil {
		t.Fatalf("UnlockAll: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected one lock released, got %+v", result)
	}

	stats, err := client.FetchStats(ctx, addr)
	if err != nil {
		t.Fatalf("FetchStats: %v", err)
	}
	if stats["locked"] != 0 || stats["total"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestDialRequiresAddress(t *testing.T) {
	if _, err := client.Dial(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
