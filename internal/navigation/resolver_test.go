package navigation_test

import (
	"errors"
	"testing"

	"segcheck/internal/navigation"
	"segcheck/internal/segment"
)

func catalogue(statuses ...string) []segment.Entry {
	out := make([]segment.Entry, len(statuses))
	for i, status := range statuses {
		out[i] = segment.Entry{ID: string(rune('a' + i)), Index: i + 1, Status: status}
	}
	return out
}

func next(t *testing.T, req navigation.Request) string {
	t.Helper()
	e, ok, err := navigation.Next(req)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if !ok {
		return ""
	}
	return e.ID
}

func TestFreshSessionStartsAtBoundary(t *testing.T) {
	cat := catalogue("ok", "unchecked", "unchecked", "ok")
	req := navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1}
	if got := next(t, req); got != "b" {
		t.Fatalf("forward fresh walk = %q, want b", got)
	}
	req.Step = -1
	if got := next(t, req); got != "c" {
		t.Fatalf("backward fresh walk = %q, want c", got)
	}
}

func TestWalkFromCurrentUsesUnfilteredOrder(t *testing.T) {
	cat := catalogue("unchecked", "ok", "unchecked", "unchecked")
	req := navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1, CurrID: "b"}
	if got := next(t, req); got != "c" {
		t.Fatalf("walk from b = %q, want c", got)
	}
	req.Step = -1
	if got := next(t, req); got != "a" {
		t.Fatalf("walk back from b = %q, want a", got)
	}
}

func TestWalkSkipsOtherSessionsLocks(t *testing.T) {
	cat := catalogue("unchecked", "unchecked", "unchecked")
	holders := map[string]string{"a": "s2", "b": "s1"}
	req := navigation.Request{Catalogue: cat, Holders: holders, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1}
	if got := next(t, req); got != "b" {
		t.Fatalf("expected own lock to stay eligible, got %q", got)
	}
	req.SessionID = "s3"
	if got := next(t, req); got != "c" {
		t.Fatalf("expected locked segments skipped, got %q", got)
	}
}

func TestWalkNeverWraps(t *testing.T) {
	cat := catalogue("unchecked", "ok", "ok")
	req := navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1, CurrID: "b"}
	if got := next(t, req); got != "" {
		t.Fatalf("expected no eligible segment, got %q", got)
	}
	req = navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("any"), Step: -1, CurrID: "a"}
	if got := next(t, req); got != "" {
		t.Fatalf("expected boundary stop, got %q", got)
	}
}

func TestUnknownCurrentTreatedAsAbsent(t *testing.T) {
	cat := catalogue("ok", "unchecked")
	req := navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1, CurrID: "zz"}
	if got := next(t, req); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
}

func TestRequestIndexJumpsIntoFilteredSequence(t *testing.T) {
	cat := catalogue("ok", "unchecked", "ok", "skip", "ok")
	base := navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("ok"), Step: 1, CurrID: "e"}

	cases := map[string]string{"first": "a", "last": "e", "2": "c", " LAST ": "e"}
	for index, want := range cases {
		req := base
		req.RequestIndex = index
		if got := next(t, req); got != want {
			t.Fatalf("request_index %q = %q, want %q", index, got, want)
		}
	}

	req := base
	req.Filter = segment.MustFilter("checked")
	req.RequestIndex = "4"
	if got := next(t, req); got != "e" {
		t.Fatalf("4th checked = %q, want e", got)
	}
}

func TestRequestIndexWalksPastLockedTarget(t *testing.T) {
	cat := catalogue("ok", "ok", "ok")
	req := navigation.Request{
		Catalogue:    cat,
		Holders:      map[string]string{"a": "s2"},
		SessionID:    "s1",
		Filter:       segment.MustFilter("ok"),
		Step:         1,
		RequestIndex: "first",
	}
	if got := next(t, req); got != "b" {
		t.Fatalf("expected b after locked first, got %q", got)
	}
	req.Holders = map[string]string{"c": "s2"}
	req.RequestIndex = "last"
	if got := next(t, req); got != "" {
		t.Fatalf("expected none past locked last, got %q", got)
	}
	req.Step = -1
	if got := next(t, req); got != "b" {
		t.Fatalf("expected b walking back from locked last, got %q", got)
	}
}

func TestRequestIndexValidation(t *testing.T) {
	cat := catalogue("ok", "unchecked")
	for _, index := range []string{"0", "3", "two", "-1"} {
		req := navigation.Request{Catalogue: cat, Filter: segment.MustFilter("any"), RequestIndex: index}
		if _, err := navigation.Resolve(req); !errors.Is(err, navigation.ErrInvalidIndex) {
			t.Fatalf("request_index %q: expected ErrInvalidIndex, got %v", index, err)
		}
	}
	req := navigation.Request{Catalogue: cat, Filter: segment.MustFilter("skip"), RequestIndex: "first"}
	if got := next(t, req); got != "" {
		t.Fatalf("expected no candidate for empty filtered sequence, got %q", got)
	}
}

func TestCandidatesYieldInWalkOrder(t *testing.T) {
	cat := catalogue("unchecked", "ok", "unchecked", "unchecked")
	candidates, err := navigation.Resolve(navigation.Request{Catalogue: cat, SessionID: "s1", Filter: segment.MustFilter("unchecked"), Step: 1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var got []string
	for e := range candidates {
		got = append(got, e.ID)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestStepForwardThenBackIsMonotonic(t *testing.T) {
	cat := catalogue("unchecked", "unchecked", "ok", "unchecked", "unchecked", "unchecked")
	holders := map[string]string{"b": "s2", "d": "s3"}
	filter := segment.MustFilter("unchecked")

	for start := range cat {
		origin := cat[start]
		forward := next(t, navigation.Request{Catalogue: cat, Holders: holders, SessionID: "s1", Filter: filter, Step: 1, CurrID: origin.ID})
		if forward == "" {
			continue
		}
		back := next(t, navigation.Request{Catalogue: cat, Holders: holders, SessionID: "s1", Filter: filter, Step: -1, CurrID: forward})
		if back == "" {
			continue
		}
		backIndex := int(back[0]-'a') + 1
		if backIndex > origin.Index {
			t.Fatalf("from %s forward %s back %s skipped past origin", origin.ID, forward, back)
		}
	}
}
