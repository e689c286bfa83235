package coordinator_test

import (
	"errors"
	"fmt"
	"testing"

	"segcheck/internal/coordinator"
	"segcheck/internal/locks"
	"segcheck/internal/navigation"
	"segcheck/internal/segment"
	"segcheck/internal/session"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want coordinator.Kind
	}{
		{nil, ""},
		{&locks.ConflictError{SegmentID: "a", Holder: "s2"}, coordinator.KindLockConflict},
		{fmt.Errorf("wrap: %w", segment.ErrNotFound), coordinator.KindNotFound},
		{fmt.Errorf("wrap: %w", navigation.ErrInvalidIndex), coordinator.KindValidation},
		{&session.SessionError{SessionID: "s1", Reason: "rebind"}, coordinator.KindSession},
		{errors.New("database is locked"), coordinator.KindStore},
		{&coordinator.Error{Kind: coordinator.KindProtocol, Op: "dispatch"}, coordinator.KindProtocol},
	}
	for _, tc := range cases {
		if got := coordinator.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorUnwrapsAndClassifies(t *testing.T) {
	base := &locks.ConflictError{SegmentID: "a", Holder: "s2"}
	err := error(&coordinator.Error{Kind: coordinator.KindLockConflict, Op: "unlock", Err: base})
	if !errors.Is(err, locks.ErrLockConflict) {
		t.Fatalf("expected errors.Is to reach the lock sentinel")
	}
	var coordErr *coordinator.Error
	if !errors.As(err, &coordErr) || coordErr.ErrorKind() != "lock_conflict" {
		t.Fatalf("expected lock_conflict classification, got %v", err)
	}
	if coordErr.Retryable() {
		t.Fatalf("lock conflicts are not retryable")
	}
	if (&coordinator.Error{Kind: coordinator.KindStore}).Retryable() != true {
		t.Fatalf("store failures are retryable")
	}
}
