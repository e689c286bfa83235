package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// ExplicitUnlock releases one segment held by the session.
func (c *Coordinator) ExplicitUnlock(ctx context.Context, sessionID string, req protocol.UnlockPayload) (protocol.Response, error) {
	const op = "unlock"
	id := req.SegmentID()
	if id == "" {
		return protocol.Response{}, newError(KindValidation, op, errors.New("no segment id"))
	}

	c.mu.Lock()
	if _, err := c.session(op, sessionID); err != nil {
		c.mu.Unlock()
		return protocol.Response{}, err
	}
	if err := c.sessions.BindUser(sessionID, strings.TrimSpace(req.UserName)); err != nil {
		c.mu.Unlock()
		return protocol.Response{}, classify(op, err)
	}
	if err := c.locks.Release(id, sessionID); err != nil {
		c.mu.Unlock()
		return protocol.Response{}, newError(KindLockConflict, op, err)
	}
	c.sessions.ClearHeldIf(sessionID, id)
	c.mu.Unlock()

	logging.WithContext(ctx, c.logger).Info("segment unlocked",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldSegmentID, id),
	)
	resp, err := protocol.NewResponse(protocol.TypeExplicitUnlockCompleted, protocol.UnlockResult{IDs: []string{id}, Count: 1})
	if err != nil {
		return protocol.Response{}, newError(KindProtocol, op, err)
	}
	resp.Info = fmt.Sprintf("unlocked %s", id)
	return resp, nil
}

// UnlockAll releases every lock and clears every session's held segment.
// Sessions other than origin are notified. origin may be empty when the
// request did not come from a session.
func (c *Coordinator) UnlockAll(ctx context.Context, origin, requestedBy string) (protocol.Response, error) {
	const op = "unlock_all"
	requestedBy = strings.TrimSpace(requestedBy)

	c.mu.Lock()
	if origin != "" {
		sess, err := c.session(op, origin)
		if err != nil {
			c.mu.Unlock()
			return protocol.Response{}, err
		}
		if requestedBy == "" {
			requestedBy = sess.User
		}
	}
	if requestedBy == "" {
		c.mu.Unlock()
		return protocol.Response{}, newError(KindValidation, op, errors.New("no user name"))
	}
	released := c.locks.ReleaseAll()
	c.sessions.ClearHeldAll()
	c.mu.Unlock()

	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "all segment locks released", "unlock_all",
		logging.String(logging.FieldUser, requestedBy),
		logging.Int("released", released),
		logging.String(logging.FieldErrorHint, "connected annotators must request a new segment"),
		logging.String(logging.FieldImpact, "every session lost its assignment"),
	)
	if c.notifier != nil {
		c.notifier.Broadcast(protocol.InfoResponse(protocol.TypeInfo,
			fmt.Sprintf("all segments were unlocked by %s; request a new segment to continue", requestedBy)), origin)
	}

	resp, err := protocol.NewResponse(protocol.TypeExplicitUnlockCompleted, protocol.UnlockResult{Count: released})
	if err != nil {
		return protocol.Response{}, newError(KindProtocol, op, err)
	}
	resp.Info = fmt.Sprintf("unlocked %d segments", released)
	return resp, nil
}
