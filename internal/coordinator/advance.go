package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"segcheck/internal/locks"
	"segcheck/internal/logging"
	"segcheck/internal/navigation"
	"segcheck/internal/protocol"
	"segcheck/internal/segment"
	"segcheck/internal/session"
)

// AdvanceRequest is a next or saveunlockandnext request.
type AdvanceRequest struct {
	Query      protocol.Query
	Annotation *protocol.Annotation
	Unlock     *protocol.UnlockPayload
}

// Advance optionally saves an annotation, releases the session's lock and
// assigns the next eligible segment. It returns an audio_chunk response on
// assignment and no_audio_chunk when nothing is eligible.
func (c *Coordinator) Advance(ctx context.Context, sessionID string, req AdvanceRequest) (protocol.Response, error) {
	op := string(protocol.TypeNext)
	if req.Annotation != nil {
		op = string(protocol.TypeSaveUnlockAndNext)
	}

	seg, reason, err := c.advanceLocked(ctx, op, sessionID, req)
	if err != nil {
		return protocol.Response{}, err
	}
	if seg == nil {
		return protocol.InfoResponse(protocol.TypeNoAudioChunk, reason), nil
	}

	logger := logging.WithContext(ctx, c.logger).With(
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldSegmentID, seg.ID),
	)
	contextMS := c.defaultContext
	if req.Query.Context != nil {
		contextMS = max(*req.Query.Context, 0)
	}
	chunk, err := c.extractor.Extract(ctx, seg.URL, seg.Chunk, contextMS, contextMS)
	if err != nil {
		c.abandon(sessionID, seg.ID)
		audioErr := newError(KindAudio, assignOp(op, req), err)
		logging.WarnWithContext(logger, "audio extraction failed", "audio_extract_failed",
			logging.Error(audioErr),
			logging.String("url", seg.URL),
			logging.String(logging.FieldErrorHint, "check the segment url and the audio extractor settings"),
			logging.String(logging.FieldImpact, "segment lock released; client should send next"),
		)
		return protocol.Response{}, audioErr
	}

	if !c.stillHeld(sessionID, seg.ID) {
		return protocol.Response{}, newError(KindLockConflict, assignOp(op, req),
			fmt.Errorf("%w: lock on %s released during extraction", locks.ErrNotLocked, seg.ID))
	}

	payload := protocol.NewAudioChunkPayload(seg.Annotation(), chunk)
	resp, err := protocol.NewResponse(protocol.TypeAudioChunk, payload)
	if err != nil {
		c.abandon(sessionID, seg.ID)
		return protocol.Response{}, newError(KindProtocol, op, err)
	}
	logger.Debug("segment assigned", logging.Int("index", seg.Index), logging.Int64("offset_ms", chunk.Offset))
	return resp, nil
}

// assignOp names the failed step of an assignment that ran after a save
// committed, so the client does not resend the annotation.
func assignOp(op string, req AdvanceRequest) string {
	if req.Annotation == nil {
		return op + ": extract audio"
	}
	return fmt.Sprintf("%s: annotation for %s saved; extract audio", op, req.Annotation.SegmentID())
}

// advanceLocked runs the save, release and acquire steps under the
// coordinator mutex. Every check that can reject the request runs before the
// save or the release, so a failed request leaves the session holding what it
// held. A nil segment with a nil error means nothing was eligible; reason
// describes why.
func (c *Coordinator) advanceLocked(ctx context.Context, op, sessionID string, req AdvanceRequest) (*segment.Segment, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.session(op, sessionID)
	if err != nil {
		return nil, "", err
	}
	user := strings.TrimSpace(req.Query.UserName)
	if user == "" && req.Annotation != nil {
		user = strings.TrimSpace(req.Annotation.CurrentStatus.Source)
	}
	if req.Annotation != nil && user == "" {
		return nil, "", newError(KindValidation, op, errors.New("no user name"))
	}
	if err := c.sessions.BindUser(sessionID, user); err != nil {
		return nil, "", classify(op, err)
	}

	filter, err := segment.ParseFilter(req.Query.RequestStatus)
	if err != nil {
		return nil, "", classify(op, err)
	}
	released, err := c.releaseTargets(op, sess, req.Unlock)
	if err != nil {
		return nil, "", err
	}
	catalogue, err := c.store.Catalogue(ctx)
	if err != nil {
		return nil, "", newError(KindStore, op+": load catalogue", err)
	}
	nav := navigation.Request{
		Catalogue:    projectSave(catalogue, req.Annotation),
		Holders:      withoutHeld(c.locks.Holders(), released),
		SessionID:    sessionID,
		Filter:       filter,
		Step:         req.Query.Step(),
		RequestIndex: req.Query.RequestIndex,
		CurrID:       req.Query.CurrID,
	}
	if _, err := navigation.Resolve(nav); err != nil {
		return nil, "", classify(op, err)
	}

	if req.Annotation != nil {
		if err := c.saveLocked(ctx, op, sessionID, user, *req.Annotation); err != nil {
			return nil, "", err
		}
	}
	c.releaseLocked(sess.ID, released)

	if catalogue, err = c.store.Catalogue(ctx); err == nil {
		nav.Catalogue = catalogue
	}
	nav.Holders = c.locks.Holders()
	candidates, err := navigation.Resolve(nav)
	if err != nil {
		return nil, fmt.Sprintf("request_index %s no longer within %s segments", req.Query.RequestIndex, filter), nil
	}

	attempts := 0
	for entry := range candidates {
		if attempts >= c.acquireRetries {
			break
		}
		attempts++
		if err := c.locks.Acquire(entry.ID, sessionID); err != nil {
			continue
		}
		seg, err := c.store.Get(ctx, entry.ID)
		if err != nil {
			_ = c.locks.Release(entry.ID, sessionID)
			return nil, "", classify(op+": load segment", err)
		}
		_ = c.sessions.SetHeld(sessionID, seg.ID)
		return seg, "", nil
	}

	reason := fmt.Sprintf("no %s segment available", filter)
	if attempts >= c.acquireRetries {
		reason = fmt.Sprintf("no %s segment could be locked after %d attempts", filter, attempts)
	}
	return nil, reason, nil
}

// projectSave returns the catalogue as it will read once anno is saved.
func projectSave(catalogue []segment.Entry, anno *protocol.Annotation) []segment.Entry {
	if anno == nil {
		return catalogue
	}
	id := anno.SegmentID()
	for i, e := range catalogue {
		if e.ID == id {
			catalogue[i].Status = strings.ToLower(strings.TrimSpace(anno.CurrentStatus.Name))
			catalogue[i].Labels = segment.NormalizeLabels(anno.Labels)
			break
		}
	}
	return catalogue
}

func withoutHeld(holders map[string]string, ids []string) map[string]string {
	for _, id := range ids {
		delete(holders, id)
	}
	return holders
}

func (c *Coordinator) saveLocked(ctx context.Context, op, sessionID, user string, anno protocol.Annotation) error {
	id := anno.SegmentID()
	if id == "" {
		return newError(KindValidation, op, errors.New("annotation has no id"))
	}
	holder, locked := c.locks.Holder(id)
	if !locked {
		return newError(KindLockConflict, op, fmt.Errorf("%w: %s", locks.ErrNotLocked, id))
	}
	if holder != sessionID {
		return newError(KindLockConflict, op, &locks.ConflictError{SegmentID: id, Holder: holder})
	}
	if strings.TrimSpace(anno.CurrentStatus.Source) == "" {
		anno.CurrentStatus.Source = user
	}

	saved, err := c.store.SaveAnnotation(ctx, anno)
	if err != nil {
		kind := classify(op, err)
		logging.WarnWithContext(c.logger, "annotation save failed", "annotation_save_failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldSegmentID, id),
			logging.Error(kind),
			logging.String(logging.FieldErrorHint, "client keeps the lock and may resend the save"),
		)
		return kind
	}
	c.logger.Info("annotation saved",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldSegmentID, saved.ID),
		logging.String(logging.FieldUser, user),
		logging.String("status", saved.CurrentStatus.Name),
		logging.Int("history", len(saved.StatusHistory)),
	)
	return nil
}

// releaseTargets lists the locks an advance gives up: the explicit unlock
// target, if any, and whatever the session still holds. A target held by
// another session is a conflict; one that is already gone is skipped.
func (c *Coordinator) releaseTargets(op string, sess session.Session, target *protocol.UnlockPayload) ([]string, error) {
	ids := make([]string, 0, 2)
	if target != nil {
		if id := target.SegmentID(); id != "" {
			holder, locked := c.locks.Holder(id)
			if locked && holder != sess.ID {
				return nil, newError(KindLockConflict, op, &locks.ConflictError{SegmentID: id, Holder: holder})
			}
			if locked {
				ids = append(ids, id)
			}
		}
	}
	if sess.Held != "" && !slices.Contains(ids, sess.Held) {
		ids = append(ids, sess.Held)
	}
	return ids, nil
}

func (c *Coordinator) releaseLocked(sessionID string, ids []string) {
	for _, id := range ids {
		_ = c.locks.Release(id, sessionID)
	}
	_ = c.sessions.SetHeld(sessionID, "")
}

// abandon releases a lock taken by Advance when the assignment cannot complete.
func (c *Coordinator) abandon(sessionID, segmentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.locks.Release(segmentID, sessionID)
	c.sessions.ClearHeldIf(sessionID, segmentID)
}

func (c *Coordinator) stillHeld(sessionID, segmentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	holder, ok := c.locks.Holder(segmentID)
	return ok && holder == sessionID
}
