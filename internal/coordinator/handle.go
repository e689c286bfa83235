package coordinator

import (
	"context"
	"errors"
	"fmt"

	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// Handle dispatches one inbound frame. It returns false when the frame needs
// no reply, which is only the case for client keep-alives.
func (c *Coordinator) Handle(ctx context.Context, sessionID string, req protocol.Request) (protocol.Response, bool) {
	ctx = logging.WithSessionID(ctx, sessionID)
	c.Touch(sessionID)

	if req.MessageType == protocol.TypeKeepAlive {
		return protocol.Response{}, false
	}

	resp, err := c.dispatch(ctx, sessionID, req)
	if err != nil {
		coordErr := classify(string(req.MessageType), err)
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "request failed", "request_failed",
			logging.String(logging.FieldMessageType, string(req.MessageType)),
			logging.Bool("retryable", coordErr.Retryable()),
			logging.Error(coordErr),
			logging.String(logging.FieldImpact, "client received an error response"),
		)
		respType := req.MessageType
		if !respType.IsRequest() {
			respType = protocol.TypeError
		}
		resp = protocol.ErrorResponse(respType, string(coordErr.Kind), coordErr)
	}
	resp.ClientID = sessionID
	return resp, true
}

func (c *Coordinator) dispatch(ctx context.Context, sessionID string, req protocol.Request) (protocol.Response, error) {
	switch req.MessageType {
	case protocol.TypeNext:
		var query protocol.Query
		if err := decodeOptional(req, &query); err != nil {
			return protocol.Response{}, err
		}
		return c.Advance(ctx, sessionID, AdvanceRequest{Query: query})

	case protocol.TypeSaveUnlockAndNext:
		var payload protocol.SaveUnlockAndNext
		if err := req.DecodePayload(&payload); err != nil {
			return protocol.Response{}, newError(KindProtocol, string(req.MessageType), err)
		}
		return c.Advance(ctx, sessionID, AdvanceRequest{
			Query:      payload.Query,
			Annotation: &payload.Annotation,
			Unlock:     payload.Unlock,
		})

	case protocol.TypeUnlock:
		var payload protocol.UnlockPayload
		if err := req.DecodePayload(&payload); err != nil {
			return protocol.Response{}, newError(KindProtocol, string(req.MessageType), err)
		}
		return c.ExplicitUnlock(ctx, sessionID, payload)

	case protocol.TypeUnlockAll:
		var payload protocol.UnlockAllPayload
		if err := decodeOptional(req, &payload); err != nil {
			return protocol.Response{}, err
		}
		return c.UnlockAll(ctx, sessionID, payload.UserName)

	case protocol.TypeStats:
		return c.statsResponse(ctx)

	default:
		return protocol.Response{}, newError(KindProtocol, "dispatch",
			fmt.Errorf("unknown message type %q", req.MessageType))
	}
}

// decodeOptional decodes the payload when present and leaves v zero otherwise.
func decodeOptional(req protocol.Request, v any) error {
	err := req.DecodePayload(v)
	if err == nil || errors.Is(err, protocol.ErrEmptyPayload) {
		return nil
	}
	return newError(KindProtocol, string(req.MessageType), err)
}
