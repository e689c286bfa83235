package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType names a request or response kind.
type MessageType string

// Client to server.
const (
	TypeNext              MessageType = "next"
	TypeSaveUnlockAndNext MessageType = "saveunlockandnext"
	TypeUnlock            MessageType = "unlock"
	TypeUnlockAll         MessageType = "unlock_all"
	TypeStats             MessageType = "stats"
	TypeKeepAlive         MessageType = "keep_alive"
)

// Server to client.
const (
	TypeAudioChunk              MessageType = "audio_chunk"
	TypeNoAudioChunk            MessageType = "no_audio_chunk"
	TypeExplicitUnlockCompleted MessageType = "explicit_unlock_completed"
	TypeInfo                    MessageType = "info"
	TypeError                   MessageType = "error"
)

// IsRequest reports whether t is a client to server message type.
func (t MessageType) IsRequest() bool {
	switch t {
	case TypeNext, TypeSaveUnlockAndNext, TypeUnlock, TypeUnlockAll, TypeStats, TypeKeepAlive:
		return true
	}
	return false
}

// ErrEmptyPayload indicates a request that requires a payload arrived without one.
var ErrEmptyPayload = errors.New("empty payload")

// Request is an inbound frame.
type Request struct {
	ClientID    string          `json:"client_id"`
	MessageType MessageType     `json:"message_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Response is an outbound frame. Payload holds JSON-encoded text.
type Response struct {
	ClientID    string      `json:"client_id,omitempty"`
	MessageType MessageType `json:"message_type"`
	Payload     string      `json:"payload,omitempty"`
	Info        string      `json:"info,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
}

// DecodeRequest parses a raw frame.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// HasPayload reports whether the request carries a non-empty payload.
func (r Request) HasPayload() bool {
	raw := r.Payload
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return true
		}
		return text != ""
	}
	return true
}

// DecodePayload unmarshals the payload into v. String payloads are unwrapped
// and parsed as JSON.
func (r Request) DecodePayload(v any) error {
	if !r.HasPayload() {
		return ErrEmptyPayload
	}
	raw := []byte(r.Payload)
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("decode %s payload: %w", r.MessageType, err)
		}
		raw = []byte(text)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.MessageType, err)
	}
	return nil
}

// NewResponse builds a response with payload JSON-encoded as text. A nil
// payload leaves the field empty.
func NewResponse(messageType MessageType, payload any) (Response, error) {
	resp := Response{MessageType: messageType}
	if payload == nil {
		return resp, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode %s payload: %w", messageType, err)
	}
	resp.Payload = string(data)
	return resp, nil
}

// InfoResponse builds a response that only carries an informational message.
func InfoResponse(messageType MessageType, info string) Response {
	return Response{MessageType: messageType, Info: info}
}

// ErrorResponse builds an error response for the request type that failed.
func ErrorResponse(messageType MessageType, kind string, err error) Response {
	if messageType == "" {
		messageType = TypeError
	}
	resp := Response{MessageType: messageType, ErrorKind: kind}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// DecodePayload unmarshals a response payload into v.
func (r Response) DecodePayload(v any) error {
	if r.Payload == "" {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal([]byte(r.Payload), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.MessageType, err)
	}
	return nil
}
