package protocol_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"segcheck/internal/protocol"
)

func TestDecodePayloadAcceptsStringAndObject(t *testing.T) {
	frames := []string{
		`{"client_id":"c1","message_type":"unlock","payload":"{\"id\":\"seg-1\"}"}`,
		`{"client_id":"c1","message_type":"unlock","payload":{"uuid":"seg-1"}}`,
	}
	for _, frame := range frames {
		req, err := protocol.DecodeRequest([]byte(frame))
		if err != nil {
			t.Fatalf("DecodeRequest(%s): %v", frame, err)
		}
		if req.ClientID != "c1" || req.MessageType != protocol.TypeUnlock {
			t.Fatalf("unexpected envelope: %+v", req)
		}
		var payload protocol.UnlockPayload
		if err := req.DecodePayload(&payload); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		if payload.SegmentID() != "seg-1" {
			t.Fatalf("expected seg-1, got %+v", payload)
		}
	}
}

func TestDecodePayloadReportsEmpty(t *testing.T) {
	for _, frame := range []string{
		`{"message_type":"stats"}`,
		`{"message_type":"stats","payload":null}`,
		`{"message_type":"stats","payload":""}`,
	} {
		req, err := protocol.DecodeRequest([]byte(frame))
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		var v map[string]any
		if err := req.DecodePayload(&v); !errors.Is(err, protocol.ErrEmptyPayload) {
			t.Fatalf("expected ErrEmptyPayload for %s, got %v", frame, err)
		}
	}
}

func TestQueryStatusFilterForms(t *testing.T) {
	cases := map[string]protocol.StatusFilter{
		`{"request_status":"unchecked"}`:    {"unchecked"},
		`{"request_status":["ok","skip"]}`:  {"ok", "skip"},
		`{"request_status":[]}`:             {},
		`{"request_status":""}`:             nil,
		`{"step_size":-1,"curr_id":"a"}`:    nil,
		`{"request_status":["bad sample"]}`: {"bad sample"},
	}
	for input, want := range cases {
		var q protocol.Query
		if err := json.Unmarshal([]byte(input), &q); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if len(q.RequestStatus) != len(want) {
			t.Fatalf("%s: got %v want %v", input, q.RequestStatus, want)
		}
		for i := range want {
			if q.RequestStatus[i] != want[i] {
				t.Fatalf("%s: got %v want %v", input, q.RequestStatus, want)
			}
		}
	}

	var bad protocol.Query
	if err := json.Unmarshal([]byte(`{"request_status":42}`), &bad); err == nil {
		t.Fatal("expected error for numeric request_status")
	}
}

func TestQueryStepDefaultsForward(t *testing.T) {
	if (protocol.Query{}).Step() != 1 {
		t.Fatal("expected default step +1")
	}
	if (protocol.Query{StepSize: -1}).Step() != -1 {
		t.Fatal("expected step -1")
	}
}

func TestAudioChunkPayloadUsesRelativeChunk(t *testing.T) {
	anno := protocol.Annotation{
		SegmentPayload: protocol.SegmentPayload{ID: "seg-1", URL: "a.wav", SegmentType: "silence", Chunk: protocol.Chunk{Start: 5000, End: 6000}},
		CurrentStatus:  protocol.Status{Name: protocol.StatusUnchecked},
		Index:          3,
	}
	audio := protocol.AudioChunk{Audio: "AAAA", FileType: "audio/wav", Chunk: protocol.Chunk{Start: 1000, End: 2000}, Offset: 4000}

	resp, err := protocol.NewResponse(protocol.TypeAudioChunk, protocol.NewAudioChunkPayload(anno, audio))
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(resp.Payload), &decoded); err != nil {
		t.Fatalf("payload is not JSON text: %v", err)
	}
	chunk := decoded["chunk"].(map[string]any)
	if chunk["start"].(float64) != 1000 {
		t.Fatalf("expected relative chunk, got %v", chunk)
	}
	if decoded["uuid"] != "seg-1" || decoded["id"] != "seg-1" {
		t.Fatalf("expected both id keys, got %v / %v", decoded["id"], decoded["uuid"])
	}
	if decoded["index"].(float64) != 3 {
		t.Fatalf("expected index 3, got %v", decoded["index"])
	}

	var payload protocol.AudioChunkPayload
	if err := resp.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got := payload.AbsoluteChunk(); got != anno.Chunk {
		t.Fatalf("AbsoluteChunk = %+v, want %+v", got, anno.Chunk)
	}
}

func TestSegmentPayloadValidate(t *testing.T) {
	valid := protocol.SegmentPayload{UUID: "x", URL: "u", SegmentType: "t", Chunk: protocol.Chunk{Start: 1, End: 2}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := map[string]protocol.SegmentPayload{
		"no id":           {URL: "u", SegmentType: "t"},
		"no url":          {ID: "x", SegmentType: "t"},
		"no segment type": {ID: "x", URL: "u"},
		"chunk end":       {ID: "x", URL: "u", SegmentType: "t", Chunk: protocol.Chunk{Start: 5, End: 1}},
	}
	for want, seg := range cases {
		err := seg.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}

func TestErrorResponseDefaultsType(t *testing.T) {
	resp := protocol.ErrorResponse("", "protocol", errors.New("unknown message type"))
	if resp.MessageType != protocol.TypeError || resp.ErrorKind != "protocol" || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStatusIsUnchecked(t *testing.T) {
	if !(protocol.Status{}).IsUnchecked() || !(protocol.Status{Name: "unchecked"}).IsUnchecked() {
		t.Fatal("expected empty and unchecked to be unchecked")
	}
	if (protocol.Status{Name: "ok"}).IsUnchecked() {
		t.Fatal("ok is a decision")
	}
}
