package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Query describes a navigation request.
type Query struct {
	UserName      string       `json:"user_name"`
	StepSize      int          `json:"step_size"`
	RequestIndex  string       `json:"request_index,omitempty"`
	RequestStatus StatusFilter `json:"request_status,omitempty"`
	// Context widens the extracted audio on both sides, in milliseconds.
	// Nil selects the server default.
	Context *int64 `json:"context,omitempty"`
	CurrID  string `json:"curr_id,omitempty"`
}

// Step returns the walk direction, defaulting to forward.
func (q Query) Step() int {
	if q.StepSize < 0 {
		return -1
	}
	return 1
}

// StatusFilter holds the requested statuses. It decodes from either a single
// string or an array of strings.
type StatusFilter []string

func (f *StatusFilter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*f = nil
			return nil
		}
		*f = StatusFilter{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("request_status: want string or array: %w", err)
	}
	*f = StatusFilter(many)
	return nil
}

// SaveUnlockAndNext is the composite save request.
type SaveUnlockAndNext struct {
	Annotation Annotation     `json:"annotation"`
	Unlock     *UnlockPayload `json:"unlock,omitempty"`
	Query      Query          `json:"query"`
}

// UnlockPayload releases one segment.
type UnlockPayload struct {
	ID       string `json:"id"`
	UUID     string `json:"uuid,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// SegmentID returns the id, falling back to the uuid alias.
func (u UnlockPayload) SegmentID() string {
	if u.ID != "" {
		return u.ID
	}
	return u.UUID
}

// UnlockAllPayload names the operator requesting a global unlock.
type UnlockAllPayload struct {
	UserName string `json:"user_name"`
}

// AudioChunk is extracted audio. Chunk is relative to the start of the
// extracted window, which begins Offset milliseconds into the source.
type AudioChunk struct {
	Audio    string `json:"audio"`
	FileType string `json:"file_type"`
	Chunk    Chunk  `json:"chunk"`
	Offset   int64  `json:"offset"`
}

// AudioChunkPayload is the audio_chunk response body. Chunk shadows the
// annotation's absolute chunk with the window-relative one.
type AudioChunkPayload struct {
	Annotation
	Audio    string `json:"audio"`
	FileType string `json:"file_type"`
	Chunk    Chunk  `json:"chunk"`
	Offset   int64  `json:"offset"`
}

// NewAudioChunkPayload merges a segment record with its extracted audio.
func NewAudioChunkPayload(anno Annotation, audio AudioChunk) AudioChunkPayload {
	anno.Normalize()
	return AudioChunkPayload{
		Annotation: anno,
		Audio:      audio.Audio,
		FileType:   audio.FileType,
		Chunk:      audio.Chunk,
		Offset:     audio.Offset,
	}
}

// AbsoluteChunk converts the relative chunk back to source time.
func (p AudioChunkPayload) AbsoluteChunk() Chunk {
	return Chunk{Start: p.Chunk.Start + p.Offset, End: p.Chunk.End + p.Offset}
}

// UnlockResult acknowledges an unlock or unlock_all request.
type UnlockResult struct {
	IDs   []string `json:"ids,omitempty"`
	Count int      `json:"count"`
}
