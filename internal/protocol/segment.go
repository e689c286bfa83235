package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Status names.
const (
	StatusUnchecked = "unchecked"
	StatusOK        = "ok"
	StatusSkip      = "skip"
)

// Filter-only names. LabelBadSample is also the label that marks a segment
// as unusable.
const (
	FilterChecked  = "checked"
	FilterAny      = "any"
	LabelBadSample = "bad sample"
)

// Chunk is a time range in milliseconds.
type Chunk struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Validate reports a chunk whose end precedes its start.
func (c Chunk) Validate() error {
	if c.Start < 0 {
		return fmt.Errorf("chunk start %d is negative", c.Start)
	}
	if c.Start > c.End {
		return fmt.Errorf("chunk end must be after chunk start, found %+v", c)
	}
	return nil
}

// Status is one annotation decision.
type Status struct {
	Name      string `json:"name"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// IsUnchecked reports whether the status carries no decision.
func (s Status) IsUnchecked() bool {
	name := strings.TrimSpace(s.Name)
	return name == "" || name == StatusUnchecked
}

// SegmentPayload identifies a segment and its audio source. Browser clients
// address segments by "uuid"; both keys are accepted and emitted.
type SegmentPayload struct {
	ID          string `json:"id"`
	UUID        string `json:"uuid,omitempty"`
	URL         string `json:"url"`
	SegmentType string `json:"segment_type"`
	Chunk       Chunk  `json:"chunk"`
}

// SegmentID returns the id, falling back to the uuid alias.
func (s SegmentPayload) SegmentID() string {
	if id := strings.TrimSpace(s.ID); id != "" {
		return id
	}
	return strings.TrimSpace(s.UUID)
}

// Normalize fills both identifier keys.
func (s *SegmentPayload) Normalize() {
	id := s.SegmentID()
	s.ID = id
	s.UUID = id
}

// Validate checks the fields every stored segment needs.
func (s SegmentPayload) Validate() error {
	if s.SegmentID() == "" {
		return errors.New("no id")
	}
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("no url")
	}
	if strings.TrimSpace(s.SegmentType) == "" {
		return errors.New("no segment type")
	}
	return s.Chunk.Validate()
}

// SourcePayload lists several chunks of one audio source.
type SourcePayload struct {
	URL         string  `json:"url"`
	SegmentType string  `json:"segment_type"`
	Chunks      []Chunk `json:"chunks"`
}

// Annotation is the full segment record as exchanged with clients.
type Annotation struct {
	SegmentPayload
	CurrentStatus Status   `json:"current_status"`
	StatusHistory []Status `json:"status_history"`
	Labels        []string `json:"labels"`
	Comment       string   `json:"comment"`
	Index         int      `json:"index"`
}

// HasLabel reports whether the annotation carries label.
func (a Annotation) HasLabel(label string) bool {
	for _, l := range a.Labels {
		if l == label {
			return true
		}
	}
	return false
}
