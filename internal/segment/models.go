package segment

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"segcheck/internal/protocol"
)

// Segment is one stored catalogue entry.
type Segment struct {
	ID            string
	Index         int
	URL           string
	SegmentType   string
	Chunk         protocol.Chunk
	CurrentStatus protocol.Status
	StatusHistory []protocol.Status
	Labels        []string
	Comment       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Checked reports whether the segment carries a decision.
func (s *Segment) Checked() bool {
	return !s.CurrentStatus.IsUnchecked()
}

// HasLabel reports whether label is attached, comparing case-insensitively.
func (s *Segment) HasLabel(label string) bool {
	return slices.Contains(s.Labels, normalizeLabel(label))
}

// Annotated reports whether anything beyond the source record was saved.
func (s *Segment) Annotated() bool {
	return s.Checked() || len(s.StatusHistory) > 0 || len(s.Labels) > 0 || strings.TrimSpace(s.Comment) != ""
}

// Annotation converts the record to its wire form.
func (s *Segment) Annotation() protocol.Annotation {
	anno := protocol.Annotation{
		SegmentPayload: protocol.SegmentPayload{
			ID:          s.ID,
			UUID:        s.ID,
			URL:         s.URL,
			SegmentType: s.SegmentType,
			Chunk:       s.Chunk,
		},
		CurrentStatus: s.CurrentStatus,
		StatusHistory: append([]protocol.Status{}, s.StatusHistory...),
		Labels:        append([]string{}, s.Labels...),
		Comment:       s.Comment,
		Index:         s.Index,
	}
	if anno.CurrentStatus.Name == "" {
		anno.CurrentStatus.Name = protocol.StatusUnchecked
	}
	return anno
}

// Entry is the lightweight catalogue row navigation walks over.
type Entry struct {
	ID     string
	Index  int
	Status string
	Labels []string
}

// NormalizeLabels trims, case-folds, and de-duplicates labels.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		norm := normalizeLabel(label)
		if norm == "" || slices.Contains(out, norm) {
			continue
		}
		out = append(out, norm)
	}
	return out
}

func normalizeLabel(label string) string {
	return cases.Fold().String(strings.Join(strings.Fields(label), " "))
}

// ValidStatusName reports whether name is a storable status.
func ValidStatusName(name string) bool {
	switch name {
	case protocol.StatusUnchecked, protocol.StatusOK, protocol.StatusSkip:
		return true
	}
	return false
}
