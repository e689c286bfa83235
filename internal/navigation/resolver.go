package navigation

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"segcheck/internal/segment"
)

// ErrInvalidIndex reports an unparsable or out-of-range request_index.
var ErrInvalidIndex = errors.New("invalid request index")

// Request index keywords.
const (
	IndexFirst = "first"
	IndexLast  = "last"
)

// Request is one navigation query evaluated against snapshots.
type Request struct {
	// Catalogue is the full ordering by display index.
	Catalogue []segment.Entry
	// Holders maps locked segment ids to their session.
	Holders   map[string]string
	SessionID string
	Filter    segment.Filter
	// Step is +1 or -1; anything else is treated as +1.
	Step         int
	RequestIndex string
	CurrID       string
}

func (r Request) step() int {
	if r.Step < 0 {
		return -1
	}
	return 1
}

func (r Request) available(e segment.Entry) bool {
	holder, locked := r.Holders[e.ID]
	return !locked || holder == r.SessionID
}

func (r Request) eligible(e segment.Entry) bool {
	return r.Filter.MatchEntry(e) && r.available(e)
}

// Resolve returns the candidate walk for the request.
func Resolve(req Request) (iter.Seq[segment.Entry], error) {
	if strings.TrimSpace(req.RequestIndex) != "" {
		return resolveIndex(req)
	}
	return resolveWalk(req), nil
}

// Next returns the first candidate, if any.
func Next(req Request) (segment.Entry, bool, error) {
	candidates, err := Resolve(req)
	if err != nil {
		return segment.Entry{}, false, err
	}
	for e := range candidates {
		return e, true, nil
	}
	return segment.Entry{}, false, nil
}

// resolveIndex jumps into the filtered sequence, then walks it in the step
// direction past segments locked by other sessions.
func resolveIndex(req Request) (iter.Seq[segment.Entry], error) {
	filtered := make([]segment.Entry, 0, len(req.Catalogue))
	for _, e := range req.Catalogue {
		if req.Filter.MatchEntry(e) {
			filtered = append(filtered, e)
		}
	}

	var start int
	switch index := strings.ToLower(strings.TrimSpace(req.RequestIndex)); index {
	case IndexFirst:
		start = 0
	case IndexLast:
		start = len(filtered) - 1
	default:
		n, err := strconv.Atoi(index)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, req.RequestIndex)
		}
		if n < 1 || n > len(filtered) {
			return nil, fmt.Errorf("%w: %d outside 1..%d for filter %s", ErrInvalidIndex, n, len(filtered), req.Filter)
		}
		start = n - 1
	}

	step := req.step()
	return func(yield func(segment.Entry) bool) {
		if len(filtered) == 0 {
			return
		}
		for i := start; i >= 0 && i < len(filtered); i += step {
			if req.available(filtered[i]) && !yield(filtered[i]) {
				return
			}
		}
	}, nil
}

// resolveWalk steps through the unfiltered ordering from curr_id (exclusive)
// or from the boundary matching the step direction (inclusive).
func resolveWalk(req Request) iter.Seq[segment.Entry] {
	step := req.step()
	start := 0
	if step < 0 {
		start = len(req.Catalogue) - 1
	}
	if pos := indexOf(req.Catalogue, req.CurrID); pos >= 0 {
		start = pos + step
	}

	return func(yield func(segment.Entry) bool) {
		for i := start; i >= 0 && i < len(req.Catalogue); i += step {
			if req.eligible(req.Catalogue[i]) && !yield(req.Catalogue[i]) {
				return
			}
		}
	}
}

func indexOf(entries []segment.Entry, id string) int {
	if id == "" {
		return -1
	}
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
