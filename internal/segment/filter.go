package segment

import (
	"fmt"
	"slices"
	"strings"

	"segcheck/internal/protocol"
)

// Filter selects segments by status. The zero value matches everything.
type Filter struct {
	names []string
}

// ParseFilter builds a filter from request_status values. An empty list
// selects any segment; {"ok","skip"} is the checked selection.
func ParseFilter(values []string) (Filter, error) {
	names := make([]string, 0, len(values))
	for _, value := range values {
		name := strings.ToLower(strings.Join(strings.Fields(value), " "))
		switch name {
		case protocol.StatusUnchecked, protocol.StatusOK, protocol.StatusSkip,
			protocol.FilterChecked, protocol.FilterAny, protocol.LabelBadSample:
		default:
			return Filter{}, fmt.Errorf("%w: request_status %q", ErrUnknownStatus, value)
		}
		if name == protocol.FilterAny {
			return Filter{}, nil
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if len(names) == 2 && slices.Contains(names, protocol.StatusOK) && slices.Contains(names, protocol.StatusSkip) {
		names = []string{protocol.FilterChecked}
	}
	return Filter{names: names}, nil
}

// MustFilter is ParseFilter for literal names known to be valid.
func MustFilter(values ...string) Filter {
	f, err := ParseFilter(values)
	if err != nil {
		panic(err)
	}
	return f
}

// String renders the canonical filter name.
func (f Filter) String() string {
	if len(f.names) == 0 {
		return protocol.FilterAny
	}
	return strings.Join(f.names, "|")
}

// Match reports whether a segment with the given status and labels passes.
func (f Filter) Match(status string, labels []string) bool {
	if len(f.names) == 0 {
		return true
	}
	for _, name := range f.names {
		if statusMatch(name, status, labels) {
			return true
		}
	}
	return false
}

// MatchEntry applies the filter to a catalogue entry.
func (f Filter) MatchEntry(e Entry) bool {
	return f.Match(e.Status, e.Labels)
}

func statusMatch(requested, actual string, labels []string) bool {
	badSample := slices.Contains(labels, protocol.LabelBadSample)
	switch requested {
	case protocol.FilterChecked:
		return actual != protocol.StatusUnchecked && actual != ""
	case protocol.StatusUnchecked:
		return actual == protocol.StatusUnchecked || actual == ""
	case protocol.LabelBadSample:
		return badSample
	case protocol.StatusSkip:
		return !badSample && actual == protocol.StatusSkip
	default:
		return actual == requested
	}
}
