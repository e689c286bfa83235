package segment

import "errors"

var (
	// ErrNotFound reports an unknown segment id.
	ErrNotFound = errors.New("segment not found")
	// ErrDuplicate reports an import that reuses an existing id.
	ErrDuplicate = errors.New("duplicate segment id")
	// ErrInvalid reports a record that fails validation.
	ErrInvalid = errors.New("invalid segment")
	// ErrUnknownStatus reports a filter or status name outside the status model.
	ErrUnknownStatus = errors.New("unknown status")
)
