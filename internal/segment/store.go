package segment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"segcheck/internal/protocol"
)

// Insert appends source segments to the end of the catalogue. The batch is
// rejected as a whole when any record is invalid or reuses an id.
func (s *Store) Insert(ctx context.Context, segments []protocol.SegmentPayload) (int, error) {
	ctx = ensureContext(ctx)
	if len(segments) == 0 {
		return 0, nil
	}
	seen := make(map[string]struct{}, len(segments))
	for i := range segments {
		segments[i].Normalize()
		if err := segments[i].Validate(); err != nil {
			return 0, fmt.Errorf("%w: segment %d (%s): %v", ErrInvalid, i+1, segments[i].ID, err)
		}
		if _, dup := seen[segments[i].ID]; dup {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, segments[i].ID)
		}
		seen[segments[i].ID] = struct{}{}
	}

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin insert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var maxPosition int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) FROM segments").Scan(&maxPosition); err != nil {
			return fmt.Errorf("read max position: %w", err)
		}

		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		for i, seg := range segments {
			var exists int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM segments WHERE id = ?", seg.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check segment %s: %w", seg.ID, err)
			}
			if exists > 0 {
				return fmt.Errorf("%w: %s", ErrDuplicate, seg.ID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO segments (
                    id, position, url, segment_type, chunk_start, chunk_end,
                    status_name, created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				seg.ID,
				maxPosition+i+1,
				seg.URL,
				seg.SegmentType,
				seg.Chunk.Start,
				seg.Chunk.End,
				protocol.StatusUnchecked,
				timestamp,
				timestamp,
			); err != nil {
				return fmt.Errorf("insert segment %s: %w", seg.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidateCatalogue()
	return len(segments), nil
}

// Get fetches one segment by id.
func (s *Store) Get(ctx context.Context, id string) (*Segment, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// List returns all segments in catalogue order.
func (s *Store) List(ctx context.Context) ([]*Segment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+segmentColumns+` FROM segments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// Count returns the number of stored segments.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM segments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}

// Catalogue returns the ordered id/status/labels view used by navigation.
// The returned slice is a copy.
func (s *Store) Catalogue(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadCatalogueLocked(ensureContext(ctx)); err != nil {
			return nil, err
		}
	}
	out := make([]Entry, len(s.catalogue))
	for i, e := range s.catalogue {
		e.Labels = append([]string(nil), e.Labels...)
		out[i] = e
	}
	return out, nil
}

func (s *Store) loadCatalogueLocked(ctx context.Context) error {
	segments, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.catalogue = make([]Entry, len(segments))
	s.positions = make(map[string]int, len(segments))
	for i, seg := range segments {
		s.catalogue[i] = Entry{ID: seg.ID, Index: seg.Index, Status: seg.CurrentStatus.Name, Labels: seg.Labels}
		s.positions[seg.ID] = i
	}
	s.loaded = true
	return nil
}

func (s *Store) invalidateCatalogue() {
	s.mu.Lock()
	s.loaded = false
	s.catalogue = nil
	s.positions = nil
	s.mu.Unlock()
}

func (s *Store) refreshEntry(seg *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	pos, ok := s.positions[seg.ID]
	if !ok {
		s.loaded = false
		return
	}
	s.catalogue[pos].Status = seg.CurrentStatus.Name
	s.catalogue[pos].Labels = append([]string(nil), seg.Labels...)
}

// SaveAnnotation stores a new decision for an existing segment. The history
// is rebuilt from the stored record: the previous current status is appended
// unless it was unchecked. Labels and comment are replaced; a non-zero chunk
// replaces the stored boundaries.
func (s *Store) SaveAnnotation(ctx context.Context, anno protocol.Annotation) (*Segment, error) {
	ctx = ensureContext(ctx)
	id := anno.SegmentID()
	if id == "" {
		return nil, fmt.Errorf("%w: annotation has no id", ErrInvalid)
	}
	status := anno.CurrentStatus
	status.Name = strings.ToLower(strings.TrimSpace(status.Name))
	if !ValidStatusName(status.Name) {
		return nil, fmt.Errorf("%w: status %q", ErrUnknownStatus, anno.CurrentStatus.Name)
	}
	if status.Timestamp == "" {
		status.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	chunkSet := anno.Chunk != (protocol.Chunk{})
	if chunkSet {
		if err := anno.Chunk.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	labels := NormalizeLabels(anno.Labels)

	var saved *Segment
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		current, err := scanSegment(tx.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load segment %s: %w", id, err)
		}
		if anno.URL != "" && anno.URL != current.URL {
			return fmt.Errorf("%w: url %q differs from stored %q", ErrInvalid, anno.URL, current.URL)
		}
		if anno.SegmentType != "" && anno.SegmentType != current.SegmentType {
			return fmt.Errorf("%w: segment type %q differs from stored %q", ErrInvalid, anno.SegmentType, current.SegmentType)
		}

		next := *current
		next.StatusHistory = append([]protocol.Status{}, current.StatusHistory...)
		if current.Checked() {
			next.StatusHistory = append(next.StatusHistory, current.CurrentStatus)
		}
		next.CurrentStatus = status
		next.Labels = labels
		next.Comment = anno.Comment
		if chunkSet {
			next.Chunk = anno.Chunk
		}
		next.UpdatedAt = time.Now().UTC()

		if err := updateAnnotation(ctx, tx, &next); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save: %w", err)
		}
		saved = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshEntry(saved)
	return saved, nil
}

// RestoreAnnotation writes an exported annotation record verbatim. It is used
// when importing annotation files and does not apply the history rule, only
// validates that the record already satisfies it.
func (s *Store) RestoreAnnotation(ctx context.Context, anno protocol.Annotation) error {
	ctx = ensureContext(ctx)
	id := anno.SegmentID()
	if err := validateRestored(anno); err != nil {
		return fmt.Errorf("%w: annotation %s: %v", ErrInvalid, id, err)
	}
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin restore tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		current, err := scanSegment(tx.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load segment %s: %w", id, err)
		}
		if anno.URL != current.URL || anno.SegmentType != current.SegmentType {
			return fmt.Errorf("%w: annotation %s does not match source (url %q vs %q, type %q vs %q)",
				ErrInvalid, id, anno.URL, current.URL, anno.SegmentType, current.SegmentType)
		}
		next := *current
		next.CurrentStatus = anno.CurrentStatus
		if next.CurrentStatus.Name == "" {
			next.CurrentStatus.Name = protocol.StatusUnchecked
		}
		next.StatusHistory = anno.StatusHistory
		next.Labels = NormalizeLabels(anno.Labels)
		next.Comment = anno.Comment
		next.Chunk = anno.Chunk
		next.UpdatedAt = time.Now().UTC()
		if err := updateAnnotation(ctx, tx, &next); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}
	s.invalidateCatalogue()
	return nil
}

func validateRestored(anno protocol.Annotation) error {
	if err := anno.Validate(); err != nil {
		return err
	}
	name := anno.CurrentStatus.Name
	if name != "" && !ValidStatusName(name) {
		return fmt.Errorf("unknown status %q", name)
	}
	for _, past := range anno.StatusHistory {
		if past.IsUnchecked() {
			return errors.New("status history contains an unchecked entry")
		}
	}
	return nil
}

func updateAnnotation(ctx context.Context, tx *sql.Tx, seg *Segment) error {
	history, err := encodeHistory(seg.StatusHistory)
	if err != nil {
		return err
	}
	labels, err := encodeLabels(seg.Labels)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE segments
         SET chunk_start = ?, chunk_end = ?, status_name = ?, status_source = ?,
             status_timestamp = ?, status_history_json = ?, labels_json = ?,
             comment = ?, updated_at = ?
         WHERE id = ?`,
		seg.Chunk.Start,
		seg.Chunk.End,
		seg.CurrentStatus.Name,
		nullableString(seg.CurrentStatus.Source),
		nullableString(seg.CurrentStatus.Timestamp),
		history,
		labels,
		nullableString(seg.Comment),
		seg.UpdatedAt.Format(time.RFC3339Nano),
		seg.ID,
	); err != nil {
		return fmt.Errorf("update segment %s: %w", seg.ID, err)
	}
	return nil
}
