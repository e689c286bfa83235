package segment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"segcheck/internal/protocol"
)

const segmentColumns = "id, position, url, segment_type, chunk_start, chunk_end, status_name, status_source, status_timestamp, status_history_json, labels_json, comment, created_at, updated_at"

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*Segment, error) {
	var (
		seg          Segment
		statusSource sql.NullString
		statusTime   sql.NullString
		historyRaw   string
		labelsRaw    string
		comment      sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&seg.ID,
		&seg.Index,
		&seg.URL,
		&seg.SegmentType,
		&seg.Chunk.Start,
		&seg.Chunk.End,
		&seg.CurrentStatus.Name,
		&statusSource,
		&statusTime,
		&historyRaw,
		&labelsRaw,
		&comment,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	seg.CurrentStatus.Source = statusSource.String
	seg.CurrentStatus.Timestamp = statusTime.String
	seg.Comment = comment.String
	if err := json.Unmarshal([]byte(historyRaw), &seg.StatusHistory); err != nil {
		return nil, fmt.Errorf("decode status history for %s: %w", seg.ID, err)
	}
	if err := json.Unmarshal([]byte(labelsRaw), &seg.Labels); err != nil {
		return nil, fmt.Errorf("decode labels for %s: %w", seg.ID, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		seg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		seg.UpdatedAt = updated
	}
	return &seg, nil
}

func encodeHistory(history []protocol.Status) (string, error) {
	if history == nil {
		history = []protocol.Status{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode status history: %w", err)
	}
	return string(data), nil
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
