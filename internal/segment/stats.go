package segment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"segcheck/internal/protocol"
)

// Stat keys. Per-value keys are formed as prefix + value.
const (
	StatTotal           = "total"
	StatChecked         = "checked"
	StatUnchecked       = "unchecked"
	StatComment         = "comment"
	StatStatusPrefix    = "status:"
	StatCheckedByPrefix = "checked by:"
	StatLabelPrefix     = "label:"
)

// Stats scans the catalogue and returns aggregate counters. Checked segments
// labelled "bad sample" count under "status:bad sample" instead of their
// status name.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status_name, status_source, labels_json, comment FROM segments`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{
		StatTotal:     0,
		StatChecked:   0,
		StatUnchecked: 0,
	}
	for rows.Next() {
		var (
			name      string
			source    sql.NullString
			labelsRaw string
			comment   sql.NullString
		)
		if err := rows.Scan(&name, &source, &labelsRaw, &comment); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		var labels []string
		if err := json.Unmarshal([]byte(labelsRaw), &labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}

		stats[StatTotal]++
		status := protocol.Status{Name: name}
		if status.IsUnchecked() {
			stats[StatUnchecked]++
		} else {
			stats[StatChecked]++
			if slices.Contains(labels, protocol.LabelBadSample) {
				stats[StatStatusPrefix+protocol.LabelBadSample]++
			} else {
				stats[StatStatusPrefix+name]++
			}
			if source.String != "" {
				stats[StatCheckedByPrefix+source.String]++
			}
		}
		for _, label := range labels {
			stats[StatLabelPrefix+label]++
		}
		if strings.TrimSpace(comment.String) != "" {
			stats[StatComment]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}
