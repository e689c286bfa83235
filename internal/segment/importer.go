package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"segcheck/internal/fileutil"
	"segcheck/internal/protocol"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	Segments    int
	Annotations int
}

// ImportDir loads source segment files from dir/source and, when present,
// annotation files from dir/annotation. Source files hold either one segment
// ({id,url,segment_type,chunk}) or a source with several chunks
// ({url,segment_type,chunks}); chunks without ids receive generated ones.
func (s *Store) ImportDir(ctx context.Context, dir string) (ImportResult, error) {
	var result ImportResult
	sourceDir := filepath.Join(dir, "source")
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		sourceDir = dir
	}
	segments, err := LoadSourceDir(sourceDir)
	if err != nil {
		return result, err
	}
	if len(segments) == 0 {
		return result, fmt.Errorf("found no segments in %s", sourceDir)
	}
	if result.Segments, err = s.Insert(ctx, segments); err != nil {
		return result, err
	}

	annotationDir := filepath.Join(dir, "annotation")
	if info, err := os.Stat(annotationDir); err == nil && info.IsDir() {
		annotations, err := LoadAnnotationDir(annotationDir)
		if err != nil {
			return result, err
		}
		for _, anno := range annotations {
			if err := s.RestoreAnnotation(ctx, anno); err != nil {
				return result, err
			}
			result.Annotations++
		}
	}
	return result, nil
}

// LoadSourceDir parses every *.json file in dir, in name order.
func LoadSourceDir(dir string) ([]protocol.SegmentPayload, error) {
	files, err := listJSONFiles(dir)
	if err != nil {
		return nil, err
	}
	var segments []protocol.SegmentPayload
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read segment file %s: %w", file, err)
		}
		parsed, err := parseSourceFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse segment file %s: %w", file, err)
		}
		segments = append(segments, parsed...)
	}
	return segments, nil
}

func parseSourceFile(data []byte) ([]protocol.SegmentPayload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["chunks"]; ok {
		var source protocol.SourcePayload
		if err := json.Unmarshal(data, &source); err != nil {
			return nil, err
		}
		out := make([]protocol.SegmentPayload, 0, len(source.Chunks))
		for _, chunk := range source.Chunks {
			out = append(out, protocol.SegmentPayload{
				ID:          uuid.NewString(),
				URL:         source.URL,
				SegmentType: source.SegmentType,
				Chunk:       chunk,
			})
		}
		return out, nil
	}
	var seg protocol.SegmentPayload
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, err
	}
	return []protocol.SegmentPayload{seg}, nil
}

// LoadAnnotationDir parses every *.json annotation file in dir and rejects
// duplicate ids.
func LoadAnnotationDir(dir string) ([]protocol.Annotation, error) {
	files, err := listJSONFiles(dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []protocol.Annotation
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read annotation file %s: %w", file, err)
		}
		var anno protocol.Annotation
		if err := json.Unmarshal(data, &anno); err != nil {
			return nil, fmt.Errorf("parse annotation file %s: %w", file, err)
		}
		anno.Normalize()
		if _, dup := seen[anno.ID]; dup {
			return nil, fmt.Errorf("%w: annotation %s", ErrDuplicate, anno.ID)
		}
		seen[anno.ID] = struct{}{}
		out = append(out, anno)
	}
	return out, nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Export writes one JSON file per annotated segment into dir and returns the
// number of files written.
func (s *Store) Export(ctx context.Context, dir string) (int, error) {
	segments, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	written := 0
	for _, seg := range segments {
		if !seg.Annotated() {
			continue
		}
		data, err := json.MarshalIndent(seg.Annotation(), "", "  ")
		if err != nil {
			return written, fmt.Errorf("encode annotation %s: %w", seg.ID, err)
		}
		data = append(bytes.TrimSpace(data), '\n')
		target := filepath.Join(dir, exportFileName(seg.ID))
		if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
			return written, fmt.Errorf("write annotation %s: %w", seg.ID, err)
		}
		written++
	}
	return written, nil
}

func exportFileName(id string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
	return safe + ".json"
}
