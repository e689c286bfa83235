package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"segcheck/internal/protocol"
)

// Passthrough returns the whole source file. The chunk is passed back
// unchanged with a zero offset, so context is ignored.
type Passthrough struct {
	sources sourceResolver
}

func (p *Passthrough) Extract(ctx context.Context, url string, chunk protocol.Chunk, _, _ int64) (protocol.AudioChunk, error) {
	if err := chunk.Validate(); err != nil {
		return protocol.AudioChunk{}, fmt.Errorf("extract audio: %w", err)
	}
	source, cleanup, err := p.sources.localPath(ctx, url)
	defer cleanup()
	if err != nil {
		return protocol.AudioChunk{}, err
	}
	audio, err := encodeFile(source)
	if err != nil {
		return protocol.AudioChunk{}, err
	}
	return protocol.AudioChunk{
		Audio:    audio,
		FileType: MimeType(filepath.Ext(source)),
		Chunk:    chunk,
	}, nil
}
