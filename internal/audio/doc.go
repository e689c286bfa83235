// Package audio cuts the playable window for a segment out of its source
// recording.
//
// Two backends exist. The ffmpeg extractor seeks into the source and encodes
// only the requested chunk plus context, reporting the window offset so the
// client can map region times back to the source. The passthrough extractor
// returns the whole referenced file untouched; it needs no external binary
// and backs the test suites.
//
// Sources may be http(s) URLs (downloaded to a temp file first), file://
// URLs, absolute paths, or paths relative to paths.audio_dir.
package audio
