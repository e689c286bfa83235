package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	wavSampleRate = 8000
	wavHeaderSize = 44
)

// WriteWAV writes a mono 8 kHz 16-bit PCM file of silence lasting ms
// milliseconds and returns its size in bytes.
func WriteWAV(t testing.TB, path string, ms int64) int64 {
	t.Helper()

	if ms <= 0 {
		ms = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	dataSize := uint32(ms * wavSampleRate / 1000 * 2)
	buf := make([]byte, wavHeaderSize+int(dataSize))
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], 36+dataSize)
	copy(buf[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], wavSampleRate)
	binary.LittleEndian.PutUint32(buf[28:], wavSampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], dataSize)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return int64(len(buf))
}

// WriteJSON writes raw JSON text to path, creating parent directories.
func WriteJSON(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
