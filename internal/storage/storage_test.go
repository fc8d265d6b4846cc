package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/pkg/errors"
)

func wavBytes(samples int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(samples * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // mono
	binary.Write(&buf, binary.LittleEndian, uint32(8000))  // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(16000)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func newStore(t *testing.T, max int64) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir(), "/uploads/", max)
	require.NoError(t, err)
	return s
}

func TestSaveAudio(t *testing.T) {
	s := newStore(t, 1<<20)
	data := wavBytes(4000)

	f, err := s.Save(context.Background(), Audio, "patient-1", bytes.NewReader(data))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(f.Path, "audio/patient-1/"))
	assert.True(t, strings.HasSuffix(f.Path, ".wav"))
	assert.Equal(t, "/uploads/"+f.Path, f.URL)
	assert.Equal(t, int64(len(data)), f.Size)
	assert.Contains(t, f.MimeType, "wav")

	stored, err := os.ReadFile(filepath.Join(s.Root(), filepath.FromSlash(f.Path)))
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestSaveRejectsWrongKind(t *testing.T) {
	s := newStore(t, 1<<20)

	_, err := s.Save(context.Background(), Audio, "p", strings.NewReader("just some text, not audio"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	_, err = s.Save(context.Background(), Image, "p", bytes.NewReader(wavBytes(10)))
	assert.True(t, errors.Is(err, errors.KindBadRequest))
}

func TestSaveImage(t *testing.T) {
	s := newStore(t, 1<<20)

	f, err := s.Save(context.Background(), Image, "", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.MimeType)
	assert.True(t, strings.HasPrefix(f.Path, "image/misc/"))
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	s := newStore(t, 1000)

	_, err := s.Save(context.Background(), Audio, "p", bytes.NewReader(wavBytes(4000)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	entries, _ := os.ReadDir(filepath.Join(s.Root(), "audio", "p"))
	assert.Empty(t, entries, "partial upload must be removed")
}

func TestSaveEmptyUpload(t *testing.T) {
	s := newStore(t, 0)
	_, err := s.Save(context.Background(), Audio, "p", bytes.NewReader(nil))
	assert.True(t, errors.Is(err, errors.KindBadRequest))
}

func TestDelete(t *testing.T) {
	s := newStore(t, 0)
	f, err := s.Save(context.Background(), Image, "x", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), f.Path))
	require.NoError(t, s.Delete(context.Background(), f.Path), "deleting twice is fine")

	assert.Error(t, s.Delete(context.Background(), "../../etc/passwd"))
}

func TestCleanSegment(t *testing.T) {
	assert.Equal(t, "abc-1_2", cleanSegment("a/b..c-1_2"))
	assert.Equal(t, "misc", cleanSegment("../"))
}
