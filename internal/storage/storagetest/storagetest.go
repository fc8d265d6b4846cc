// Package storagetest provides an in-memory media store and sample uploads for tests.
package storagetest

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"path"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/storage"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

// Memory keeps files in a map and applies the same content checks as storage.Local.
type Memory struct {
	mu    sync.Mutex
	Files map[string][]byte
}

var _ storage.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{Files: map[string][]byte{}}
}

func (m *Memory) Save(_ context.Context, kind storage.Kind, dir string, r io.Reader) (*storage.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.BadRequest("uploaded file is empty")
	}
	mt := mimetype.Detect(data)
	if !kind.Accept(mt) {
		return nil, errors.BadRequest("%s files are not accepted, expected %s", mt.String(), kind.Name)
	}

	rel := path.Join(kind.Name, dir, uuid.NewString()+mt.Extension())
	m.mu.Lock()
	m.Files[rel] = data
	m.mu.Unlock()
	return &storage.File{Path: rel, URL: "/uploads/" + rel, MimeType: mt.String(), Size: int64(len(data))}, nil
}

func (m *Memory) Open(_ context.Context, rel string) (io.ReadSeekCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[rel]
	if !ok {
		return nil, errors.NotFound("file")
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func (m *Memory) Delete(_ context.Context, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Files, rel)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Files)
}

// WAV returns a silent mono PCM recording.
func WAV(samples int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(samples * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	for _, v := range []interface{}{uint32(16), uint16(1), uint16(1), uint32(8000), uint32(16000), uint16(2), uint16(16)} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

// PNG is the header of a 1x1 PNG image, enough for content sniffing.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
