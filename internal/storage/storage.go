// Package storage keeps uploaded media on local disk under a single root. Only the image
// directory is served statically; audio is read back through Open.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/pkg/errors"
)

const sniffLen = 3072

// Kind restricts what content a directory accepts.
type Kind struct {
	Name   string
	Accept func(mt *mimetype.MIME) bool
}

var (
	Audio = Kind{Name: "audio", Accept: func(mt *mimetype.MIME) bool {
		// browsers record to webm/ogg containers, which sniff as video or application types
		return hasTopLevel(mt, "audio") || mt.Is("video/webm") || mt.Is("application/ogg")
	}}
	Image = Kind{Name: "image", Accept: func(mt *mimetype.MIME) bool {
		return hasTopLevel(mt, "image")
	}}
)

func hasTopLevel(mt *mimetype.MIME, top string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), top+"/") {
			return true
		}
	}
	return false
}

// File describes a stored upload.
type File struct {
	Path     string
	URL      string
	MimeType string
	Size     int64
}

type Store interface {
	Save(ctx context.Context, kind Kind, dir string, r io.Reader) (*File, error)
	Open(ctx context.Context, relPath string) (io.ReadSeekCloser, error)
	Delete(ctx context.Context, relPath string) error
}

type Local struct {
	root       string
	publicPath string
	maxBytes   int64
}

func NewLocal(root, publicPath string, maxBytes int64) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: abs, publicPath: strings.TrimRight(publicPath, "/"), maxBytes: maxBytes}, nil
}

func (s *Local) Root() string { return s.root }

// Save sniffs the content, rejects anything kind does not accept and writes the upload to
// <root>/<kind>/<dir>/<uuid><ext>. The returned Path is relative to the root.
func (s *Local) Save(_ context.Context, kind Kind, dir string, r io.Reader) (*File, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !stderrors.Is(err, io.ErrUnexpectedEOF) && !stderrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, errors.BadRequest("uploaded file is empty")
	}

	mt := mimetype.Detect(head)
	if !kind.Accept(mt) {
		return nil, errors.BadRequest("unsupported %s file type %s", kind.Name, mt.String())
	}

	rel := path.Join(kind.Name, cleanSegment(dir), uuid.NewString()+mt.Extension())
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	src := io.MultiReader(bytes.NewReader(head), r)
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}
	size, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr == nil && s.maxBytes > 0 && size > s.maxBytes {
		copyErr = errors.BadRequest("uploaded file exceeds %d bytes", s.maxBytes)
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(full)
		var appErr *errors.AppError
		if stderrors.As(copyErr, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to write upload: %w", copyErr)
	}

	return &File{
		Path:     rel,
		URL:      s.publicPath + "/" + rel,
		MimeType: mt.String(),
		Size:     size,
	}, nil
}

// Open returns the stored file for reading.
func (s *Local) Open(_ context.Context, relPath string) (io.ReadSeekCloser, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("file")
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Local) Delete(_ context.Context, relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *Local) resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", errors.BadRequest("invalid file path")
	}
	return full, nil
}

func cleanSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
	if s == "" {
		return "misc"
	}
	return s
}
