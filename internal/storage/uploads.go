// Package storage keeps uploaded application files on local disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kycdesk/intake-service/internal/domain"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the per-file limit.
	ErrFileTooLarge = errors.New("uploaded file exceeds size limit")
	// ErrInvalidPath is returned for public paths outside the upload prefix.
	ErrInvalidPath = errors.New("invalid upload path")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Upload is one received multipart file.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FileStore writes uploads under a directory served at a public prefix.
type FileStore struct {
	dir          string
	publicPrefix string
	maxBytes     int64
	now          func() time.Time
}

// NewFileStore creates dir if needed. maxBytes <= 0 disables the size limit.
func NewFileStore(dir, publicPrefix string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir uploads: %w", err)
	}
	return &FileStore{
		dir:          dir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		maxBytes:     maxBytes,
		now:          time.Now,
	}, nil
}

// Dir is the directory files are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// SanitizeFileName keeps only [A-Za-z0-9._-] of the base name.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := unsafeChars.ReplaceAllString(base, "_")
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "file"
	}
	return clean
}

// Save writes the upload to disk as <unix-millis>_<sanitized-name>.
func (s *FileStore) Save(ctx context.Context, up Upload) (domain.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileRef{}, err
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return domain.FileRef{}, fmt.Errorf("%w: %s", ErrFileTooLarge, up.Field)
	}

	src, err := up.Open()
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("open upload %s: %w", up.Field, err)
	}
	defer src.Close()

	f, name, err := s.create(SanitizeFileName(up.Filename))
	if err != nil {
		return domain.FileRef{}, err
	}
	fullPath := filepath.Join(s.dir, name)

	var sniff [512]byte
	n, readErr := io.ReadFull(src, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		f.Close()
		_ = os.Remove(fullPath)
		return domain.FileRef{}, fmt.Errorf("read upload %s: %w", up.Field, readErr)
	}

	var r io.Reader = io.MultiReader(bytes.NewReader(sniff[:n]), src)
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && size > s.maxBytes {
		err = fmt.Errorf("%w: %s", ErrFileTooLarge, up.Field)
	}
	if err != nil {
		_ = os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return domain.FileRef{}, err
		}
		return domain.FileRef{}, fmt.Errorf("write upload %s: %w", up.Field, err)
	}

	mimeType := strings.TrimSpace(up.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(sniff[:n])
	}

	return domain.FileRef{
		Field:        up.Field,
		OriginalName: up.Filename,
		MimeType:     mimeType,
		Size:         size,
		Path:         path.Join(s.publicPrefix, name),
	}, nil
}

func (s *FileStore) create(sanitized string) (*os.File, string, error) {
	stamp := s.now().UnixMilli()
	name := fmt.Sprintf("%d_%s", stamp, sanitized)
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
		name = fmt.Sprintf("%d-%d_%s", stamp, i, sanitized)
	}
}

// Resolve maps a public path such as /uploads/123_a.pdf to its file on disk.
func (s *FileStore) Resolve(publicPath string) (string, error) {
	if !strings.HasPrefix(publicPath, s.publicPrefix+"/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, publicPath)
	}
	name := strings.TrimPrefix(publicPath, s.publicPrefix+"/")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, publicPath)
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes the stored files of refs, ignoring files already gone.
func (s *FileStore) Remove(refs []domain.FileRef) error {
	var errs []error
	for _, ref := range refs {
		p, err := s.Resolve(ref.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
