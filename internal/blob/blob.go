// Package blob stores product images on the local filesystem and serves
// them under a public base URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"marketplace-service/internal/apperr"

	"github.com/google/uuid"
)

// ErrExists is returned when an upload targets an existing object
var ErrExists = errors.New("blob already exists")

var allowedExt = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory served as static files
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload writes data at objectPath. Existing objects are never overwritten.
func (s *LocalStore) Upload(ctx context.Context, objectPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create blob dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("failed to open blob: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return f.Close()
}

// PublicURL returns the URL a client fetches objectPath from
func (s *LocalStore) PublicURL(objectPath string) string {
	return s.baseURL + "/" + strings.TrimLeft(path.Clean("/"+objectPath), "/")
}

func (s *LocalStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", apperr.New(apperr.KindInvalidInput, "empty blob path")
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// ProductImagePath builds "{vendor_id}/{unix_millis}-{random}.{ext}" for an
// uploaded file name. Unsupported extensions are rejected.
func ProductImagePath(vendorID, fileName string, now time.Time) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !allowedExt[ext] {
		return "", apperr.New(apperr.KindInvalidInput, "unsupported image type %q", ext)
	}
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("%s/%d-%s.%s", vendorID, now.UnixMilli(), random, ext), nil
}
