package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"marketplace-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://cdn.test/media/")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "v-1/1-abc.png", []byte("first")))

	err = store.Upload(ctx, "v-1/1-abc.png", []byte("second"))
	assert.True(t, errors.Is(err, ErrExists))

	raw, err := os.ReadFile(filepath.Join(dir, "v-1", "1-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw))

	assert.Equal(t, "http://cdn.test/media/v-1/1-abc.png", store.PublicURL("v-1/1-abc.png"))
}

func TestUploadStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "media"), "http://cdn.test/media")
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "../../escape.png", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "media", "escape.png"))
	assert.NoError(t, err)

	err = store.Upload(context.Background(), "", []byte("x"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestProductImagePath(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	p, err := ProductImagePath("vendor-1", "Photo.JPG", now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^vendor-1/1700000000123-[0-9a-f]{12}\.jpg$`), p)

	other, err := ProductImagePath("vendor-1", "Photo.JPG", now)
	require.NoError(t, err)
	assert.NotEqual(t, p, other)

	_, err = ProductImagePath("vendor-1", "script.sh", now)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}
