package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestStoredName(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC)
	assert.Equal(t, "2024-03-05T14-07-09-123Z__my_report__1_.pdf", StoredName("my report (1).pdf", at))
	assert.Equal(t, "2024-03-05T14-07-09-123Z__file", StoredName("", at))
	assert.Equal(t, "2024-03-05T14-07-09-123Z__passwd", StoredName("../../etc/passwd", at))
}

func TestUploadStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewUploadStore(dir, 10)
	require.NoError(t, err)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := store.Save("a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Size)
	assert.Equal(t, "txt", first.Ext)

	_, err = store.Save("big.bin", bytes.NewReader(make([]byte, 11)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	second, err := store.Save("b.png", bytes.NewReader(tinyPNG[:10]))
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(filepath.Join(dir, first.Name), clock, clock.Add(-time.Hour)))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 2, "oversized upload must not be kept")
	assert.Equal(t, second.Name, items[0].Name)
	assert.Equal(t, first.Name, items[1].Name)

	for _, bad := range []string{"", "../x", "a/b", `a\b`} {
		_, _, err := store.Open(bad)
		assert.ErrorIs(t, err, ErrBadName, bad)
	}
	_, _, err = store.Open("missing.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	size, err := store.Delete(first.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	_, err = store.Delete(first.Name)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestViewModeOf(t *testing.T) {
	mode, ct, err := ViewModeOf("photo.JPG", 5<<20)
	require.NoError(t, err)
	assert.Equal(t, ViewInline, mode)
	assert.Equal(t, "image/jpeg", ct)

	mode, _, err = ViewModeOf("server.log", 50<<20)
	require.NoError(t, err)
	assert.Equal(t, ViewText, mode)

	mode, _, err = ViewModeOf("blob.bin", 100)
	require.NoError(t, err)
	assert.Equal(t, ViewText, mode)

	_, _, err = ViewModeOf("blob.bin", 2<<20)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestLogoStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewLogoStore(root)
	require.NoError(t, err)

	rel, err := store.Save(3, bytes.NewReader(tinyPNG))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "project-logos/project_3_"))
	assert.True(t, strings.HasSuffix(rel, ".png"))

	f, ct, err := store.Open(rel)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "image/png", ct)

	_, err = store.Save(3, strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	for _, bad := range []string{"", "../secret", `project-logos\x.png`, "/etc/passwd"} {
		_, _, err := store.Open(bad)
		assert.Error(t, err, bad)
	}
	_, _, err = store.Open("project-logos/missing.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
