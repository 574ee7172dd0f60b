package services

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	maxListedUploads = 500
	// Text previews are cut at this size; unknown types below it are shown
	// as text too.
	textPreviewLimit = 1024 * 1024
)

var (
	ErrBadName          = errors.New("bad file name")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedMedia = errors.New("unsupported file type")
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var inlineTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
}

var textExtensions = []string{"txt", "log", "md", "json", "csv", "sql", "xml", "yml", "yaml", "env"}

type UploadItem struct {
	Name  string `json:"name"`
	Ext   string `json:"ext"`
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
}

// ViewMode says how a stored file can be previewed.
type ViewMode int

const (
	ViewInline ViewMode = iota
	ViewText
)

// UploadStore keeps uploaded files in a flat directory.
type UploadStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewUploadStore(dir string, maxBytes int64) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &UploadStore{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

func (s *UploadStore) MaxBytes() int64 {
	return s.maxBytes
}

// StoredName builds "<UTC timestamp>__<sanitized name>".
func StoredName(original string, at time.Time) string {
	if original == "" {
		original = "file"
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format("2006-01-02T15:04:05.000Z"))
	return stamp + "__" + unsafeNameChars.ReplaceAllString(filepath.Base(original), "_")
}

// Save writes r under a timestamped name. A body above the size limit is
// removed and reported as ErrFileTooLarge.
func (s *UploadStore) Save(original string, r io.Reader) (UploadItem, error) {
	name := StoredName(original, s.now())
	full := filepath.Join(s.dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return UploadItem{}, fmt.Errorf("failed to create upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(full)
		return UploadItem{}, fmt.Errorf("failed to write upload: %w", err)
	case closeErr != nil:
		os.Remove(full)
		return UploadItem{}, fmt.Errorf("failed to write upload: %w", closeErr)
	case n > s.maxBytes:
		os.Remove(full)
		return UploadItem{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	log.Info().Str("name", name).Int64("size", n).Msg("File uploaded")
	return UploadItem{Name: name, Ext: extOf(name), Size: n, MTime: s.now().UnixMilli()}, nil
}

// List returns regular files, newest first.
func (s *UploadStore) List() ([]UploadItem, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}
	items := []UploadItem{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, UploadItem{
			Name:  e.Name(),
			Ext:   extOf(e.Name()),
			Size:  info.Size(),
			MTime: info.ModTime().UnixMilli(),
		})
	}
	slices.SortStableFunc(items, func(a, b UploadItem) int {
		return cmp.Compare(b.MTime, a.MTime)
	})
	if len(items) > maxListedUploads {
		items = items[:maxListedUploads]
	}
	return items, nil
}

// Open returns the path and info of a stored file.
func (s *UploadStore) Open(name string) (string, fs.FileInfo, error) {
	if err := checkName(name); err != nil {
		return "", nil, err
	}
	full := filepath.Join(s.dir, name)
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return full, info, nil
}

func (s *UploadStore) Delete(name string) (int64, error) {
	full, info, err := s.Open(name)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(full); err != nil {
		return 0, fmt.Errorf("failed to delete upload: %w", err)
	}
	log.Info().Str("name", name).Msg("File deleted")
	return info.Size(), nil
}

// ViewModeOf picks a preview for a file: images and PDFs inline, text-like
// or small files as text, everything else unsupported.
func ViewModeOf(name string, size int64) (ViewMode, string, error) {
	ext := extOf(name)
	if ct, ok := inlineTypes[ext]; ok {
		return ViewInline, ct, nil
	}
	if lo.Contains(textExtensions, ext) || size < textPreviewLimit {
		return ViewText, "text/plain; charset=utf-8", nil
	}
	return 0, "", ErrUnsupportedMedia
}

// ReadTextPreview reads at most the text preview limit from a file.
func ReadTextPreview(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, textPreviewLimit))
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

func extOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
