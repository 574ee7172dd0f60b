package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	logoSubdir   = "project-logos"
	maxLogoBytes = 12 * 1024 * 1024
)

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LogoStore keeps project logos under <root>/project-logos. Stored paths are
// relative to root.
type LogoStore struct {
	root string
	now  func() time.Time
}

func NewLogoStore(root string) (*LogoStore, error) {
	if err := os.MkdirAll(filepath.Join(root, logoSubdir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logo dir: %w", err)
	}
	return &LogoStore{root: root, now: time.Now}, nil
}

// Save stores an image for a project and returns its relative path. The
// content type is sniffed, not taken from the client.
func (s *LogoStore) Save(projectID int64, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxLogoBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	if len(data) > maxLogoBytes {
		return "", fmt.Errorf("%w: logo limit is %d bytes", ErrFileTooLarge, maxLogoBytes)
	}
	ext, ok := logoExtensions[http.DetectContentType(data)]
	if !ok {
		return "", fmt.Errorf("%w: logo must be png, jpeg, gif or webp", ErrUnsupportedMedia)
	}

	rel := fmt.Sprintf("%s/project_%d_%d%s", logoSubdir, projectID, s.now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write logo: %w", err)
	}
	log.Info().Int64("project_id", projectID).Str("path", rel).Msg("Project logo stored")
	return rel, nil
}

// Open resolves a relative logo path, refusing anything outside root.
func (s *LogoStore) Open(rel string) (*os.File, string, error) {
	if rel == "" || strings.Contains(rel, "..") || strings.Contains(rel, `\`) {
		return nil, "", fmt.Errorf("%w: %q", ErrBadName, rel)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, "", err
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return nil, "", fmt.Errorf("%w: %q", ErrBadName, rel)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, http.DetectContentType(head[:n]), nil
}
