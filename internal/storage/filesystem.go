package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore persists artifacts onto the local filesystem and addresses them by
// public URL. The directory is served under baseURL by the API process.
type FileStore struct {
	basePath string
	baseURL  string
	now      func() time.Time
	newID    func() string
}

// NewFileStore initializes a FileStore rooted at basePath whose files are
// reachable below baseURL.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  baseURL,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put stores data under a fresh key derived from filename and contentType and
// returns its public URL.
func (s *FileStore) Put(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("storage: empty artifact")
	}
	key, err := s.write(s.objectKey(filename, contentType), data)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes the file behind url. It returns false when url does not
// belong to this store or the file is already gone.
func (s *FileStore) Delete(ctx context.Context, url string) (bool, error) {
	if s == nil {
		return false, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(url), s.baseURL+"/")
	if !ok {
		return false, nil
	}
	key, err := sanitizeKey(rest)
	if err != nil {
		return false, err
	}
	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: remove file: %w", err)
	}
	return true, nil
}

func (s *FileStore) objectKey(filename, contentType string) string {
	base := sanitizeName(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if base == "" {
		base = "artifact"
	}
	ext := strings.ToLower(path.Ext(base))
	if want := extensionForMIME(contentType); want != "" && ext != want && ext != ".jpeg" {
		base += want
	}
	day := s.now().UTC().Format("2006/01/02")
	return fmt.Sprintf("generated/%s/%s-%s", day, s.newID(), base)
}

func (s *FileStore) write(key string, data []byte) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

func extensionForMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}
