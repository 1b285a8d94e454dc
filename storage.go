package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ObjectStorage stores raw image bytes under a caller-chosen key and
// hands back a retrievable public URL.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// uploadsDir is where disk-backed object storage keeps report images.
func uploadsDir(dataRoot string) string {
	return filepath.Join(dataRoot, "uploads", "waste")
}

// diskObjectStorage writes objects below a single root directory and
// serves them under the /media/ route.
type diskObjectStorage struct {
	root          string
	publicBaseURL string
}

func newDiskObjectStorage(root, publicBaseURL string) (*diskObjectStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &diskObjectStorage{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *diskObjectStorage) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	fileName, err := storageFileName(key, extensionFromMime(mimeType, ""))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.root, fileName), data, 0o644); err != nil {
		return "", err
	}
	return s.publicBaseURL + "/media/" + fileName, nil
}

func (s *diskObjectStorage) Delete(ctx context.Context, key string) error {
	safeKey, err := sanitizeStorageKey(key)
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(s.root, safeKey+".*"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func storageFileName(key, ext string) (string, error) {
	safeKey, err := sanitizeStorageKey(key)
	if err != nil {
		return "", err
	}
	return safeKey + ext, nil
}

func sanitizeStorageKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", fmt.Errorf("storage key contains invalid character %q", r)
		}
	}
	return key, nil
}

func extensionFromMime(mimeType string, fallbackName string) string {
	extensions, _ := mime.ExtensionsByType(mimeType)
	if len(extensions) > 0 {
		return extensions[0]
	}
	ext := filepath.Ext(fallbackName)
	if ext == "" {
		return ".jpg"
	}
	return ext
}

// buildImageDataURI inlines image bytes the way the local fallback
// persists them. Not suitable for anything beyond demo volumes.
func buildImageDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
