package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskBlobStore writes avatar uploads under baseDir/avatars and serves them
// from baseURL. The random suffix keeps a re-upload from being cached as the
// old image.
type DiskBlobStore struct {
	baseDir string
	baseURL string
}

func NewDiskBlobStore(baseDir, baseURL string) (*DiskBlobStore, error) {
	dir := filepath.Join(baseDir, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}
	return &DiskBlobStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskBlobStore) Put(memberID, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate avatar name: %w", err)
	}

	name := memberID + "-" + hex.EncodeToString(suffix) + ext
	path := filepath.Join(s.baseDir, "avatars", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}

	return s.baseURL + "/avatars/" + name, nil
}
