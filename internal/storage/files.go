// Package storage saves uploaded files under a configured directory and
// hands back a descriptor; nothing else in the system touches the storage
// mechanism.
package storage

import (
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".txt":  true,
}

// FileInfo describes a stored upload.
type FileInfo struct {
	Filename         string
	OriginalFilename string
	Path             string
	Size             int64
	MimeType         string
}

type Store struct {
	dir string
}

// NewStore ensures the upload directory exists. dir defaults to "uploads"
// when empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "uploads"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

// Save writes the upload under a generated unique name inside subfolder and
// returns its descriptor. Disallowed extensions are rejected.
func (s *Store) Save(ctx *gin.Context, file *multipart.FileHeader, subfolder string) (*FileInfo, error) {
	original := filepath.Base(file.Filename)
	extension := strings.ToLower(filepath.Ext(original))

	if !allowedExtensions[extension] {
		return nil, fmt.Errorf("file type %s is not allowed", extension)
	}

	unique := uuid.New().String() + extension
	dir := filepath.Join(s.dir, subfolder)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, unique)

	if err := ctx.SaveUploadedFile(file, path); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	mimeType := file.Header.Get("Content-Type")

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &FileInfo{
		Filename:         unique,
		OriginalFilename: original,
		Path:             path,
		Size:             file.Size,
		MimeType:         mimeType,
	}, nil
}

// Remove deletes a stored file. Best effort; missing files are not an error.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove %s: %v", path, err)
	}
}
