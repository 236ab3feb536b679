package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"civicreport-be/apperror"
)

// PhotoStorage writes uploaded complaint photos to disk and hands back the
// opaque /uploads/... reference stored on the complaint. Callers treat the
// reference as an opaque locator.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
}

func NewPhotoStorage(rootPath string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create directory %s: %w", rootPath, err)
	}
	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save stores one photo and returns its reference. The first bytes are
// sniffed so only real images land on disk, whatever the client named the
// file.
func (s *PhotoStorage) Save(originalName string, r io.Reader) (string, error) {
	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to read upload")
	}
	head = head[:n]

	if !filetype.IsImage(head) {
		return "", apperror.New(apperror.ErrCodeValidation, "Photo must be an image file")
	}

	ext := filepath.Ext(originalName)
	if kind, err := filetype.Match(head); err == nil && kind.Extension != "unknown" {
		ext = "." + kind.Extension
	}
	fileName := uuid.NewString() + ext
	targetPath := filepath.Join(s.rootPath, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to store photo")
	}
	defer f.Close()

	limited := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), &limited))
	if err != nil {
		_ = os.Remove(tempPath)
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to store photo")
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", apperror.New(apperror.ErrCodeValidation, "Photo exceeds the upload size limit")
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to store photo")
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to store photo")
	}

	return "/uploads/" + fileName, nil
}
