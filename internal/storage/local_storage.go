package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath      = errors.New("invalid path")
	ErrUnsupportedVideo = errors.New("unsupported video format")
)

var allowedExt = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// Allowed reports whether filename has one of the accepted video extensions.
func Allowed(filename string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(filename))]
}

// LocalStorage keeps uploads and per-job result directories on disk.
type LocalStorage struct {
	uploadDir  string
	resultsDir string
}

func NewLocalStorage(uploadDir, resultsDir string) (*LocalStorage, error) {
	for _, d := range []string{uploadDir, resultsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &LocalStorage{uploadDir: uploadDir, resultsDir: resultsDir}, nil
}

// SaveUpload stores r under a fresh uuid name keeping the original extension
// and returns the full path.
func (ls *LocalStorage) SaveUpload(r io.Reader, filename string) (string, error) {
	if !Allowed(filename) {
		return "", ErrUnsupportedVideo
	}
	ext := strings.ToLower(filepath.Ext(filename))
	fullPath := filepath.Join(ls.uploadDir, uuid.New().String()+ext)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return fullPath, nil
}

// JobDir creates and returns the result directory for jobID.
func (ls *LocalStorage) JobDir(jobID string) (string, error) {
	if !safeSegment(jobID) {
		return "", ErrInvalidPath
	}
	dir := filepath.Join(ls.resultsDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	return dir, nil
}

// Open opens a result file of jobID. name must be a plain file name.
func (ls *LocalStorage) Open(jobID, name string) (*os.File, error) {
	if !safeSegment(jobID) || !safeSegment(name) {
		return nil, ErrInvalidPath
	}
	f, err := os.Open(filepath.Join(ls.resultsDir, jobID, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// RemoveJob deletes the result directory of jobID and, when set, the upload
// it was produced from.
func (ls *LocalStorage) RemoveJob(jobID, uploadPath string) error {
	if !safeSegment(jobID) {
		return ErrInvalidPath
	}
	var errs []error
	if err := os.RemoveAll(filepath.Join(ls.resultsDir, jobID)); err != nil {
		errs = append(errs, err)
	}
	if uploadPath != "" {
		rel, err := filepath.Rel(ls.uploadDir, uploadPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			errs = append(errs, ErrInvalidPath)
		} else if err := os.Remove(uploadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}
