// Package files manages the fixed upload and output roots backing read_csv
// and save_csv blocks, and the file endpoints of the HTTP layer.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileExists      = errors.New("file already exists")
)

// SafeFilename applies the traversal-prevention rule: a name is rejected if
// empty, ".", "..", or if it contains '/' or '\' anywhere. The rule is
// host-independent: a literal backslash is invalid even on filesystems that
// would treat it as a plain character.
func SafeFilename(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	return name, nil
}

// Storage exposes the uploads root (read_csv sources) and outputs root
// (save_csv destinations).
type Storage struct {
	UploadsDir string
	OutputsDir string
}

func NewStorage(uploadsDir, outputsDir string) *Storage {
	return &Storage{
		UploadsDir: uploadsDir,
		OutputsDir: outputsDir,
	}
}

// UploadPath resolves a sanitized name under the uploads root.
func (s *Storage) UploadPath(name string) (string, error) {
	safe, err := SafeFilename(name)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.UploadsDir, safe), nil
}

// OutputPath resolves a sanitized name under the outputs root, creating the
// root if needed.
func (s *Storage) OutputPath(name string) (string, error) {
	safe, err := SafeFilename(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.OutputsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create outputs directory: %w", err)
	}

	return filepath.Join(s.OutputsDir, safe), nil
}

// ListUploads returns the CSV files in the uploads root, sorted, hidden files
// excluded.
func (s *Storage) ListUploads() ([]string, error) {
	return listCSVs(s.UploadsDir)
}

// ListOutputs returns the CSV files in the outputs root, sorted.
func (s *Storage) ListOutputs() ([]string, error) {
	return listCSVs(s.OutputsDir)
}

// SaveUpload writes a new CSV into the uploads root. Refuses to overwrite.
func (s *Storage) SaveUpload(name string, r io.Reader) (string, error) {
	safe, err := SafeFilename(name)
	if err != nil {
		return "", err
	}

	if !strings.HasSuffix(strings.ToLower(safe), ".csv") {
		return "", fmt.Errorf("%w: only .csv files are allowed", ErrInvalidFilename)
	}

	if err := os.MkdirAll(s.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	path := filepath.Join(s.UploadsDir, safe)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %q", ErrFileExists, safe)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload %q: %w", safe, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write upload %q: %w", safe, err)
	}

	return safe, nil
}

// DeleteUpload removes a file from the uploads root.
func (s *Storage) DeleteUpload(name string) error {
	return deleteFrom(s.UploadsDir, name)
}

// DeleteOutput removes a file from the outputs root.
func (s *Storage) DeleteOutput(name string) error {
	return deleteFrom(s.OutputsDir, name)
}

// ResolveOutput returns the absolute path of an existing output file.
func (s *Storage) ResolveOutput(name string) (string, error) {
	safe, err := SafeFilename(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.OutputsDir, safe)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q", ErrFileNotFound, safe)
	}

	return path, nil
}

func listCSVs(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		if strings.HasSuffix(strings.ToLower(name), ".csv") {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}

func deleteFrom(dir, name string) error {
	safe, err := SafeFilename(name)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, safe)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %q", ErrFileNotFound, safe)
	}

	return os.Remove(path)
}
