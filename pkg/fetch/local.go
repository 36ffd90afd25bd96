package fetch

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFoundLocal is returned when a local input or target is missing.
// It also matches os.ErrNotExist.
var ErrNotFoundLocal = errors.New("not found locally")

var fileNameReplacer = strings.NewReplacer(":", "+", "/", "=")

// FileName maps an identifier to the archive name it is stored under.
func FileName(id string) string {
	return fileNameReplacer.Replace(id) + ".zip"
}

// CheckDir verifies that dir exists and is a directory.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: target directory %s: %w", ErrNotFoundLocal, dir, os.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("stat target directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotFoundLocal, dir)
	}
	return nil
}

// OpenIDFile opens a file of identifiers, one per line.
func OpenIDFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: id file %s: %w", ErrNotFoundLocal, path, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open id file: %w", err)
	}
	return f, nil
}
