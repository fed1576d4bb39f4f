package utils

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// AcceptedResumeExtensions are the extensions the form hints at; they are not enforced
var AcceptedResumeExtensions = []string{".pdf", ".doc", ".docx"}

var (
	ErrEmptyPath   = stderrors.New("path cannot be empty")
	ErrNotExist    = stderrors.New("file does not exist")
	ErrIsDirectory = stderrors.New("path is a directory")
)

// ExpandPath cleans a path typed or pasted into a terminal: surrounding
// whitespace and quotes are dropped and a leading ~ becomes the home directory.
func ExpandPath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) >= 2 && (path[0] == '\'' || path[0] == '"') && path[len(path)-1] == path[0] {
		path = path[1 : len(path)-1]
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ValidateInputFile checks that filename names a readable regular file
func ValidateInputFile(filename string) error {
	if filename == "" {
		return ErrEmptyPath
	}

	info, err := os.Stat(filename)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s", ErrNotExist, filename)
	case err != nil:
		return fmt.Errorf("cannot access %s: %w", filename, err)
	case info.IsDir():
		return fmt.Errorf("%w: %s", ErrIsDirectory, filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", filename, err)
	}
	return f.Close()
}

// ValidateOutputFile checks that filename can be written, creating its
// directory if needed. An empty name means stdout.
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}

	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, filename)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsAcceptedResume reports whether filename has one of the hinted resume extensions
func IsAcceptedResume(filename string) bool {
	return slices.Contains(AcceptedResumeExtensions, GetFileExtension(filename))
}

// FormatFileSize returns a binary-prefixed size such as "12.5 KB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}

	value := float64(size)
	for _, unit := range []string{"KB", "MB", "GB", "TB"} {
		value /= 1024
		if value < 1024 || unit == "TB" {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
	}
	return ""
}
