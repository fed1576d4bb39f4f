package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resumeform/internal/errors"
	"resumeform/internal/types"
	"resumeform/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger      *errors.Logger
	maxFileSize int64
}

// NewFileProcessor creates a new file processor instance. A maxFileSize of
// zero or less disables the size check.
func NewFileProcessor(logger *errors.Logger, maxFileSize int64) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger, maxFileSize: maxFileSize}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	var reader io.Reader = file
	if fp.maxFileSize > 0 {
		reader = io.LimitReader(file, fp.maxFileSize+1)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	if fp.maxFileSize > 0 && int64(len(content)) > fp.maxFileSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s exceeds the maximum size of %s", filename, utils.FormatFileSize(fp.maxFileSize)), nil)
	}

	return content, nil
}

// ReadResume validates filename and loads it as a file selection. The
// declared MIME type is detected from the content.
func (fp *FileProcessor) ReadResume(filename string) (types.SelectedFile, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return types.SelectedFile{}, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}

	if !utils.IsAcceptedResume(filename) {
		fp.logger.Warn("File is not a PDF or Word document, submitting anyway", "filename", filename)
	}

	content, err := fp.ReadFile(filename)
	if err != nil {
		return types.SelectedFile{}, err
	}

	mime := mimetype.Detect(content)
	fp.logger.Debug("Detected resume type",
		"filename", filename,
		"content_type", mime.String(),
		"size", utils.FormatFileSize(int64(len(content))))

	return types.SelectedFile{
		Name:        filepath.Base(filename),
		Size:        int64(len(content)),
		ContentType: mime.String(),
		Content:     content,
	}, nil
}

// ReadText reads a UTF-8 text file such as a job description
func (fp *FileProcessor) ReadText(filename string) (string, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return "", errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}

	content, err := fp.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
