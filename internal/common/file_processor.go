package common

import (
	"fmt"
	"os"
	"path/filepath"

	"betterats/internal/documents"
	"betterats/internal/errors"
	"betterats/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// ReadRequirements reads one job requirement per line from filename.
func (fp *FileProcessor) ReadRequirements(filename string) ([]string, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("Invalid requirements file %s", filename), err)
	}

	lines, err := utils.ReadLines(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read requirements file: %s", filename), err)
	}
	return lines, nil
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

// ValidateInputFiles checks that every file exists. Files of a type the
// loader does not handle only produce a warning, since the loader skips them.
func (fp *FileProcessor) ValidateInputFiles(filenames ...string) error {
	for _, filename := range filenames {
		if err := utils.ValidateInputFile(filename); err != nil {
			return errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		if _, ok := documents.MimeTypeFor(filename); !ok {
			fp.logger.Warn("File type is not supported and will be skipped",
				"filename", filename,
				"extension", utils.GetFileExtension(filename))
		}
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
