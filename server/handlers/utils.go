package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "importserver/server/errors"
)

// FileValidator валидатор загружаемых файлов
type FileValidator struct {
	AllowedExtensions []string
	MaxSize           int64
	MinSize           int64
}

// NewFileValidator создает новый валидатор файлов
func NewFileValidator(extensions []string, maxSize, minSize int64) *FileValidator {
	return &FileValidator{
		AllowedExtensions: extensions,
		MaxSize:           maxSize,
		MinSize:           minSize,
	}
}

// ValidateExtension проверяет расширение файла
func (fv *FileValidator) ValidateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range fv.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("file extension %s is not allowed. Allowed extensions: %v", ext, fv.AllowedExtensions),
		nil,
	)
}

// ValidateSize проверяет размер файла
func (fv *FileValidator) ValidateSize(size int64) error {
	if fv.MinSize > 0 && size < fv.MinSize {
		return apperrors.NewValidationError(
			fmt.Sprintf("file size %d is less than minimum %d", size, fv.MinSize),
			nil,
		)
	}
	if fv.MaxSize > 0 && size > fv.MaxSize {
		return apperrors.NewValidationError(
			fmt.Sprintf("file size %d exceeds maximum %d", size, fv.MaxSize),
			nil,
		)
	}
	return nil
}

// SanitizeFilename очищает имя файла от опасных символов
func SanitizeFilename(filename string) string {
	// Удаляем путь, оставляем только имя файла
	filename = filepath.Base(filename)

	// Заменяем опасные символы
	dangerous := []string{"..", "/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range dangerous {
		filename = strings.ReplaceAll(filename, char, "_")
	}

	// Ограничиваем длину
	if len(filename) > 255 {
		filename = filename[:255]
	}

	return filename
}

// EnsureDirectory создает директорию, если она не существует
func EnsureDirectory(dirPath string) error {
	if _, err := os.Stat(dirPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dirPath, 0755); err != nil {
				return apperrors.NewInternalError(
					fmt.Sprintf("failed to create directory %s", dirPath),
					err,
				)
			}
			slog.Info("Created directory", "path", dirPath)
			return nil
		}
		return apperrors.NewInternalError(
			fmt.Sprintf("failed to check directory %s", dirPath),
			err,
		)
	}
	return nil
}
