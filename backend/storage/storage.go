package storage

import (
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	Exists(path string) (bool, error)

	Usage() (UsageStats, error)
}

func TemplatePath(templateId uuid.UUID) string {
	return filepath.Join("templates", templateId.String())
}

func TemplateImagePath(templateId uuid.UUID, filename string) string {
	return filepath.Join(TemplatePath(templateId), "images", filename)
}
