// Package filestore хранит загруженные файлы на локальном диске,
// в отдельном каталоге для каждого пользователя.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Store корневой каталог загрузок.
type Store struct {
	baseDir string
}

// New создаёт Store и корневой каталог при необходимости.
func New(baseDir string) (*Store, error) {
	const op = "filestore.New"
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{baseDir: abs}, nil
}

// UserDir каталог файлов пользователя.
func (s *Store) UserDir(userUID string) string {
	return filepath.Join(s.baseDir, filepath.Base(userUID))
}

// File открытый файл для отдачи клиенту.
type File struct {
	*os.File
	Size        int64
	ContentType string
	Ext         string
}

// Open открывает файл по пути. Отсутствующий файл даёт models.ErrFileMissing.
func (s *Store) Open(path string) (*File, error) {
	const op = "filestore.Open"
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrFileMissing)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ext := filepath.Ext(path)
	return &File{
		File:        f,
		Size:        info.Size(),
		ContentType: ContentType(ext),
		Ext:         ext,
	}, nil
}

// Remove удаляет файл, отсутствие файла не ошибка.
func (s *Store) Remove(path string) error {
	const op = "filestore.Remove"
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

// ContentType MIME-тип по расширению файла.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/") {
		return ct
	}
	return "application/octet-stream"
}
