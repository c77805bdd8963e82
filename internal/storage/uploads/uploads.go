package uploads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrInvalidImage    = errors.New("invalid image data")
	ErrFileExists      = errors.New("file already exists")
	ErrFileNotExists   = errors.New("file does not exist")
	ErrInvalidFileName = errors.New("invalid file name")
)

// IUploads stores media files (covers, artwork) below one root folder.
// Names are slash separated paths relative to that root.
type IUploads interface {
	SaveImage(image []byte, name string) error
	WriteImage(image []byte, name string) error
	DeleteImage(name string) error
	Exists(name string) bool
	Root() string
}

type Uploads struct {
	folderPath string
	mu         sync.RWMutex
}

func NewUploads(folderPath string) (*Uploads, error) {
	if folderPath == "" {
		return nil, errors.New("folder path is empty")
	}

	u := &Uploads{folderPath: filepath.Clean(folderPath)}

	if err := os.MkdirAll(u.folderPath, 0o755); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *Uploads) Root() string {
	return u.folderPath
}

func (u *Uploads) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidFileName
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidFileName
	}
	return filepath.Join(u.folderPath, clean), nil
}

// SaveImage writes a new file and refuses to overwrite.
func (u *Uploads) SaveImage(image []byte, name string) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}

	fullPath, err := u.resolve(name)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(fullPath); err == nil {
		return ErrFileExists
	}

	return writeAtomic(fullPath, image)
}

// WriteImage writes name, replacing any previous content.
func (u *Uploads) WriteImage(image []byte, name string) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}

	fullPath, err := u.resolve(name)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return writeAtomic(fullPath, image)
}

func (u *Uploads) DeleteImage(name string) error {
	fullPath, err := u.resolve(name)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return ErrFileNotExists
	}

	return os.Remove(fullPath)
}

func (u *Uploads) Exists(name string) bool {
	fullPath, err := u.resolve(name)
	if err != nil {
		return false
	}

	u.mu.RLock()
	defer u.mu.RUnlock()

	_, err = os.Stat(fullPath)
	return err == nil
}

func writeAtomic(fullPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	tempPath := fullPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write image data: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
