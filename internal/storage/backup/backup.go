package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

const (
	filePrefix  = "games_backup_"
	fileSuffix  = ".db"
	stampLayout = "20060102_150405"
)

// maxSameSecond bounds the _01, _02, ... suffixes of snapshots taken within
// one second.
const maxSameSecond = 99

var ErrNoFolder = errors.New("backup folder is not configured")

type File struct {
	Name      string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type Manager struct {
	mu     sync.Mutex
	db     *gorm.DB
	folder string
	keep   int
	now    func() time.Time
}

func New(db *gorm.DB, folder string, keep int) *Manager {
	return &Manager{db: db, folder: folder, keep: keep, now: time.Now}
}

// Create writes a consistent snapshot of the live database with VACUUM INTO
// and prunes old snapshots beyond the configured limit.
func (m *Manager) Create(ctx context.Context) (*File, error) {
	const op = "storage.backup.Create"

	if m.folder == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoFolder)
	}

	if err := os.MkdirAll(m.folder, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name, err := m.freeName(m.now().Format(stampLayout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	path := filepath.Join(m.folder, name)

	if err := m.db.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := m.Prune(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &File{Name: name, Path: path, Size: info.Size(), CreatedAt: info.ModTime()}, nil
}

func (m *Manager) freeName(stamp string) (string, error) {
	for i := 0; i <= maxSameSecond; i++ {
		name := filePrefix + stamp + fileSuffix
		if i > 0 {
			name = fmt.Sprintf("%s%s_%02d%s", filePrefix, stamp, i, fileSuffix)
		}
		if _, err := os.Stat(filepath.Join(m.folder, name)); os.IsNotExist(err) {
			return name, nil
		}
	}
	return "", fmt.Errorf("too many snapshots at %s", stamp)
}

// List returns snapshots newest first.
func (m *Manager) List() ([]File, error) {
	const op = "storage.backup.List"

	entries, err := os.ReadDir(m.folder)
	if err != nil {
		if os.IsNotExist(err) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:      e.Name(),
			Path:      filepath.Join(m.folder, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	// the timestamp in the name sorts lexically
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })

	return files, nil
}

// Prune removes the oldest snapshots so that at most keep remain. A keep of
// zero disables pruning.
func (m *Manager) Prune() (int, error) {
	if m.keep <= 0 {
		return 0, nil
	}

	files, err := m.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := m.keep; i < len(files); i++ {
		if err := os.Remove(files[i].Path); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}
