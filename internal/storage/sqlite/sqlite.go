package sqlite

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"game_catalogue/internal/config"
	"game_catalogue/internal/models"
	"game_catalogue/internal/storage/migrations"
	"game_catalogue/utils"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Storage struct {
	DB   *gorm.DB
	Path string
}

func DSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func New(cfg config.Database) (*Storage, error) {
	const op = "storage.sqlite.New"

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(DSN(cfg.Path)), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// one writer; every query inside a transaction must go through the tx
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db, Path: cfg.Path}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// legacyPlaceholder is the title of the dummy row older installs seeded into
// an empty games table.
const legacyPlaceholder = "__PLACEHOLDER__"

// Migrate brings the schema up to date, drops the legacy placeholder row and
// fills title_search for rows written before the column existed.
func (s *Storage) Migrate(ctx context.Context, log *slog.Logger) error {
	const op = "storage.sqlite.Migrate"

	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := migrations.NewRunner(sqlDB, log).Up(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.dropPlaceholder(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.backfillTitleSearch(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) dropPlaceholder(ctx context.Context) error {
	return s.DB.WithContext(ctx).
		Where("id = ? AND title = ?", -1, legacyPlaceholder).
		Delete(&models.Game{}).Error
}

func (s *Storage) backfillTitleSearch(ctx context.Context) error {
	var rows []models.Game
	err := s.DB.WithContext(ctx).
		Select("id", "title").
		Where("title_search IS NULL OR title_search = ''").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, g := range rows {
		err := s.DB.WithContext(ctx).
			Model(&models.Game{}).
			Where("id = ?", g.ID).
			Update("title_search", utils.NormalizeForSearch(g.Title)).Error
		if err != nil {
			return err
		}
	}

	return nil
}
