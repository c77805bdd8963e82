package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"game_catalogue/internal/events"
	"game_catalogue/internal/models"
	"game_catalogue/internal/storage"
	"game_catalogue/internal/storage/sqlite"
	"game_catalogue/utils"

	"gorm.io/gorm"
)

var csvHeader = []string{
	"id", "title", "platforms", "publisher", "genres", "series",
	"release_date", "region", "average_price", "date_added", "description",
}

type GameService struct {
	storage *sqlite.Storage
	log     *slog.Logger
	events  events.Publisher
	now     func() time.Time
}

func NewGameService(s *sqlite.Storage, log *slog.Logger, pub events.Publisher) *GameService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &GameService{
		storage: s,
		log:     log,
		events:  pub,
		now:     time.Now,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// contains builds a substring pattern for "LIKE ? ESCAPE '\'" with the
// wildcards in s taken literally.
func contains(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}

func (s *GameService) filtered(ctx context.Context, f models.GameFilter) *gorm.DB {
	db := s.storage.DB.WithContext(ctx).Model(&models.Game{})

	if f.Publisher != "" {
		db = db.Where("publisher LIKE ? ESCAPE '\\'", contains(f.Publisher))
	}
	if f.Platform != "" {
		db = db.Where("platforms LIKE ? ESCAPE '\\'", contains(f.Platform))
	}
	if f.Genre != "" {
		db = db.Where("genres LIKE ? ESCAPE '\\'", contains(f.Genre))
	}
	if f.Year != "" {
		db = db.Where("substr(release_date, 1, 4) = ?", strings.TrimSpace(f.Year))
	}
	if f.Search != "" {
		db = db.Where("title_search LIKE ? ESCAPE '\\'", contains(utils.NormalizeForSearch(f.Search)))
	}
	if f.Region != "" {
		db = db.Where("UPPER(IFNULL(NULLIF(region, ''), 'PAL')) = ?", strings.ToUpper(strings.TrimSpace(f.Region)))
	}

	return db
}

func (s *GameService) List(ctx context.Context, f models.GameFilter) ([]models.Game, error) {
	const op = "services.games.List"

	games := []models.Game{}
	if err := s.filtered(ctx, f).Order("title ASC").Order("id ASC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return games, nil
}

func (s *GameService) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	const op = "services.games.GetByID"

	var g models.Game
	if err := s.storage.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &g, nil
}

func validateGame(g *models.Game) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return fmt.Errorf("%w: title is required", storage.ErrInvalidField)
	}
	if g.AveragePrice != nil && *g.AveragePrice < 0 {
		return fmt.Errorf("%w: average_price must not be negative", storage.ErrInvalidField)
	}
	if g.Platforms == nil {
		g.Platforms = models.List{}
	}
	if g.Publisher == nil {
		g.Publisher = models.List{}
	}
	if g.Genres == nil {
		g.Genres = models.List{}
	}
	if g.Series == nil {
		g.Series = models.List{}
	}
	g.TitleSearch = utils.NormalizeForSearch(g.Title)
	return nil
}

func titleTaken(tx *gorm.DB, title string, exceptID int64) (bool, error) {
	var count int64
	err := tx.Model(&models.Game{}).
		Where("title = ? AND id <> ?", title, exceptID).
		Count(&count).Error
	return count > 0, err
}

// Create stores a new game. Titles are unique; the id is assigned by the
// database.
func (s *GameService) Create(ctx context.Context, g *models.Game) (*models.Game, error) {
	const op = "services.games.Create"

	if err := validateGame(g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.ID = 0
	if g.Region == "" {
		g.Region = "PAL"
	}
	g.DateAdded = s.now().UTC().Format(models.TimestampLayout)

	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := titleTaken(tx, g.Title, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", storage.ErrExists, g.Title)
		}
		return tx.Create(g).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(events.SubjectGameCreated, g)

	return g, nil
}

// Update replaces the descriptive fields of an existing game. Price,
// artwork and trailer columns are owned by their own services.
func (s *GameService) Update(ctx context.Context, g *models.Game) (*models.Game, error) {
	const op = "services.games.Update"

	if err := validateGame(g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var updated models.Game
	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, g.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		taken, err := titleTaken(tx, g.Title, g.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", storage.ErrExists, g.Title)
		}

		columns := []string{
			"title", "title_search", "description", "publisher",
			"platforms", "genres", "series", "release_date",
		}
		// an absent cover keeps the stored one, uploads go through SetCover
		if g.CoverImage != "" {
			columns = append(columns, "cover_image")
		}
		if g.Region != "" {
			columns = append(columns, "region")
		}

		if err := tx.Model(&models.Game{}).Where("id = ?", g.ID).Select(columns).Updates(g).Error; err != nil {
			return err
		}

		return tx.First(&updated, g.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &updated, nil
}

// Delete removes the game and, through the foreign keys, its history,
// metadata, tags and alert settings. The removed row is returned so the
// caller can clean up media files.
func (s *GameService) Delete(ctx context.Context, id int64) (*models.Game, error) {
	const op = "services.games.Delete"

	var g models.Game
	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(&models.Game{}, id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(events.SubjectGameDeleted, map[string]any{"id": g.ID, "title": g.Title})

	return &g, nil
}

func (s *GameService) SetCover(ctx context.Context, id int64, cover string) error {
	const op = "services.games.SetCover"

	res := s.storage.DB.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Update("cover_image", cover)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// Platforms returns every distinct console across the collection, sorted.
func (s *GameService) Platforms(ctx context.Context) ([]string, error) {
	const op = "services.games.Platforms"

	values, err := distinctList(s.storage.DB.WithContext(ctx), "platforms")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return values, nil
}

// UniqueValues lists distinct values for one filter field: publisher,
// platform, genre or year.
func (s *GameService) UniqueValues(ctx context.Context, field string) ([]string, error) {
	const op = "services.games.UniqueValues"

	var (
		values []string
		err    error
	)

	switch field {
	case "publisher":
		values, err = distinctList(s.storage.DB.WithContext(ctx), "publisher")
	case "platform":
		values, err = distinctList(s.storage.DB.WithContext(ctx), "platforms")
	case "genre":
		values, err = distinctList(s.storage.DB.WithContext(ctx), "genres")
	case "year":
		var years []string
		err = s.storage.DB.WithContext(ctx).Model(&models.Game{}).
			Where("release_date IS NOT NULL AND length(release_date) >= 4").
			Distinct().
			Order("1 DESC").
			Pluck("substr(release_date, 1, 4)", &years).Error
		values = years
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, storage.ErrInvalidField, field)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if values == nil {
		values = []string{}
	}

	return values, nil
}

func distinctList(db *gorm.DB, column string) ([]string, error) {
	var raw []string
	err := db.Model(&models.Game{}).
		Where(column + " IS NOT NULL AND " + column + " <> ''").
		Distinct().
		Pluck(column, &raw).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, r := range raw {
		for _, v := range models.SplitList(r) {
			set[v] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)

	return out, nil
}

// ExportCSV writes the filtered collection, one row per game, list fields
// joined with ", ".
func (s *GameService) ExportCSV(ctx context.Context, w io.Writer, f models.GameFilter) (int, error) {
	const op = "services.games.ExportCSV"

	games, err := s.List(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for _, g := range games {
		price := ""
		if g.AveragePrice != nil {
			price = strconv.FormatFloat(*g.AveragePrice, 'f', 2, 64)
		}
		row := []string{
			strconv.FormatInt(g.ID, 10),
			g.Title,
			g.Platforms.String(),
			g.Publisher.String(),
			g.Genres.String(),
			g.Series.String(),
			g.ReleaseDate,
			g.Region,
			price,
			g.DateAdded,
			g.Description,
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return len(games), nil
}

func (s *GameService) publish(subject string, payload any) {
	if err := s.events.Publish(subject, payload); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
