package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/internal/storage"
	"game_catalogue/internal/storage/sqlite"
	"game_catalogue/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultGalleryLimit = 24
	maxGalleryLimit     = 100
	defaultTagColor     = "#6366f1"
)

var standardRegions = []string{"PAL", "NTSC", "JP"}

var gallerySorts = map[string]string{
	"title_asc":     "g.title ASC",
	"title_desc":    "g.title DESC",
	"date_asc":      "g.release_date ASC",
	"date_desc":     "g.release_date DESC",
	"rating_desc":   "gm.personal_rating DESC NULLS LAST",
	"rating_asc":    "gm.personal_rating ASC NULLS LAST",
	"price_desc":    "g.average_price DESC NULLS LAST",
	"price_asc":     "g.average_price ASC NULLS LAST",
	"priority_desc": "gm.display_priority DESC NULLS LAST",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type GalleryService struct {
	storage *sqlite.Storage
	log     *slog.Logger
	now     func() time.Time
}

func NewGalleryService(s *sqlite.Storage, log *slog.Logger) *GalleryService {
	return &GalleryService{
		storage: s,
		log:     log,
		now:     time.Now,
	}
}

func (s *GalleryService) stamp() string {
	return s.now().UTC().Format(models.TimestampLayout)
}

// NormalizeGalleryFilter clamps paging and falls back to title order for an
// unknown sort key.
func NormalizeGalleryFilter(f models.GalleryFilter) models.GalleryFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultGalleryLimit
	}
	if f.Limit > maxGalleryLimit {
		f.Limit = maxGalleryLimit
	}
	if _, ok := gallerySorts[f.Sort]; !ok {
		f.Sort = "title_asc"
	}
	return f
}

func (s *GalleryService) filtered(ctx context.Context, f models.GalleryFilter) *gorm.DB {
	db := s.storage.DB.WithContext(ctx).
		Table("games AS g").
		Joins("LEFT JOIN game_gallery_metadata gm ON gm.game_id = g.id").
		Where("IFNULL(gm.gallery_enabled, 1) = 1")

	if f.Platform != "" {
		db = db.Where("g.platforms LIKE ? ESCAPE '\\'", contains(f.Platform))
	}
	if f.Completion != "" {
		db = db.Where("IFNULL(gm.completion_status, ?) = ?", models.StatusNotStarted, f.Completion)
	}
	if f.Favorite != nil {
		db = db.Where("IFNULL(gm.favorite, 0) = ?", *f.Favorite)
	}
	if f.Genre != "" {
		db = db.Where("g.genres LIKE ? ESCAPE '\\'", contains(f.Genre))
	}
	if f.Region != "" {
		db = db.Where("UPPER(IFNULL(NULLIF(g.region, ''), 'PAL')) = ?", strings.ToUpper(strings.TrimSpace(f.Region)))
	}
	if f.Search != "" {
		db = db.Where("g.title_search LIKE ? ESCAPE '\\'", contains(utils.NormalizeForSearch(f.Search)))
	}

	return db
}

// List returns one page of gallery cards with their metadata and tags.
func (s *GalleryService) List(ctx context.Context, f models.GalleryFilter) ([]models.GalleryGame, models.Pagination, error) {
	const op = "services.gallery.List"

	f = NormalizeGalleryFilter(f)

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, fmt.Errorf("%s: %w", op, err)
	}

	var games []models.Game
	err := s.filtered(ctx, f).
		Select("g.*").
		Order(gallerySorts[f.Sort]).
		Order("g.id ASC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&games).Error
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("%s: %w", op, err)
	}

	cards, err := s.attach(ctx, games)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("%s: %w", op, err)
	}

	return cards, models.NewPagination(f.Page, f.Limit, total), nil
}

// attach loads metadata and tags for a page of games in two queries.
func (s *GalleryService) attach(ctx context.Context, games []models.Game) ([]models.GalleryGame, error) {
	cards := make([]models.GalleryGame, 0, len(games))
	if len(games) == 0 {
		return cards, nil
	}

	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}

	var meta []models.GalleryMetadata
	if err := s.storage.DB.WithContext(ctx).Where("game_id IN ?", ids).Find(&meta).Error; err != nil {
		return nil, err
	}
	byGame := make(map[int64]models.GalleryMetadata, len(meta))
	for _, m := range meta {
		byGame[m.GameID] = m
	}

	tags, err := s.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, g := range games {
		m, ok := byGame[g.ID]
		if !ok {
			m = models.DefaultMetadata(g.ID)
		}
		t := tags[g.ID]
		if t == nil {
			t = []models.Tag{}
		}
		cards = append(cards, models.GalleryGame{Game: g, Metadata: m, Tags: t})
	}

	return cards, nil
}

type gameTagRow struct {
	GameID int64
	models.Tag
}

func (s *GalleryService) tagsFor(ctx context.Context, ids []int64) (map[int64][]models.Tag, error) {
	var rows []gameTagRow
	err := s.storage.DB.WithContext(ctx).
		Table("game_tags AS t").
		Select("gta.game_id, t.id, t.tag_name, t.tag_color, t.tag_description, t.display_order, t.created_at").
		Joins("JOIN game_tag_associations gta ON gta.tag_id = t.id").
		Where("gta.game_id IN ?", ids).
		Order("t.tag_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64][]models.Tag)
	for _, r := range rows {
		out[r.GameID] = append(out[r.GameID], r.Tag)
	}
	return out, nil
}

func (s *GalleryService) Get(ctx context.Context, id int64) (*models.GalleryGame, error) {
	const op = "services.gallery.Get"

	var g models.Game
	if err := s.storage.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cards, err := s.attach(ctx, []models.Game{g})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cards[0], nil
}

func validatePatch(p models.MetadataPatch) error {
	if p.CompletionStatus != nil && !p.CompletionStatus.Valid() {
		return fmt.Errorf("%w: completion_status must be one of not_started, in_progress, completed, abandoned", storage.ErrInvalidField)
	}
	if p.PersonalRating != nil && (*p.PersonalRating < 1 || *p.PersonalRating > 10) {
		return fmt.Errorf("%w: personal_rating must be between 1 and 10", storage.ErrInvalidField)
	}
	if p.PlayTimeHours != nil && *p.PlayTimeHours < 0 {
		return fmt.Errorf("%w: play_time_hours must not be negative", storage.ErrInvalidField)
	}
	for name, d := range map[string]*string{
		"date_acquired":  p.DateAcquired,
		"date_started":   p.DateStarted,
		"date_completed": p.DateCompleted,
	} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", *d); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", storage.ErrInvalidField, name)
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setDate(dst **string, src *string) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = nil
		return
	}
	v := *src
	*dst = &v
}

func applyPatch(m *models.GalleryMetadata, p models.MetadataPatch) {
	if p.Favorite != nil {
		m.Favorite = *p.Favorite
	}
	if p.CompletionStatus != nil {
		m.CompletionStatus = *p.CompletionStatus
	}
	if p.PersonalRating != nil {
		m.PersonalRating = p.PersonalRating
	}
	if p.PlayTimeHours != nil {
		m.PlayTimeHours = p.PlayTimeHours
	}
	if p.DisplayPriority != nil {
		m.DisplayPriority = *p.DisplayPriority
	}
	if p.GalleryEnabled != nil {
		m.GalleryEnabled = *p.GalleryEnabled
	}
	setDate(&m.DateAcquired, p.DateAcquired)
	setDate(&m.DateStarted, p.DateStarted)
	setDate(&m.DateCompleted, p.DateCompleted)
	setString(&m.Notes, p.Notes)
	setString(&m.TrailerURL, p.TrailerURL)
	setString(&m.GameFAQsURL, p.GameFAQsURL)
	setString(&m.PowerPyxURL, p.PowerPyxURL)
	setString(&m.MetacriticURL, p.MetacriticURL)
	setString(&m.SteamURL, p.SteamURL)
	setString(&m.PSNURL, p.PSNURL)
	setString(&m.XboxURL, p.XboxURL)
	setString(&m.NintendoURL, p.NintendoURL)
}

// UpdateMetadata applies a partial update, creating the metadata row with
// defaults the first time a game is touched.
func (s *GalleryService) UpdateMetadata(ctx context.Context, gameID int64, p models.MetadataPatch) (*models.GalleryMetadata, error) {
	const op = "services.gallery.UpdateMetadata"

	if err := validatePatch(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var m models.GalleryMetadata
	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Game{}).Where("id = ?", gameID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}

		err := tx.Where("game_id = ?", gameID).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.DefaultMetadata(gameID)
			m.CreatedAt = s.stamp()
		case err != nil:
			return err
		}

		applyPatch(&m, p)
		m.UpdatedAt = s.stamp()

		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &m, nil
}

// Filters lists the values the gallery can be filtered by. The standard
// regions are always offered.
func (s *GalleryService) Filters(ctx context.Context) (*models.GalleryFilters, error) {
	const op = "services.gallery.Filters"

	db := s.storage.DB.WithContext(ctx)

	platforms, err := distinctList(db, "platforms")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	genres, err := distinctList(db, "genres")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var stored []string
	err = db.Model(&models.Game{}).
		Distinct().
		Pluck("UPPER(IFNULL(NULLIF(region, ''), 'PAL'))", &stored).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.GalleryFilters{
		Platforms:          platforms,
		Genres:             genres,
		Regions:            mergeRegions(stored),
		CompletionStatuses: models.CompletionOptions,
		SortOptions:        models.SortOptions,
	}, nil
}

func mergeRegions(stored []string) []string {
	set := make(map[string]struct{}, len(stored)+len(standardRegions))
	for _, r := range append(stored, standardRegions...) {
		if r != "" {
			set[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (s *GalleryService) Tags(ctx context.Context) ([]models.Tag, error) {
	const op = "services.gallery.Tags"

	tags := []models.Tag{}
	if err := s.storage.DB.WithContext(ctx).Order("display_order ASC").Order("tag_name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tags, nil
}

func (s *GalleryService) CreateTag(ctx context.Context, t *models.Tag) (*models.Tag, error) {
	const op = "services.gallery.CreateTag"

	t.ID = 0
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, fmt.Errorf("%s: %w: name is required", op, storage.ErrInvalidField)
	}
	if t.Color == "" {
		t.Color = defaultTagColor
	}
	if !hexColor.MatchString(t.Color) {
		return nil, fmt.Errorf("%s: %w: color must look like #rrggbb", op, storage.ErrInvalidField)
	}
	t.CreatedAt = s.stamp()

	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Tag{}).Where("tag_name = ? COLLATE NOCASE", t.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: tag %q", storage.ErrExists, t.Name)
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// AddTag attaches a tag to a game. Attaching twice is a no-op.
func (s *GalleryService) AddTag(ctx context.Context, gameID, tagID int64) error {
	const op = "services.gallery.AddTag"

	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var games, tags int64
		if err := tx.Model(&models.Game{}).Where("id = ?", gameID).Count(&games).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tag{}).Where("id = ?", tagID).Count(&tags).Error; err != nil {
			return err
		}
		if games == 0 || tags == 0 {
			return storage.ErrNotFound
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.GameTag{GameID: gameID, TagID: tagID, CreatedAt: s.stamp()}).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *GalleryService) RemoveTag(ctx context.Context, gameID, tagID int64) error {
	const op = "services.gallery.RemoveTag"

	res := s.storage.DB.WithContext(ctx).
		Where("game_id = ? AND tag_id = ?", gameID, tagID).
		Delete(&models.GameTag{})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
