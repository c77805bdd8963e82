package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"game_catalogue/internal/clients/steamgriddb"
	"game_catalogue/internal/models"
	"game_catalogue/internal/storage"
	"game_catalogue/internal/storage/sqlite"
	"game_catalogue/internal/storage/uploads"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultArtworkLimit = 10
	artworkFolder       = "artwork"
)

var ErrNoArtwork = errors.New("no artwork found")

type ArtworkClient interface {
	Search(ctx context.Context, term string) ([]steamgriddb.SearchHit, error)
	Images(ctx context.Context, kind steamgriddb.Kind, gameID int64) ([]steamgriddb.Image, error)
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

type TrailerFinder interface {
	Find(ctx context.Context, title, platform string) (string, error)
}

// artworkColumns maps each artwork kind to its url and path columns.
var artworkColumns = map[steamgriddb.Kind][2]string{
	steamgriddb.KindGrid: {"high_res_cover_url", "high_res_cover_path"},
	steamgriddb.KindHero: {"hero_image_url", "hero_image_path"},
	steamgriddb.KindLogo: {"logo_image_url", "logo_image_path"},
	steamgriddb.KindIcon: {"icon_image_url", "icon_image_path"},
}

type ArtworkService struct {
	storage  *sqlite.Storage
	log      *slog.Logger
	uploads  uploads.IUploads
	client   func() (ArtworkClient, error)
	trailers TrailerFinder
	workers  int
	delay    time.Duration
	now      func() time.Time
}

// NewArtworkService takes a client factory so a key changed in the runtime
// settings is picked up on the next call.
func NewArtworkService(
	s *sqlite.Storage,
	log *slog.Logger,
	u uploads.IUploads,
	client func() (ArtworkClient, error),
	trailers TrailerFinder,
	opts WorkerOptions,
) *ArtworkService {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	return &ArtworkService{
		storage:  s,
		log:      log,
		uploads:  u,
		client:   client,
		trailers: trailers,
		workers:  opts.Workers,
		delay:    opts.Delay,
		now:      time.Now,
	}
}

type ArtworkResult struct {
	GameID        int64             `json:"game_id"`
	Title         string            `json:"title"`
	SteamGridDBID int64             `json:"steamgriddb_id"`
	Name          string            `json:"steamgriddb_name"`
	Saved         map[string]string `json:"saved"`
	Failed        []string          `json:"failed,omitempty"`
}

type ArtworkStatus struct {
	TotalGames         int64   `json:"total_games"`
	GamesWithHighRes   int64   `json:"games_with_high_res"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

type ArtworkBatch struct {
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []ArtworkResult `json:"results"`
}

func (s *ArtworkService) game(ctx context.Context, id int64) (*models.Game, error) {
	var g models.Game
	if err := s.storage.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// FetchForGame searches SteamGridDB for the game, stores the first grid,
// hero, logo and icon it offers under the media root and points the game's
// artwork columns at them.
func (s *ArtworkService) FetchForGame(ctx context.Context, id int64) (*ArtworkResult, error) {
	const op = "services.artwork.FetchForGame"

	g, err := s.game(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client, err := s.client()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.fetch(ctx, client, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *ArtworkService) fetch(ctx context.Context, client ArtworkClient, g *models.Game) (*ArtworkResult, error) {
	hits, err := client.Search(ctx, g.SearchQuery())
	if errors.Is(err, steamgriddb.ErrNoResults) && g.Platforms.First() != "" {
		hits, err = client.Search(ctx, g.Title)
	}
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, steamgriddb.ErrNoResults
	}
	hit := hits[0]

	res := &ArtworkResult{
		GameID:        g.ID,
		Title:         g.Title,
		SteamGridDBID: hit.ID,
		Name:          hit.Name,
		Saved:         map[string]string{},
	}

	previous := map[steamgriddb.Kind]string{
		steamgriddb.KindGrid: g.HighResCoverPath,
		steamgriddb.KindHero: g.HeroImagePath,
		steamgriddb.KindLogo: g.LogoImagePath,
		steamgriddb.KindIcon: g.IconImagePath,
	}

	updates := map[string]any{}
	for _, kind := range steamgriddb.Kinds {
		name, imageURL, err := s.download(ctx, client, kind, g.ID, hit.ID)
		if err != nil {
			s.log.Warn("failed to fetch artwork",
				slog.Int64("game_id", g.ID),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			res.Failed = append(res.Failed, string(kind))
			continue
		}
		if name == "" {
			continue
		}

		if old := previous[kind]; old != "" && old != name && !strings.HasPrefix(old, "http") {
			_ = s.uploads.DeleteImage(old)
		}

		cols := artworkColumns[kind]
		updates[cols[0]] = imageURL
		updates[cols[1]] = name
		res.Saved[string(kind)] = name
	}

	if len(updates) == 0 {
		return res, ErrNoArtwork
	}

	updates["steamgriddb_id"] = hit.ID
	updates["artwork_last_updated"] = s.now().UTC().Format(models.TimestampLayout)

	if err := s.storage.DB.WithContext(ctx).Model(&models.Game{}).Where("id = ?", g.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	return res, nil
}

// download stores the first image of one kind and returns its media name.
// An empty name means SteamGridDB has nothing of that kind.
func (s *ArtworkService) download(ctx context.Context, client ArtworkClient, kind steamgriddb.Kind, gameID, sgdbID int64) (string, string, error) {
	images, err := client.Images(ctx, kind, sgdbID)
	if err != nil {
		return "", "", err
	}
	if len(images) == 0 {
		return "", "", nil
	}

	data, ext, err := client.Download(ctx, images[0].URL)
	if err != nil {
		return "", "", err
	}

	name := path.Join(artworkFolder, string(kind), fmt.Sprintf("%d%s", gameID, ext))
	if err := s.uploads.WriteImage(data, name); err != nil {
		return "", "", err
	}

	return name, images[0].URL, nil
}

// FetchMissing fetches artwork for up to limit games that have no high
// resolution cover yet.
func (s *ArtworkService) FetchMissing(ctx context.Context, limit int) (*ArtworkBatch, error) {
	const op = "services.artwork.FetchMissing"

	if limit < 1 {
		limit = DefaultArtworkLimit
	}

	client, err := s.client()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var games []models.Game
	err = s.storage.DB.WithContext(ctx).
		Where("high_res_cover_url IS NULL OR high_res_cover_url = ''").
		Order("id ASC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	batch := &ArtworkBatch{Results: []ArtworkResult{}}
	var mu sync.Mutex

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	for i := range games {
		g := &games[i]
		eg.Go(func() error {
			res, err := s.fetch(egctx, client, g)

			mu.Lock()
			batch.Processed++
			if err != nil {
				batch.Failed++
			} else {
				batch.Succeeded++
				batch.Results = append(batch.Results, *res)
			}
			mu.Unlock()

			if err != nil {
				s.log.Warn("artwork fetch failed for game",
					slog.String("operation", op),
					slog.Int64("game_id", g.ID),
					slog.String("error", err.Error()))
			}

			return sleepCtx(egctx, s.delay)
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("artwork batch finished",
		slog.Int("processed", batch.Processed),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed))

	return batch, nil
}

func (s *ArtworkService) Status(ctx context.Context) (*ArtworkStatus, error) {
	const op = "services.artwork.Status"

	st := &ArtworkStatus{}
	db := s.storage.DB.WithContext(ctx).Model(&models.Game{})
	if err := db.Count(&st.TotalGames).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err := s.storage.DB.WithContext(ctx).Model(&models.Game{}).
		Where("high_res_cover_url IS NOT NULL AND high_res_cover_url <> ''").
		Count(&st.GamesWithHighRes).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if st.TotalGames > 0 {
		st.CoveragePercentage = decimal.NewFromInt(st.GamesWithHighRes).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(st.TotalGames)).
			Round(1).
			InexactFloat64()
	}

	return st, nil
}

// Trailer looks up a YouTube trailer for the game and stores its URL.
func (s *ArtworkService) Trailer(ctx context.Context, id int64) (string, error) {
	const op = "services.artwork.Trailer"

	g, err := s.game(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.trailers.Find(ctx, g.Title, g.Platforms.First())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	err = s.storage.DB.WithContext(ctx).Model(&models.Game{}).
		Where("id = ?", id).
		Update("youtube_trailer_url", url).Error
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
