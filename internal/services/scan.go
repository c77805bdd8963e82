package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"game_catalogue/internal/clients/igdb"
	"game_catalogue/internal/models"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/storage"
)

type GameLookup interface {
	Search(ctx context.Context, name string) ([]igdb.Game, error)
	GetByID(ctx context.Context, id int64) (*igdb.Game, error)
}

type BarcodeLookup interface {
	Lookup(ctx context.Context, barcode string) (*scrapers.BarcodeResult, error)
}

type ScanService struct {
	games    *GameService
	igdb     GameLookup
	barcodes BarcodeLookup
	log      *slog.Logger
}

func NewScanService(games *GameService, lookup GameLookup, barcodes BarcodeLookup, log *slog.Logger) *ScanService {
	return &ScanService{
		games:    games,
		igdb:     lookup,
		barcodes: barcodes,
		log:      log,
	}
}

type ScanResult struct {
	Barcode      string      `json:"barcode,omitempty"`
	Title        string      `json:"title"`
	ExactMatch   *igdb.Game  `json:"exact_match"`
	Alternatives []igdb.Game `json:"alternative_matches"`
	AveragePrice *float64    `json:"average_price"`
	Attempts     []string    `json:"search_attempts"`
}

// Scan resolves a barcode to a product title and listed price, then looks the
// title up on IGDB. Nothing is stored; the client confirms a match with
// Confirm.
func (s *ScanService) Scan(ctx context.Context, barcode string) (*ScanResult, error) {
	const op = "services.scan.Scan"

	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%s: %w: barcode is required", op, storage.ErrInvalidField)
	}

	product, err := s.barcodes.Lookup(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("barcode resolved",
		slog.String("barcode", barcode),
		slog.String("title", product.Title))

	res, err := s.search(ctx, product.Title)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.Barcode = barcode
	res.AveragePrice = product.AveragePrice

	return res, nil
}

// SearchByName runs the same IGDB search as Scan for a typed title.
func (s *ScanService) SearchByName(ctx context.Context, name string) (*ScanResult, error) {
	const op = "services.scan.SearchByName"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w: game_name is required", op, storage.ErrInvalidField)
	}

	res, err := s.search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// search treats "nothing on IGDB" as an empty result rather than an error
// so the scanned title and price still reach the client.
func (s *ScanService) search(ctx context.Context, title string) (*ScanResult, error) {
	res := &ScanResult{Title: title, Alternatives: []igdb.Game{}, Attempts: []string{}}

	found, err := igdb.SearchWithAlternatives(ctx, s.igdb, title)
	if errors.Is(err, igdb.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.ExactMatch = found.ExactMatch
	res.Alternatives = found.Alternatives
	res.Attempts = found.Attempts
	return res, nil
}

// Confirm stores the IGDB game the user picked.
func (s *ScanService) Confirm(ctx context.Context, igdbID int64, averagePrice *float64) (*models.Game, error) {
	const op = "services.scan.Confirm"

	if igdbID <= 0 {
		return nil, fmt.Errorf("%s: %w: igdb_id is required", op, storage.ErrInvalidField)
	}

	found, err := s.igdb.GetByID(ctx, igdbID)
	if err != nil {
		if errors.Is(err, igdb.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g := igdb.ToCatalogueGame(*found)
	g.AveragePrice = averagePrice

	created, err := s.games.Create(ctx, &g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("game added from igdb",
		slog.Int64("id", created.ID),
		slog.Int64("igdb_id", igdbID),
		slog.String("title", created.Title))

	return created, nil
}
