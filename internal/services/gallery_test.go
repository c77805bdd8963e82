package services

import (
	"context"
	"testing"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGallery(t *testing.T) (*GalleryService, *GameService) {
	t.Helper()
	games, _ := setupGames(t)
	gallery := NewGalleryService(games.storage, discardLogger())
	gallery.now = func() time.Time { return fixedNow }
	return gallery, games
}

func statusPtr(s models.CompletionStatus) *models.CompletionStatus { return &s }
func boolPtr(b bool) *bool                                       { return &b }
func intPtr(i int) *int                                          { return &i }
func strPtr(s string) *string                                    { return &s }

func titlesOf(cards []models.GalleryGame) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}

func TestNormalizeGalleryFilter(t *testing.T) {
	f := NormalizeGalleryFilter(models.GalleryFilter{Page: -2, Limit: 1000, Sort: "random"})
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, "title_asc", f.Sort)

	f = NormalizeGalleryFilter(models.GalleryFilter{})
	assert.Equal(t, DefaultGalleryLimit, f.Limit)
}

func TestGalleryService_List_DefaultsAndPaging(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	for _, title := range []string{"Castlevania", "Bloodborne", "Axiom Verge"} {
		seedGame(t, games, models.Game{Title: title})
	}

	cards, page, err := gallery.List(ctx, models.GalleryFilter{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"Axiom Verge", "Bloodborne"}, titlesOf(cards))
	assert.Equal(t, models.StatusNotStarted, cards[0].Metadata.CompletionStatus)
	assert.True(t, cards[0].Metadata.GalleryEnabled)
	assert.NotNil(t, cards[0].Tags)
	assert.Equal(t, models.Pagination{
		CurrentPage: 1, TotalPages: 2, TotalCount: 3, PerPage: 2, HasNext: true, HasPrev: false,
	}, page)

	cards, page, err = gallery.List(ctx, models.GalleryFilter{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Castlevania"}, titlesOf(cards))
	assert.True(t, page.HasPrev)
	assert.False(t, page.HasNext)
}

func TestGalleryService_List_Filters(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	celeste := seedGame(t, games, models.Game{Title: "Celeste", Platforms: models.List{"Switch"}, Genres: models.List{"Platformer"}, AveragePrice: price(15)})
	hades := seedGame(t, games, models.Game{Title: "Hades", Platforms: models.List{"Switch", "PC"}, Genres: models.List{"Roguelike"}, AveragePrice: price(20)})
	persona := seedGame(t, games, models.Game{Title: "Persona 5", Platforms: models.List{"PS4"}, Genres: models.List{"RPG"}, Region: "JP"})
	hidden := seedGame(t, games, models.Game{Title: "Hidden Game", Platforms: models.List{"PS4"}})

	_, err := gallery.UpdateMetadata(ctx, celeste.ID, models.MetadataPatch{
		CompletionStatus: statusPtr(models.StatusCompleted), Favorite: boolPtr(true), PersonalRating: intPtr(9),
	})
	require.NoError(t, err)
	_, err = gallery.UpdateMetadata(ctx, hades.ID, models.MetadataPatch{PersonalRating: intPtr(10)})
	require.NoError(t, err)
	_, err = gallery.UpdateMetadata(ctx, hidden.ID, models.MetadataPatch{GalleryEnabled: boolPtr(false)})
	require.NoError(t, err)
	_ = persona

	tests := []struct {
		name   string
		filter models.GalleryFilter
		want   []string
	}{
		{"hidden games excluded", models.GalleryFilter{}, []string{"Celeste", "Hades", "Persona 5"}},
		{"platform", models.GalleryFilter{Platform: "Switch"}, []string{"Celeste", "Hades"}},
		{"completed", models.GalleryFilter{Completion: "completed"}, []string{"Celeste"}},
		{"missing metadata is not started", models.GalleryFilter{Completion: "not_started"}, []string{"Hades", "Persona 5"}},
		{"favorites", models.GalleryFilter{Favorite: boolPtr(true)}, []string{"Celeste"}},
		{"non favorites", models.GalleryFilter{Favorite: boolPtr(false)}, []string{"Hades", "Persona 5"}},
		{"genre", models.GalleryFilter{Genre: "rpg"}, []string{"Persona 5"}},
		{"region", models.GalleryFilter{Region: "jp"}, []string{"Persona 5"}},
		{"search", models.GalleryFilter{Search: "had"}, []string{"Hades"}},
		{"rating high first", models.GalleryFilter{Sort: "rating_desc"}, []string{"Hades", "Celeste", "Persona 5"}},
		{"price low first", models.GalleryFilter{Sort: "price_asc"}, []string{"Celeste", "Hades", "Persona 5"}},
		{"title descending", models.GalleryFilter{Sort: "title_desc"}, []string{"Persona 5", "Hades", "Celeste"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, _, err := gallery.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titlesOf(cards))
		})
	}
}

func TestGalleryService_Get(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	g := seedGame(t, games, models.Game{Title: "Ori"})

	card, err := gallery.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ori", card.Title)
	assert.Equal(t, models.DefaultMetadata(g.ID), card.Metadata)
	assert.Empty(t, card.Tags)

	_, err = gallery.Get(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGalleryService_UpdateMetadata(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	g := seedGame(t, games, models.Game{Title: "Inside"})

	m, err := gallery.UpdateMetadata(ctx, g.ID, models.MetadataPatch{
		CompletionStatus: statusPtr(models.StatusInProgress),
		DateStarted:      strPtr("2025-02-01"),
		Notes:            strPtr("  chapter 3 "),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, m.CompletionStatus)
	assert.Equal(t, "chapter 3", m.Notes)
	assert.Equal(t, "2025-03-01 10:00:00", m.CreatedAt)

	// later patches leave untouched fields alone
	m, err = gallery.UpdateMetadata(ctx, g.ID, models.MetadataPatch{Favorite: boolPtr(true), DateStarted: strPtr("")})
	require.NoError(t, err)
	assert.True(t, m.Favorite)
	assert.Equal(t, models.StatusInProgress, m.CompletionStatus)
	assert.Equal(t, "chapter 3", m.Notes)
	assert.Nil(t, m.DateStarted)

	var count int64
	require.NoError(t, gallery.storage.DB.Model(&models.GalleryMetadata{}).Where("game_id = ?", g.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGalleryService_UpdateMetadata_Rejects(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	g := seedGame(t, games, models.Game{Title: "Limbo"})

	tests := []struct {
		name  string
		id    int64
		patch models.MetadataPatch
		want  error
	}{
		{"bad status", g.ID, models.MetadataPatch{CompletionStatus: statusPtr("paused")}, storage.ErrInvalidField},
		{"rating too low", g.ID, models.MetadataPatch{PersonalRating: intPtr(0)}, storage.ErrInvalidField},
		{"rating too high", g.ID, models.MetadataPatch{PersonalRating: intPtr(11)}, storage.ErrInvalidField},
		{"negative play time", g.ID, models.MetadataPatch{PlayTimeHours: price(-2)}, storage.ErrInvalidField},
		{"bad date", g.ID, models.MetadataPatch{DateCompleted: strPtr("01/02/2025")}, storage.ErrInvalidField},
		{"unknown game", 999, models.MetadataPatch{Favorite: boolPtr(true)}, storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gallery.UpdateMetadata(ctx, tt.id, tt.patch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGalleryService_Filters(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	seedGame(t, games, models.Game{Title: "A", Platforms: models.List{"PS1"}, Genres: models.List{"RPG"}, Region: "ntsc-j"})
	seedGame(t, games, models.Game{Title: "B", Platforms: models.List{"N64", "PS1"}})

	f, err := gallery.Filters(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"N64", "PS1"}, f.Platforms)
	assert.Equal(t, []string{"RPG"}, f.Genres)
	assert.Equal(t, []string{"JP", "NTSC", "NTSC-J", "PAL"}, f.Regions)
	assert.Len(t, f.CompletionStatuses, 4)
	assert.Len(t, f.SortOptions, 9)
}

func TestGalleryService_Tags(t *testing.T) {
	gallery, games := setupGallery(t)
	ctx := context.Background()

	g := seedGame(t, games, models.Game{Title: "Chrono Trigger"})

	tag, err := gallery.CreateTag(ctx, &models.Tag{Name: " Classic "})
	require.NoError(t, err)
	assert.Equal(t, "Classic", tag.Name)
	assert.Equal(t, "#6366f1", tag.Color)

	_, err = gallery.CreateTag(ctx, &models.Tag{Name: "classic"})
	assert.ErrorIs(t, err, storage.ErrExists)
	_, err = gallery.CreateTag(ctx, &models.Tag{Name: "Retro", Color: "red"})
	assert.ErrorIs(t, err, storage.ErrInvalidField)
	_, err = gallery.CreateTag(ctx, &models.Tag{Name: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidField)

	require.NoError(t, gallery.AddTag(ctx, g.ID, tag.ID))
	// adding twice is harmless
	require.NoError(t, gallery.AddTag(ctx, g.ID, tag.ID))

	card, err := gallery.Get(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, card.Tags, 1)
	assert.Equal(t, "Classic", card.Tags[0].Name)

	assert.ErrorIs(t, gallery.AddTag(ctx, g.ID, 999), storage.ErrNotFound)
	assert.ErrorIs(t, gallery.AddTag(ctx, 999, tag.ID), storage.ErrNotFound)

	require.NoError(t, gallery.RemoveTag(ctx, g.ID, tag.ID))
	assert.ErrorIs(t, gallery.RemoveTag(ctx, g.ID, tag.ID), storage.ErrNotFound)

	tags, err := gallery.Tags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}
