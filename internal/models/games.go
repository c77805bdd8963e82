package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// List is a multi-valued column (platforms, genres, series). It is stored as
// a comma separated string and exposed as a JSON array.
type List []string

func SplitList(s string) List {
	if strings.TrimSpace(s) == "" {
		return List{}
	}
	parts := strings.Split(s, ",")
	out := make(List, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l List) String() string {
	return strings.Join(l, ", ")
}

func (l List) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

func (l List) Value() (driver.Value, error) {
	return l.String(), nil
}

func (l *List) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = List{}
	case string:
		*l = SplitList(v)
	case []byte:
		*l = SplitList(string(v))
	default:
		return fmt.Errorf("models.List: unsupported type %T", src)
	}
	return nil
}

func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// UnmarshalJSON accepts both an array and the comma separated string older
// clients send.
func (l *List) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = SplitList(strings.Join(arr, ","))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models.List: %w", err)
	}
	*l = SplitList(s)
	return nil
}

type Game struct {
	ID                 int64    `json:"id" gorm:"primaryKey"`
	Title              string   `json:"title"`
	TitleSearch        string   `json:"-"`
	CoverImage         string   `json:"cover_image"`
	Description        string   `json:"description"`
	Publisher          List     `json:"publisher"`
	Platforms          List     `json:"platforms"`
	Genres             List     `json:"genres"`
	Series             List     `json:"series"`
	ReleaseDate        string   `json:"release_date"`
	AveragePrice       *float64 `json:"average_price"`
	Region             string   `json:"region"`
	YoutubeTrailerURL  string   `json:"youtube_trailer_url"`
	DateAdded          string   `json:"date_added"`
	HighResCoverURL    string   `json:"high_res_cover_url"`
	HighResCoverPath   string   `json:"high_res_cover_path"`
	HeroImageURL       string   `json:"hero_image_url"`
	HeroImagePath      string   `json:"hero_image_path"`
	LogoImageURL       string   `json:"logo_image_url"`
	LogoImagePath      string   `json:"logo_image_path"`
	IconImageURL       string   `json:"icon_image_url"`
	IconImagePath      string   `json:"icon_image_path"`
	SteamGridDBID      *int64   `json:"steamgriddb_id" gorm:"column:steamgriddb_id"`
	ArtworkLastUpdated *string  `json:"artwork_last_updated"`
}

func (Game) TableName() string {
	return "games"
}

// Year returns the four digit year of the release date, or "".
func (g *Game) Year() string {
	if len(g.ReleaseDate) < 4 {
		return ""
	}
	return g.ReleaseDate[:4]
}

// SearchQuery is the text sent to marketplaces: title plus first platform.
func (g *Game) SearchQuery() string {
	if p := g.Platforms.First(); p != "" {
		return g.Title + " " + p
	}
	return g.Title
}

// ArtworkPaths lists the local media files that belong to the game.
func (g *Game) ArtworkPaths() []string {
	var paths []string
	for _, p := range []string{g.CoverImage, g.HighResCoverPath, g.HeroImagePath, g.LogoImagePath, g.IconImagePath} {
		if p != "" && !strings.HasPrefix(p, "http") {
			paths = append(paths, p)
		}
	}
	return paths
}

// TimestampLayout is how timestamps are written to TEXT columns.
const TimestampLayout = "2006-01-02 15:04:05"

type GameFilter struct {
	Publisher string
	Platform  string
	Genre     string
	Year      string
	Search    string
	Region    string
}
