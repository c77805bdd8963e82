package igdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/utils"

	"github.com/agnivade/levenshtein"
)

const (
	MatchThreshold  = 60
	maxAttempts     = 6
	maxAlternatives = 5
)

type Searcher interface {
	Search(ctx context.Context, name string) ([]Game, error)
}

type SearchResult struct {
	ExactMatch   *Game    `json:"exact_match"`
	Alternatives []Game   `json:"alternative_matches"`
	Attempts     []string `json:"attempts"`
}

// Similarity scores how close a candidate is to the query, 0..100, using the
// best of its name and alternative names.
func Similarity(query string, g Game) int {
	q := utils.NormalizeForSearch(query)
	best := ratio(q, utils.NormalizeForSearch(g.Name))
	for _, alt := range g.AlternativeNames {
		if r := ratio(q, utils.NormalizeForSearch(alt.Name)); r > best {
			best = r
		}
	}
	return best
}

func ratio(a, b string) int {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (longest - dist) * 100 / longest
}

type scored struct {
	game  Game
	score int
}

func rank(query string, games []Game) []scored {
	out := make([]scored, len(games))
	for i, g := range games {
		out[i] = scored{game: g, score: Similarity(query, g)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// SearchWithAlternatives tries the title as given, then with console and
// publisher names stripped, then with trailing words dropped, breadth first.
// The first attempt whose best hit clears MatchThreshold wins; the other hits
// of that attempt become alternatives.
func SearchWithAlternatives(ctx context.Context, s Searcher, name string) (*SearchResult, error) {
	const op = "clients.igdb.SearchWithAlternatives"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	res := &SearchResult{Alternatives: []Game{}}
	queue := []string{name}
	seen := map[string]bool{}
	var fallback []scored

	for len(queue) > 0 && len(res.Attempts) < maxAttempts {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		res.Attempts = append(res.Attempts, current)

		games, err := s.Search(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if len(games) > 0 {
			ranked := rank(current, games)
			if ranked[0].score >= MatchThreshold {
				best := ranked[0].game
				res.ExactMatch = &best
				res.Alternatives = collect(ranked[1:])
				return res, nil
			}
			if fallback == nil {
				fallback = ranked
			}
		}

		if cleaned := utils.CleanGameTitle(current); cleaned != "" && cleaned != current {
			queue = append(queue, cleaned)
		}
		if shorter := utils.RemoveLastWord(current); shorter != current {
			queue = append(queue, shorter)
		}
	}

	if len(fallback) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	res.Alternatives = collect(fallback)
	return res, nil
}

func collect(ranked []scored) []Game {
	out := make([]Game, 0, maxAlternatives)
	for _, r := range ranked {
		if len(out) == maxAlternatives {
			break
		}
		out = append(out, r.game)
	}
	return out
}

// CoverURL turns IGDB's protocol-relative thumbnail URL into the https
// cover_big variant.
func CoverURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	return strings.Replace(raw, "t_thumb", "t_cover_big", 1)
}

func names(in []Named) models.List {
	out := make(models.List, 0, len(in))
	for _, n := range in {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

// ToCatalogueGame maps an IGDB record to a catalogue game.
func ToCatalogueGame(g Game) models.Game {
	companies := make([]Named, 0, len(g.InvolvedCompanies))
	for _, ic := range g.InvolvedCompanies {
		companies = append(companies, ic.Company)
	}

	out := models.Game{
		Title:       g.Name,
		Description: g.Summary,
		Publisher:   names(companies),
		Platforms:   names(g.Platforms),
		Genres:      names(g.Genres),
		Series:      names(g.Franchises),
	}
	if g.Cover != nil {
		out.CoverImage = CoverURL(g.Cover.URL)
	}
	if g.FirstReleaseDate > 0 {
		out.ReleaseDate = time.Unix(g.FirstReleaseDate, 0).UTC().Format("2006-01-02")
	}

	return out
}
