// Package steamgriddb talks to the SteamGridDB v2 API for covers, heroes,
// logos and icons.
package steamgriddb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.steamgriddb.com/api/v2"
	// DefaultMaxImageSize caps a single downloaded image.
	DefaultMaxImageSize = 20 << 20
)

var (
	ErrMissingAPIKey = errors.New("steamgriddb api key is not configured")
	ErrNoResults     = errors.New("no results on steamgriddb")
	ErrNotImage      = errors.New("response is not an image")
	ErrTooLarge      = errors.New("image is too large")
)

type Kind string

const (
	KindGrid Kind = "grids"
	KindHero Kind = "heroes"
	KindLogo Kind = "logos"
	KindIcon Kind = "icons"
)

var Kinds = []Kind{KindGrid, KindHero, KindLogo, KindIcon}

type SearchHit struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type Image struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Thumb  string `json:"thumb"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Score  int    `json:"score"`
}

type envelope[T any] struct {
	Success bool     `json:"success"`
	Data    T        `json:"data"`
	Errors  []string `json:"errors"`
}

type Client struct {
	BaseURL      string
	MaxImageSize int64
	apiKey       string
	http         *http.Client
}

func New(apiKey string, timeout time.Duration) (*Client, error) {
	const op = "clients.steamgriddb.New"

	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAPIKey)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		BaseURL:      DefaultBaseURL,
		MaxImageSize: DefaultMaxImageSize,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Video-Game-Catalogue/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoResults
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steamgriddb returned status: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Search returns autocomplete hits, best first.
func (c *Client) Search(ctx context.Context, term string) ([]SearchHit, error) {
	const op = "clients.steamgriddb.Search"

	var res envelope[[]SearchHit]
	if err := c.get(ctx, "/search/autocomplete/"+url.PathEscape(term), nil, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoResults)
	}

	return res.Data, nil
}

// Images lists the artwork of one kind for a SteamGridDB game id. Grids are
// restricted to tall 600x900 covers; nsfw and humor entries are excluded.
func (c *Client) Images(ctx context.Context, kind Kind, gameID int64) ([]Image, error) {
	const op = "clients.steamgriddb.Images"

	params := url.Values{}
	params.Set("nsfw", "false")
	params.Set("humor", "false")
	if kind == KindGrid {
		params.Set("dimensions", "600x900")
	}

	var res envelope[[]Image]
	if err := c.get(ctx, fmt.Sprintf("/%s/game/%d", kind, gameID), params, &res); err != nil {
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res.Data, nil
}

// Download fetches an image and returns its bytes with a file extension
// derived from the content type.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	const op = "clients.steamgriddb.Download"

	if imageURL == "" {
		return nil, "", fmt.Errorf("%s: image url is empty", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%s: failed to download image: %s", op, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%s: %w: %s", op, ErrNotImage, contentType)
	}

	limit := c.MaxImageSize
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	if resp.ContentLength > limit {
		return nil, "", fmt.Errorf("%s: %w: %d bytes", op, ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%s: %w: over %d bytes", op, ErrTooLarge, limit)
	}

	return data, Extension(contentType), nil
}

func Extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "icon"):
		return ".ico"
	}
	return ".jpg"
}
