// Package igdb is a small client for the IGDB v4 games endpoint,
// authenticated with Twitch client credentials.
package igdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	gameFields = "name, cover.url, summary, platforms.name, genres.name, involved_companies.company.name, franchises.name, first_release_date, alternative_names.name"
)

var (
	ErrMissingCredentials = errors.New("igdb credentials are not configured")
	ErrNotFound           = errors.New("game not found on igdb")
)

type Named struct {
	Name string `json:"name"`
}

type Cover struct {
	URL string `json:"url"`
}

type InvolvedCompany struct {
	Company Named `json:"company"`
}

type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	Cover             *Cover            `json:"cover,omitempty"`
	Platforms         []Named           `json:"platforms,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	Franchises        []Named           `json:"franchises,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	AlternativeNames  []Named           `json:"alternative_names,omitempty"`
}

type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

type clientIDTransport struct {
	clientID string
	base     http.RoundTripper
}

func (t *clientIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Client-ID", t.clientID)
	return t.base.RoundTrip(r)
}

// New builds a client whose transport fetches and refreshes the bearer token
// on demand. tokenURL and baseURL may be empty for the public endpoints.
func New(creds Credentials, baseURL, tokenURL string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	const op = "clients.igdb.New"

	if !creds.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	authed := cc.Client(ctx)
	authed.Transport = &clientIDTransport{clientID: creds.ClientID, base: authed.Transport}
	authed.Timeout = timeout

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: authed, log: log}, nil
}

func (c *Client) query(ctx context.Context, body string) ([]Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/games", bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("igdb returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var games []Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("failed to decode igdb response: %w", err)
	}

	return games, nil
}

func (c *Client) Search(ctx context.Context, name string) ([]Game, error) {
	const op = "clients.igdb.Search"

	body := fmt.Sprintf(`search "%s"; fields %s; limit 10;`, escape(name), gameFields)

	games, err := c.query(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug("igdb search", slog.String("query", name), slog.Int("results", len(games)))

	return games, nil
}

func (c *Client) GetByID(ctx context.Context, id int64) (*Game, error) {
	const op = "clients.igdb.GetByID"

	games, err := c.query(ctx, fmt.Sprintf(`fields %s; where id = %d;`, gameFields, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return &games[0], nil
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Provider hands out a client for the current credentials, rebuilding it
// when they change in the settings file.
type Provider struct {
	mu       sync.Mutex
	creds    func() Credentials
	baseURL  string
	tokenURL string
	timeout  time.Duration
	log      *slog.Logger

	current Credentials
	client  *Client
}

func NewProvider(creds func() Credentials, baseURL, tokenURL string, timeout time.Duration, log *slog.Logger) *Provider {
	return &Provider{
		creds:    creds,
		baseURL:  baseURL,
		tokenURL: tokenURL,
		timeout:  timeout,
		log:      log,
	}
}

func (p *Provider) Client() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	creds := p.creds()
	if p.client != nil && creds == p.current {
		return p.client, nil
	}

	c, err := New(creds, p.baseURL, p.tokenURL, p.timeout, p.log)
	if err != nil {
		return nil, err
	}
	p.client, p.current = c, creds

	return c, nil
}

func (p *Provider) Search(ctx context.Context, name string) ([]Game, error) {
	c, err := p.Client()
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, name)
}

func (p *Provider) GetByID(ctx context.Context, id int64) (*Game, error) {
	c, err := p.Client()
	if err != nil {
		return nil, err
	}
	return c.GetByID(ctx, id)
}
