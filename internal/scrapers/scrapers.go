// Package scrapers reads marketplace search pages and extracts a resale
// price for a game.
package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceEBay          Source = "eBay"
	SourceAmazon        Source = "Amazon"
	SourceCeX           Source = "CeX"
	SourcePriceCharting Source = "PriceCharting"
)

var Sources = []Source{SourceEBay, SourceAmazon, SourceCeX, SourcePriceCharting}

var (
	ErrUnknownSource = errors.New("unknown price source")
	ErrNoPrice       = errors.New("no price found")
	ErrBlocked       = errors.New("request blocked by site")
)

// ParseSource matches a source name case-insensitively.
func ParseSource(s string) (Source, error) {
	for _, src := range Sources {
		if strings.EqualFold(s, string(src)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

type Query struct {
	Title    string `json:"title"`
	Platform string `json:"platform"`
	Region   string `json:"region"`
}

// Text is what gets typed into a marketplace search box.
func (q Query) Text() string {
	t := strings.TrimSpace(q.Title)
	if p := strings.TrimSpace(q.Platform); p != "" {
		t += " " + p
	}
	return t
}

type Result struct {
	Source   Source   `json:"source"`
	Price    float64  `json:"price"`
	Loose    *float64 `json:"loose_price,omitempty"`
	CIB      *float64 `json:"cib_price,omitempty"`
	New      *float64 `json:"new_price,omitempty"`
	Listings int      `json:"listings,omitempty"`
	URL      string   `json:"url"`
}

type Scraper interface {
	Source() Source
	Scrape(ctx context.Context, q Query) (*Result, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(opts Options) *fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &fetcher{client: client, userAgent: ua}
}

// document fetches url and returns the parsed page along with the URL it
// ended up at after redirects.
func (f *fetcher) document(ctx context.Context, url string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable:
		return nil, "", fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, resp.Request.URL.String(), nil
}

// average returns the mean of prices rounded to pennies.
func average(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	ds := make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		ds[i] = decimal.NewFromFloat(p)
	}
	return decimal.Avg(ds[0], ds[1:]...).Round(2).InexactFloat64()
}

func ptr(f float64) *float64 {
	return &f
}
