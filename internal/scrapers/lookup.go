package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"game_catalogue/utils"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrBarcodeNotFound = errors.New("barcode not found")
	ErrNoTrailer       = errors.New("no trailer found")
)

type BarcodeResult struct {
	Barcode      string   `json:"barcode"`
	Title        string   `json:"title"`
	AveragePrice *float64 `json:"average_price"`
}

type BarcodeLookup struct {
	BaseURL string
	f       *fetcher
}

func NewBarcodeLookup(opts Options) *BarcodeLookup {
	return &BarcodeLookup{BaseURL: "https://www.barcodelookup.com", f: newFetcher(opts)}
}

var storePrice = regexp.MustCompile(`[$£]\d+(\.\d{2})?`)

// Lookup resolves a product barcode to a title and the mean of the store
// prices listed for it.
func (b *BarcodeLookup) Lookup(ctx context.Context, barcode string) (*BarcodeResult, error) {
	const op = "scrapers.barcode.Lookup"

	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBarcodeNotFound)
	}

	doc, _, err := b.f.document(ctx, b.BaseURL+"/"+url.PathEscape(barcode))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	title := strings.TrimSpace(doc.Find("div.product-details h4").First().Text())
	if title == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBarcodeNotFound)
	}

	var prices []float64
	doc.Find("div.store-list li").Each(func(_ int, li *goquery.Selection) {
		m := storePrice.FindString(li.Text())
		if m == "" {
			return
		}
		if p, ok := utils.ParsePrice(m); ok {
			prices = append(prices, p)
		}
	})

	res := &BarcodeResult{Barcode: barcode, Title: title}
	if len(prices) > 0 {
		res.AveragePrice = ptr(average(prices))
	}

	return res, nil
}

type TrailerFinder struct {
	BaseURL string
	f       *fetcher
}

func NewTrailerFinder(opts Options) *TrailerFinder {
	return &TrailerFinder{BaseURL: "https://www.youtube.com", f: newFetcher(opts)}
}

var videoID = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

// Find returns the watch URL of the first search hit for
// "<title> <platform> trailer".
func (t *TrailerFinder) Find(ctx context.Context, title, platform string) (string, error) {
	const op = "scrapers.youtube.Find"

	terms := strings.Join(strings.Fields(title+" "+platform+" trailer"), " ")
	u := t.BaseURL + "/results?search_query=" + url.QueryEscape(terms)

	doc, _, err := t.f.document(ctx, u)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	m := videoID.FindStringSubmatch(html)
	if m == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNoTrailer)
	}

	return "https://www.youtube.com/watch?v=" + m[1], nil
}
