package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"game_catalogue/utils"

	"github.com/PuerkitoBio/goquery"
)

type EBay struct {
	BaseURL string
	f       *fetcher
}

func NewEBay(opts Options) *EBay {
	return &EBay{BaseURL: "https://www.ebay.co.uk", f: newFetcher(opts)}
}

func (s *EBay) Source() Source { return SourceEBay }

// Scrape averages every listed price on the first results page.
func (s *EBay) Scrape(ctx context.Context, q Query) (*Result, error) {
	const op = "scrapers.ebay.Scrape"

	u := s.BaseURL + "/sch/i.html?_nkw=" + url.QueryEscape(q.Text())

	doc, _, err := s.f.document(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var prices []float64
	doc.Find(".s-item").Each(func(_ int, item *goquery.Selection) {
		// the first card is a hidden "Shop on eBay" template
		if strings.Contains(item.Find(".s-item__title").Text(), "Shop on eBay") {
			return
		}
		if p, ok := utils.ParsePrice(item.Find("span.s-item__price").First().Text()); ok {
			prices = append(prices, p)
		}
	})

	if len(prices) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPrice)
	}

	return &Result{Source: SourceEBay, Price: average(prices), Listings: len(prices), URL: u}, nil
}

type Amazon struct {
	BaseURL string
	f       *fetcher
}

func NewAmazon(opts Options) *Amazon {
	return &Amazon{BaseURL: "https://www.amazon.co.uk", f: newFetcher(opts)}
}

func (s *Amazon) Source() Source { return SourceAmazon }

// Scrape returns the first whole price on the results page. Captcha pages
// are reported as ErrBlocked.
func (s *Amazon) Scrape(ctx context.Context, q Query) (*Result, error) {
	const op = "scrapers.amazon.Scrape"

	u := s.BaseURL + "/s?k=" + url.QueryEscape(q.Text())

	doc, _, err := s.f.document(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if doc.Find("form[action*='validateCaptcha']").Length() > 0 ||
		strings.Contains(strings.ToLower(doc.Find("body").Text()), "enter the characters you see below") {
		return nil, fmt.Errorf("%s: %w: captcha", op, ErrBlocked)
	}

	whole := strings.TrimSpace(doc.Find("span.a-price-whole").First().Text())
	p, ok := utils.ParsePrice(strings.TrimSuffix(whole, "."))
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPrice)
	}

	return &Result{Source: SourceAmazon, Price: p, URL: u}, nil
}

var poundPrice = regexp.MustCompile(`£\s?([\d,]+(?:\.\d{1,2})?)`)

type CeX struct {
	BaseURL string
	f       *fetcher
}

func NewCeX(opts Options) *CeX {
	return &CeX{BaseURL: "https://uk.webuy.com", f: newFetcher(opts)}
}

func (s *CeX) Source() Source { return SourceCeX }

// Scrape returns the first pound amount, looking at price elements before
// falling back to the whole page.
func (s *CeX) Scrape(ctx context.Context, q Query) (*Result, error) {
	const op = "scrapers.cex.Scrape"

	u := s.BaseURL + "/search?stext=" + url.QueryEscape(q.Text())

	doc, _, err := s.f.document(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	texts := []string{}
	doc.Find(".product-main-price, .price, [class*='price']").Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, sel.Text())
	})
	texts = append(texts, doc.Find("body").Text())

	for _, t := range texts {
		m := poundPrice.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if p, ok := utils.ParsePrice(m[1]); ok {
			return &Result{Source: SourceCeX, Price: p, URL: u}, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, ErrNoPrice)
}
