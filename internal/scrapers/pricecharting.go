package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"game_catalogue/utils"

	"github.com/PuerkitoBio/goquery"
)

type PriceCharting struct {
	BaseURL string
	f       *fetcher
}

func NewPriceCharting(opts Options) *PriceCharting {
	return &PriceCharting{BaseURL: "https://www.pricecharting.com", f: newFetcher(opts)}
}

func (s *PriceCharting) Source() Source { return SourcePriceCharting }

// Scrape searches for the game, follows the first hit to its product page
// (in the requested region when there is one) and reads the loose, complete
// and new prices.
func (s *PriceCharting) Scrape(ctx context.Context, q Query) (*Result, error) {
	const op = "scrapers.pricecharting.Scrape"

	searchURL := s.BaseURL + "/search-products?type=prices&q=" + url.QueryEscape(q.Text())

	doc, pageURL, err := s.f.document(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// a single match redirects straight to the product page
	if doc.Find("#product_name").Length() == 0 {
		href, ok := doc.Find("#games_table td.title a").First().Attr("href")
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrNoPrice)
		}
		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ref, err := url.Parse(href)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pageURL = ApplyRegion(base.ResolveReference(ref).String(), q.Region)

		if doc, pageURL, err = s.f.document(ctx, pageURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if regional := ApplyRegion(pageURL, q.Region); regional != pageURL {
		if doc, pageURL, err = s.f.document(ctx, regional); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	res := &Result{
		Source: SourcePriceCharting,
		Loose:  pagePrice(doc, "#used_price .price"),
		CIB:    pagePrice(doc, "#complete_price .price"),
		New:    pagePrice(doc, "#new_price .price"),
		URL:    pageURL,
	}

	best := BestPrice(res, true)
	if best == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPrice)
	}
	res.Price = *best

	return res, nil
}

func pagePrice(doc *goquery.Document, selector string) *float64 {
	p, ok := utils.ParsePrice(doc.Find(selector).First().Text())
	if !ok {
		return nil
	}
	return ptr(p)
}

// BestPrice picks a representative PriceCharting price. Boxed copies prefer
// complete-in-box, then loose, then new; otherwise loose comes first.
func BestPrice(r *Result, preferBoxed bool) *float64 {
	if r == nil {
		return nil
	}
	order := []*float64{r.Loose, r.CIB, r.New}
	if preferBoxed {
		order = []*float64{r.CIB, r.Loose, r.New}
	}
	for _, p := range order {
		if p != nil {
			return p
		}
	}
	return nil
}

// RegionSegment maps a catalogue region to PriceCharting's URL prefix. US
// and unknown regions have none.
func RegionSegment(region string) string {
	switch strings.ToLower(strings.TrimSpace(region)) {
	case "pal", "eu", "europe", "uk":
		return "pal"
	case "jp", "japan", "ntsc-j":
		return "japan"
	}
	return ""
}

// ApplyRegion rewrites a product URL into the regional variant. Applying the
// same region twice is a no-op.
func ApplyRegion(raw, region string) string {
	seg := RegionSegment(region)
	if seg == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	path := u.Path
	for _, known := range []string{"/pal/", "/japan/"} {
		if strings.HasPrefix(path, known) {
			path = "/" + strings.TrimPrefix(path, known)
		}
	}
	u.Path = "/" + seg + path

	return u.String()
}
