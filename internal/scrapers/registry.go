package scrapers

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps a price source to its scraper.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[Source]Scraper
}

// NewRegistry registers the four marketplace scrapers with shared options.
func NewRegistry(opts Options) *Registry {
	r := &Registry{scrapers: make(map[Source]Scraper)}
	r.Register(NewEBay(opts))
	r.Register(NewAmazon(opts))
	r.Register(NewCeX(opts))
	r.Register(NewPriceCharting(opts))
	return r
}

func (r *Registry) Register(s Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Source()] = s
}

func (r *Registry) Get(src Source) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scrapers[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	return s, nil
}

func (r *Registry) Scrape(ctx context.Context, src Source, q Query) (*Result, error) {
	s, err := r.Get(src)
	if err != nil {
		return nil, err
	}
	return s.Scrape(ctx, q)
}
