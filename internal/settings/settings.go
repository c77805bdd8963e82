// Package settings keeps the runtime settings the UI edits: price source,
// API credentials and auto scraping rules. They live in a flat JSON file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"game_catalogue/internal/scrapers"

	"github.com/spf13/viper"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

const (
	FrequencyDay   = "day"
	FrequencyWeek  = "week"
	FrequencyMonth = "month"
)

type Settings struct {
	PriceSource            string  `json:"price_source" mapstructure:"price_source"`
	DefaultRegion          string  `json:"default_region" mapstructure:"default_region"`
	IGDBClientID           string  `json:"igdb_client_id" mapstructure:"igdb_client_id"`
	IGDBClientSecret       string  `json:"igdb_client_secret" mapstructure:"igdb_client_secret"`
	SteamGridDBAPIKey      string  `json:"steamgriddb_api_key" mapstructure:"steamgriddb_api_key"`
	DiscordWebhookURL      string  `json:"discord_webhook_url" mapstructure:"discord_webhook_url"`
	AutoScrapingEnabled    bool    `json:"auto_scraping_enabled" mapstructure:"auto_scraping_enabled"`
	AutoScrapingFrequency  string  `json:"auto_scraping_frequency" mapstructure:"auto_scraping_frequency"`
	PriceDropThreshold     float64 `json:"price_drop_threshold" mapstructure:"price_drop_threshold"`
	PriceIncreaseThreshold float64 `json:"price_increase_threshold" mapstructure:"price_increase_threshold"`
	AlertPriceThreshold    float64 `json:"alert_price_threshold" mapstructure:"alert_price_threshold"`
	AlertValueThreshold    float64 `json:"alert_value_threshold" mapstructure:"alert_value_threshold"`
	LastAutoScrape         string  `json:"last_auto_scrape" mapstructure:"last_auto_scrape"`
}

type kind int

const (
	kindString kind = iota
	kindBool
	kindNumber
)

var keys = map[string]kind{
	"price_source":             kindString,
	"default_region":           kindString,
	"igdb_client_id":           kindString,
	"igdb_client_secret":       kindString,
	"steamgriddb_api_key":      kindString,
	"discord_webhook_url":      kindString,
	"auto_scraping_enabled":    kindBool,
	"auto_scraping_frequency":  kindString,
	"price_drop_threshold":     kindNumber,
	"price_increase_threshold": kindNumber,
	"alert_price_threshold":    kindNumber,
	"alert_value_threshold":    kindNumber,
	"last_auto_scrape":         kindString,
}

var secretKeys = []string{"igdb_client_secret", "steamgriddb_api_key", "discord_webhook_url"}

func defaults(v *viper.Viper) {
	v.SetDefault("price_source", string(scrapers.SourcePriceCharting))
	v.SetDefault("default_region", "PAL")
	v.SetDefault("auto_scraping_enabled", false)
	v.SetDefault("auto_scraping_frequency", FrequencyWeek)
	v.SetDefault("price_drop_threshold", 10.0)
	v.SetDefault("price_increase_threshold", 20.0)
	v.SetDefault("alert_price_threshold", 0.0)
	v.SetDefault("alert_value_threshold", 100.0)
}

type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Open loads path if it exists. A missing file is not an error; it is
// created on the first Update.
func Open(path string) (*Store, error) {
	const op = "settings.Open"

	s := &Store{path: path}
	v := s.newViper()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.v = v
	return s, nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Settings
	// decoding into a flat struct of scalars only fails on type mismatch,
	// which Update rules out
	_ = s.v.Unmarshal(&out)
	return out
}

// Update validates every key of patch before applying any of them, then
// persists the whole settings file.
func (s *Store) Update(patch map[string]any) (Settings, error) {
	const op = "settings.Update"

	normalized := make(map[string]any, len(patch))
	for k, val := range patch {
		key := strings.ToLower(k)
		kd, ok := keys[key]
		if !ok {
			return Settings{}, fmt.Errorf("%s: %w: %s", op, ErrUnknownKey, k)
		}
		v, err := validate(key, kd, val)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", op, err)
		}
		normalized[key] = v
	}

	s.mu.Lock()
	// the patch goes to a copy that replaces the live settings only once it
	// is on disk
	next := s.newViper()
	if err := next.MergeConfigMap(s.v.AllSettings()); err != nil {
		s.mu.Unlock()
		return Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range normalized {
		next.Set(k, v)
	}
	err := s.write(next)
	if err == nil {
		s.v = next
	}
	s.mu.Unlock()
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.Get(), nil
}

// MarkAutoScrape records when the last automatic scrape finished.
func (s *Store) MarkAutoScrape(t time.Time) error {
	_, err := s.Update(map[string]any{"last_auto_scrape": t.UTC().Format(time.RFC3339)})
	return err
}

func (s *Store) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	defaults(v)
	return v
}

func (s *Store) write(v *viper.Viper) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(s.path)
}

func validate(key string, kd kind, val any) (any, error) {
	switch kd {
	case kindBool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, key)
		}
		return b, nil
	case kindNumber:
		var f float64
		switch n := val.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, key)
		}
		if f < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, key)
		}
		return f, nil
	}

	str, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
	}
	str = strings.TrimSpace(str)

	switch key {
	case "price_source":
		src, err := scrapers.ParseSource(str)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
		}
		return string(src), nil
	case "auto_scraping_frequency":
		switch str {
		case FrequencyDay, FrequencyWeek, FrequencyMonth:
		default:
			return nil, fmt.Errorf("%w: frequency must be day, week or month", ErrInvalidValue)
		}
	case "last_auto_scrape":
		if str != "" {
			if _, err := time.Parse(time.RFC3339, str); err != nil {
				return nil, fmt.Errorf("%w: last_auto_scrape: %s", ErrInvalidValue, err)
			}
		}
	}
	return str, nil
}

// Redacted masks secrets for display, keeping the last four characters.
func (s Settings) Redacted() map[string]any {
	out := map[string]any{
		"price_source":             s.PriceSource,
		"default_region":           s.DefaultRegion,
		"igdb_client_id":           s.IGDBClientID,
		"igdb_client_secret":       s.IGDBClientSecret,
		"steamgriddb_api_key":      s.SteamGridDBAPIKey,
		"discord_webhook_url":      s.DiscordWebhookURL,
		"auto_scraping_enabled":    s.AutoScrapingEnabled,
		"auto_scraping_frequency":  s.AutoScrapingFrequency,
		"price_drop_threshold":     s.PriceDropThreshold,
		"price_increase_threshold": s.PriceIncreaseThreshold,
		"alert_price_threshold":    s.AlertPriceThreshold,
		"alert_value_threshold":    s.AlertValueThreshold,
		"last_auto_scrape":         s.LastAutoScrape,
	}
	for _, k := range secretKeys {
		out[k] = mask(out[k].(string))
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// Keys lists the accepted setting names.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
