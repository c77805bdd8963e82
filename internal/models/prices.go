package models

import "time"

type PriceHistory struct {
	ID           int64   `json:"id" gorm:"primaryKey"`
	GameID       int64   `json:"game_id"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	DateRecorded string  `json:"date_recorded"`
	PriceSource  string  `json:"price_source"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}

type PriceSummary struct {
	GameID       int64          `json:"game_id"`
	Entries      []PriceHistory `json:"price_history"`
	TotalEntries int            `json:"total_entries"`
	Latest       *float64       `json:"latest_price"`
	Lowest       *float64       `json:"lowest_price"`
	Highest      *float64       `json:"highest_price"`
}

type AlertSettings struct {
	ID                     int64    `json:"-" gorm:"primaryKey"`
	GameID                 int64    `json:"game_id"`
	Enabled                bool     `json:"enabled"`
	PriceDropThreshold     *float64 `json:"price_drop_threshold"`
	PriceIncreaseThreshold *float64 `json:"price_increase_threshold"`
	AlertPriceThreshold    *float64 `json:"alert_price_threshold"`
	AlertValueThreshold    *float64 `json:"alert_value_threshold"`
	PriceSource            string   `json:"price_source"`
	PriceRegion            string   `json:"price_region"`
}

func (AlertSettings) TableName() string {
	return "game_alert_settings"
}

// Thresholds are the resolved values used when judging a price change.
type Thresholds struct {
	DropPercent     float64 `json:"price_drop_threshold"`
	IncreasePercent float64 `json:"price_increase_threshold"`
	MinPrice        float64 `json:"alert_price_threshold"`
	MinChange       float64 `json:"alert_value_threshold"`
}

type PriceChange struct {
	GameID   int64   `json:"game_id"`
	Title    string  `json:"title"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
	Change   float64 `json:"change"`
	Percent  float64 `json:"percent"`
	Source   string  `json:"source"`
}

type AutoScrapeReport struct {
	Checked   int           `json:"checked"`
	Updated   int           `json:"updated"`
	Alerts    int           `json:"alerts"`
	Failed    int           `json:"failed"`
	Changes   []PriceChange `json:"changes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  string        `json:"duration"`
}
