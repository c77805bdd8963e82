package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"game_catalogue/internal/models"
)

const (
	colorDrop     = 0x2ecc71
	colorIncrease = 0xe74c3c
	colorNew      = 0x3498db
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Message struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Notifier posts price alerts to a Discord webhook. The URL is read on every
// send so a change in the settings file takes effect immediately; an empty
// URL turns notifications off.
type Notifier struct {
	webhook func() string
	http    *http.Client
	now     func() time.Time
}

func New(webhook func() string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhook: webhook,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (n *Notifier) Enabled() bool {
	return strings.TrimSpace(n.webhook()) != ""
}

func (n *Notifier) Send(ctx context.Context, msg Message) error {
	const op = "clients.discord.Send"

	url := strings.TrimSpace(n.webhook())
	if url == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	// 204 on success
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s: webhook returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return nil
}

// PriceAlert formats a price change as a single embed.
func (n *Notifier) PriceAlert(ctx context.Context, c models.PriceChange) error {
	return n.Send(ctx, Message{
		Username: "Game Catalogue",
		Embeds:   []Embed{priceEmbed(c, n.now())},
	})
}

func priceEmbed(c models.PriceChange, at time.Time) Embed {
	e := Embed{
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []Field{
			{Name: "New price", Value: fmt.Sprintf("£%.2f", c.NewPrice), Inline: true},
			{Name: "Source", Value: c.Source, Inline: true},
		},
	}

	switch {
	case c.OldPrice <= 0:
		e.Title = "New price: " + c.Title
		e.Color = colorNew
		return e
	case c.Change < 0:
		e.Title = "Price drop: " + c.Title
		e.Color = colorDrop
	default:
		e.Title = "Price increase: " + c.Title
		e.Color = colorIncrease
	}

	e.Description = fmt.Sprintf("£%.2f → £%.2f (%+.1f%%)", c.OldPrice, c.NewPrice, c.Percent)
	e.Fields = append(e.Fields, Field{Name: "Previous price", Value: fmt.Sprintf("£%.2f", c.OldPrice), Inline: true})

	return e
}
