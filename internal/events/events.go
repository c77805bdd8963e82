package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectPriceUpdated = "catalogue.price.updated"
	SubjectGameCreated  = "catalogue.game.created"
	SubjectGameDeleted  = "catalogue.game.deleted"
)

type Publisher interface {
	Publish(subject string, payload any) error
	Close()
}

type conn interface {
	Publish(subject string, data []byte) error
}

// NATS publishes JSON encoded events.
type NATS struct {
	conn  conn
	close func()
}

type Options struct {
	URL   string
	Token string
}

// Connect dials the broker. An empty URL yields a Noop publisher so the
// catalogue runs without NATS.
func Connect(opts Options, log *slog.Logger) (Publisher, error) {
	const op = "events.Connect"

	if opts.URL == "" {
		return Noop{}, nil
	}

	natsOpts := []nats.Option{
		nats.Name("game-catalogue"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
	}

	// if token provided
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("nats connected", slog.String("url", nc.ConnectedUrl()))

	return &NATS{conn: nc, close: nc.Close}, nil
}

func (n *NATS) Publish(subject string, payload any) error {
	const op = "events.NATS.Publish"

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}

type Noop struct{}

func (Noop) Publish(string, any) error { return nil }

func (Noop) Close() {}
