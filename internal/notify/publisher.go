// Package notify publishes build completion events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// Publisher announces finished builds.
type Publisher interface {
	Publish(ctx context.Context, r *report.Report) error
	Close() error
}

// Noop discards every event (default when notify.nats_url is not configured).
type Noop struct{}

func (Noop) Publish(context.Context, *report.Report) error { return nil }
func (Noop) Close() error                                  { return nil }

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

const publishTimeout = 5 * time.Second

// NATSPublisher publishes BuildEvents on <subject>.<outcome>.
type NATSPublisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("deckbuilder"),
		nats.Timeout(publishTimeout),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", url).Build()
	}
	logger.Info("NATS notifier connected", slog.String("url", url), slog.String("subject", subject))
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject, logger: logger}
}

// Publish sends the build event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, r *report.Report) error {
	data, err := json.Marshal(NewBuildEvent(r))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "failed to marshal build event").Build()
	}

	subject := Subject(p.subject, r.Outcome)
	if err := p.conn.Publish(subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "failed to publish build event").
			WithContext("subject", subject).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "failed to flush build event").
			WithContext("subject", subject).Build()
	}

	p.logger.DebugContext(ctx, "Published build event",
		logfields.BuildID(r.BuildID), logfields.Outcome(string(r.Outcome)), slog.String("subject", subject))
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ conn      = (*nats.Conn)(nil)
)
