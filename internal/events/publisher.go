// Package events publishes publish-lifecycle events to NATS for downstream
// consumers (dashboards, evaluation tooling). The publisher is optional:
// when disabled, the server runs without it and nothing else changes.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pagepub/internal/config"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
)

// PublishEvent describes one completed (or failed) publish.
type PublishEvent struct {
	RequestID string    `json:"request_id"`
	Task      string    `json:"task"`
	Round     int       `json:"round"`
	Status    string    `json:"status"`
	RepoURL   string    `json:"repo_url,omitempty"`
	PagesURL  string    `json:"pages_url,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends publish-lifecycle events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to NATS. The config must be enabled; callers decide
// whether a connection failure is fatal (it usually is not).
func NewPublisher(cfg config.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("event publisher connected",
		logfields.URL(cfg.NATSURL),
		slog.String("subject", cfg.Subject))

	return &Publisher{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// Publish emits one event. Failures are logged and swallowed: lifecycle
// events are observability, never part of the publish contract.
func (p *Publisher) Publish(event PublishEvent) {
	if p == nil {
		return
	}
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("event not serializable", logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("event publish failed",
			logfields.Task(event.Task), logfields.Error(err))
		return
	}
	p.logger.Debug("published lifecycle event",
		logfields.Task(event.Task), logfields.Status(event.Status))
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", logfields.Error(err))
	}
}
