// Package notify publishes run reports to NATS.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/omop2owl/pipeline"
)

// Subjects.
const (
	DefaultSubjectPrefix = "omop2owl.run"
	SubjectCompleted     = "completed"
	SubjectFailed        = "failed"
)

// HeaderRunID carries the run ID of a published report.
const HeaderRunID = "Omop2owl-Run-Id"

// Publisher publishes reports on a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *slog.Logger
}

// Connect dials url and returns a publisher owning the connection.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("omop2owl"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := NewPublisher(conn, prefix, logger)
	p.owned = true
	return p, nil
}

// NewPublisher wraps an existing connection. An empty prefix uses
// DefaultSubjectPrefix.
func NewPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject a report is published on.
func (p *Publisher) Subject(r *pipeline.Report) string {
	if r.Error != "" {
		return p.prefix + "." + SubjectFailed
	}
	return p.prefix + "." + SubjectCompleted
}

// Publish sends the report as JSON and waits until the server has
// processed it.
func (p *Publisher) Publish(ctx context.Context, r *pipeline.Report) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.Subject(r))
	msg.Header.Set(HeaderRunID, r.RunID)
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	p.logger.Info("Published run report", "subject", msg.Subject, "run_id", r.RunID)
	return nil
}

// Close drains and closes the connection if the publisher owns it.
func (p *Publisher) Close() {
	if !p.owned {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Debug("Drain NATS connection", "error", err)
	}
	p.conn.Close()
}
