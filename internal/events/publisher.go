// Package events publishes smoke run results to NATS for downstream
// consumers (dashboards, notification bots).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/store"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Event types published on the configured subject.
const (
	TypeRunCompleted  = "run_completed"
	TypeExampleFailed = "example_failed"
)

// RunCompletedEvent is emitted once per smoke run.
type RunCompletedEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	ExitCode   int       `json:"exit_code"`
	FinishedAt time.Time `json:"finished_at"`
}

// ExampleFailedEvent is emitted for the first failing example of a run.
type ExampleFailedEvent struct {
	Type     string `json:"type"`
	RunID    string `json:"run_id"`
	Example  string `json:"example"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
}

// Publisher sends run events to NATS JetStream.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewPublisher connects to NATS using the events config.
func NewPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("events are disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS publisher initialized", slog.String("url", cfg.NATSURL), slog.String("subject", cfg.Subject))
	return &Publisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// PublishRunCompleted emits the run summary event.
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *store.RunRecord) error {
	return p.publish(ctx, RunCompletedEvent{
		Type:       TypeRunCompleted,
		RunID:      run.ID,
		Outcome:    run.Outcome,
		Total:      run.Total,
		Passed:     run.Passed,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		ExitCode:   run.ExitCode,
		FinishedAt: run.FinishedAt,
	})
}

// PublishExampleFailed emits the first-failure detail event.
func (p *Publisher) PublishExampleFailed(ctx context.Context, runID, example, status string, exitCode int, output string) error {
	const maxOutput = 8 * 1024
	if len(output) > maxOutput {
		output = output[:maxOutput]
	}
	return p.publish(ctx, ExampleFailedEvent{
		Type:     TypeExampleFailed,
		RunID:    runID,
		Example:  example,
		Status:   status,
		ExitCode: exitCode,
		Output:   output,
	})
}

func (p *Publisher) publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
