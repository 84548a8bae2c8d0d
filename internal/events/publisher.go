package events

import (
	"context"
	"time"

	"sentinel/internal/adapters/kafka"
	"sentinel/internal/analysis"
	"sentinel/internal/domain/intel"
)

// Kafka topics for pipeline lifecycle events
const (
	TopicRunCompleted = "sentinel.analysis.run.completed"
	TopicAlertRaised  = "sentinel.analysis.alert.raised"
)

// RunCompletedEvent is published after each persisted analysis run
type RunCompletedEvent struct {
	RunID                   string    `json:"run_id"`
	RunDate                 time.Time `json:"run_date"`
	Status                  string    `json:"status"`
	FindingsCount           int       `json:"findings_count"`
	OpportunitiesIdentified int       `json:"opportunities_identified"`
	ExecutionTimeSeconds    float64   `json:"execution_time_seconds"`
	OccurredAt              time.Time `json:"occurred_at"`
}

// AlertRaisedEvent is published for each alert produced by a run
type AlertRaisedEvent struct {
	Title      string    `json:"title"`
	Impact     string    `json:"impact"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits pipeline events to Kafka
type Publisher struct {
	producer *kafka.Producer
}

// Ensure Publisher implements analysis.EventSink
var _ analysis.EventSink = (*Publisher)(nil)

// NewPublisher creates an event publisher on top of a Kafka producer
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// RunCompleted publishes a run-completed event keyed by run date
func (p *Publisher) RunCompleted(ctx context.Context, run *intel.AnalysisRun) error {
	event := RunCompletedEvent{
		RunID:                   run.ID.String(),
		RunDate:                 run.RunDate,
		Status:                  string(run.Status),
		FindingsCount:           run.FindingsCount,
		OpportunitiesIdentified: run.OpportunitiesIdentified,
		ExecutionTimeSeconds:    run.ExecutionTimeSeconds,
		OccurredAt:              time.Now().UTC(),
	}
	return p.producer.Publish(ctx, TopicRunCompleted, run.RunDate.Format("2006-01-02"), event)
}

// AlertRaised publishes an alert event keyed by source
func (p *Publisher) AlertRaised(ctx context.Context, alert intel.Alert) error {
	event := AlertRaisedEvent{
		Title:      alert.Title,
		Impact:     string(alert.Impact),
		Source:     alert.Source,
		OccurredAt: time.Now().UTC(),
	}
	return p.producer.Publish(ctx, TopicAlertRaised, alert.Source, event)
}
