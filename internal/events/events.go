// Package events publishes task lifecycle events to Kafka. Publishing is
// best-effort: a broker outage must never fail a user turn.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bronhq/bron/internal/store"
)

// Event kinds.
const (
	KindTaskCreated  = "task_created"
	KindStateChanged = "state_changed"
	KindTaskDone     = "task_done"
	KindTaskFailed   = "task_failed"
)

// TaskEvent is the wire format on the topic. Keyed by task ID so one
// task's events stay ordered within a partition.
type TaskEvent struct {
	Kind      string    `json:"kind"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	FromState string    `json:"from_state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// writer is the kafka surface we need; *kafka.Writer satisfies it.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends task events to a topic.
type Publisher struct {
	w   writer
	log *slog.Logger
}

// NewPublisher connects a publisher to the given brokers and topic.
func NewPublisher(brokers, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // fire and forget; turns must not wait on the broker
	}
	return &Publisher{w: w, log: logger}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// TaskCreated implements orchestrator.EventSink.
func (p *Publisher) TaskCreated(ctx context.Context, task *store.Task) {
	p.publish(ctx, TaskEvent{
		Kind: KindTaskCreated, TaskID: task.ID, AgentID: task.AgentID,
		Title: task.Title, State: string(task.State),
	})
}

// TaskStateChanged implements orchestrator.EventSink. Terminal states get
// their own kind on top of the transition event.
func (p *Publisher) TaskStateChanged(ctx context.Context, task *store.Task, from, to store.TaskState) {
	p.publish(ctx, TaskEvent{
		Kind: KindStateChanged, TaskID: task.ID, AgentID: task.AgentID,
		Title: task.Title, State: string(to), FromState: string(from),
	})
	switch to {
	case store.TaskDone:
		p.publish(ctx, TaskEvent{
			Kind: KindTaskDone, TaskID: task.ID, AgentID: task.AgentID,
			Title: task.Title, State: string(to),
		})
	case store.TaskFailed:
		p.publish(ctx, TaskEvent{
			Kind: KindTaskFailed, TaskID: task.ID, AgentID: task.AgentID,
			Title: task.Title, State: string(to),
		})
	}
}

func (p *Publisher) publish(ctx context.Context, ev TaskEvent) {
	ev.Timestamp = time.Now().UTC()
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal task event", "kind", ev.Kind, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.TaskID),
		Value: value,
		Time:  ev.Timestamp,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("failed to publish task event", "kind", ev.Kind, "task_id", ev.TaskID, "error", err)
	}
}
