package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codedrill/internal/common/mq"
	"codedrill/internal/task/model"
)

// GradedEvent announces a persisted submission to downstream consumers such as the review scheduler.
type GradedEvent struct {
	SubmissionID     string     `json:"submission_id"`
	TaskID           string     `json:"task_id"`
	Kind             model.Kind `json:"kind"`
	Passed           bool       `json:"passed"`
	Score            float64    `json:"score"`
	Attempt          int        `json:"attempt"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	GradedAt         time.Time  `json:"graded_at"`
}

// EventPublisher delivers graded events.
type EventPublisher interface {
	PublishGraded(ctx context.Context, event GradedEvent) error
}

// MQEventPublisher publishes graded events to a message queue topic.
type MQEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQEventPublisher creates a publisher for topic.
func NewMQEventPublisher(producer mq.Producer, topic string) *MQEventPublisher {
	return &MQEventPublisher{producer: producer, topic: topic}
}

func (p *MQEventPublisher) PublishGraded(ctx context.Context, event GradedEvent) error {
	if p == nil || p.producer == nil {
		return errors.New("event publisher is nil")
	}
	if p.topic == "" {
		return errors.New("graded topic is empty")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal graded event failed: %w", err)
	}
	message := mq.NewMessage(event.SubmissionID, payload)
	message.SetHeader("task-id", event.TaskID)
	message.SetHeader("kind", string(event.Kind))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return fmt.Errorf("publish graded event failed: %w", err)
	}
	return nil
}
