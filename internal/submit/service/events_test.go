package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"codedrill/internal/common/mq"
	"codedrill/internal/task/model"
)

type fakeProducer struct {
	topic   string
	message *mq.Message
	err     error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, message *mq.Message) error {
	p.topic = topic
	p.message = message
	return p.err
}

func (p *fakeProducer) Ping(context.Context) error { return nil }

func (p *fakeProducer) Close() error { return nil }

func TestMQEventPublisher(t *testing.T) {
	producer := &fakeProducer{}
	publisher := NewMQEventPublisher(producer, "codedrill.submission.graded")
	event := GradedEvent{
		SubmissionID: "sub-1",
		TaskID:       "w1",
		Kind:         model.KindWrite,
		Passed:       true,
		Attempt:      2,
		GradedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := publisher.PublishGraded(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if producer.topic != "codedrill.submission.graded" {
		t.Fatalf("unexpected topic %q", producer.topic)
	}
	if producer.message.ID != "sub-1" || producer.message.Headers["task-id"] != "w1" || producer.message.Headers["kind"] != "write" {
		t.Fatalf("unexpected message %+v", producer.message)
	}
	var decoded GradedEvent
	if err := json.Unmarshal(producer.message.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.SubmissionID != event.SubmissionID || decoded.Attempt != 2 || !decoded.Passed || !decoded.GradedAt.Equal(event.GradedAt) {
		t.Fatalf("expected %+v, got %+v", event, decoded)
	}
}

func TestMQEventPublisherErrors(t *testing.T) {
	if err := NewMQEventPublisher(&fakeProducer{}, "").PublishGraded(context.Background(), GradedEvent{}); err == nil {
		t.Fatalf("expected error for empty topic")
	}
	if err := NewMQEventPublisher(nil, "t").PublishGraded(context.Background(), GradedEvent{}); err == nil {
		t.Fatalf("expected error for nil producer")
	}
	brokerErr := errors.New("broker down")
	err := NewMQEventPublisher(&fakeProducer{err: brokerErr}, "t").PublishGraded(context.Background(), GradedEvent{SubmissionID: "x"})
	if !errors.Is(err, brokerErr) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
