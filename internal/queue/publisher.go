package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/models"
)

// MessageWriter is the slice of *kafka.Writer the publishers need.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RecordPublisher writes opportunity batches as one JSON envelope per message.
// It satisfies stage.Publisher[[]models.Record].
type RecordPublisher struct {
	writer MessageWriter
	key    []byte
}

// NewRecordPublisher builds a publisher that keys every message with source,
// the name of the producing stage.
func NewRecordPublisher(writer MessageWriter, source string) *RecordPublisher {
	return &RecordPublisher{writer: writer, key: []byte(source)}
}

func (p *RecordPublisher) Publish(ctx context.Context, records []models.Record) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("record publisher not initialized")
	}
	payload, err := models.EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	msg := kafka.Message{
		Key:   p.key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(uuid.NewString())},
			{Key: "records", Value: []byte(fmt.Sprintf("%d", len(records)))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %d records: %w", len(records), err)
	}
	return nil
}

// PublishCandidates writes a candidate envelope. Upstream tooling and tests use
// it to feed the pipeline.
func PublishCandidates(ctx context.Context, writer MessageWriter, source string, candidates []models.Candidate) error {
	if writer == nil {
		return nil
	}
	payload, err := models.EncodeCandidates(candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(source), Value: payload})
}
