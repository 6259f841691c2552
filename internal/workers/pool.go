package workers

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// Handler processes one raw message value.
type Handler func(context.Context, []byte) error

// MessageReader is the slice of *kafka.Reader the consume loop needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Run starts workerCount group readers on topic and blocks until ctx is done.
func Run(ctx context.Context, brokers []string, topic, group string, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := kafka.NewReader(brokers, topic, group)
			defer reader.Close()
			Consume(ctx, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

// Consume reads until ctx is cancelled. Read and handler errors are logged and
// the loop keeps going.
func Consume(ctx context.Context, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("worker read error: %v", err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, msg.Value); err != nil {
				logging.Errorf("worker handler error topic=%s offset=%d: %v", msg.Topic, msg.Offset, err)
			}
		}
	}
}

// Stager receives decoded envelopes; stage.Receiver implements it.
type Stager[T any] interface {
	Publish(msg T)
}

// StagerFunc adapts a function, e.g. a dispatcher's SetData, to Stager.
type StagerFunc[T any] func(msg T)

func (f StagerFunc[T]) Publish(msg T) {
	f(msg)
}

// IntoStage decodes every message with decode and stages the result. An
// envelope that fails to decode is dropped and the previous one stays staged.
func IntoStage[T any](decode func([]byte) (T, error), dst Stager[T]) Handler {
	return func(_ context.Context, value []byte) error {
		msg, err := decode(value)
		if err != nil {
			return err
		}
		dst.Publish(msg)
		return nil
	}
}
