package kafka

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ Writer = (*MockWriter)(nil)

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("escribe clave, payload y cabecera", func(t *testing.T) {
		w := new(MockWriter)
		p := NewPublisherWithWriter(w, "ledger-events", nil)
		payload := []byte(`{"movement_id":"m1"}`)

		w.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafkago.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			m := msgs[0]
			return string(m.Key) == "p1" &&
				string(m.Value) == string(payload) &&
				len(m.Headers) == 1 &&
				string(m.Headers[0].Value) == "movement.applied"
		})).Return(nil).Once()

		require.NoError(t, p.Publish(ctx, "p1", "movement.applied", payload))
		w.AssertExpectations(t)
	})

	t.Run("propaga el error del writer", func(t *testing.T) {
		w := new(MockWriter)
		p := NewPublisherWithWriter(w, "ledger-events", nil)
		writeErr := errors.New("kafka write error")

		w.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := p.Publish(ctx, "p1", "movement.applied", []byte("{}"))
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
		w.AssertExpectations(t)
	})
}

func TestPublisher_Close(t *testing.T) {
	w := new(MockWriter)
	p := NewPublisherWithWriter(w, "ledger-events", nil)
	closeErr := errors.New("close error")

	w.On("Close").Return(closeErr).Once()

	err := p.Close()
	assert.ErrorIs(t, err, closeErr)
	w.AssertExpectations(t)
}
