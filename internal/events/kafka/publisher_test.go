package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonesBR/go-bank-ledger/internal/events"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	calls    int
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEncodesEvent(t *testing.T) {
	writer := &fakeWriter{}
	p := newPublisher(writer, "transaction_posted", nil)

	err := p.Publish(context.Background(), "corr-1", events.TransactionPosted{ReceiptId: "tx-9", Amount: "12.00"})
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "corr-1", string(writer.messages[0].Key))

	var decoded events.TransactionPosted
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, "tx-9", decoded.ReceiptId)
	assert.Equal(t, "12.00", decoded.Amount)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublishOpensCircuitAfterFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	p := newPublisher(writer, "transaction_posted", nil)

	for i := 0; i < 3; i++ {
		assert.Error(t, p.Publish(context.Background(), "k", events.TransactionPosted{}))
	}

	err := p.Publish(context.Background(), "k", events.TransactionPosted{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, writer.calls, "an open circuit must not reach the broker")
}
