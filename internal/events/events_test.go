package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)
	msg, err := newMessage(Event{Type: MatchConfirmed, AccountID: 42, OccurredAt: at, Payload: map[string]any{"matchId": 7}})
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "match.confirmed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "match.confirmed", decoded["type"])
	assert.Equal(t, float64(42), decoded["bankAccountId"])

	_, err = newMessage(Event{Type: "bad", Payload: make(chan int)})
	assert.Error(t, err)
}

func TestNewPicksPublisher(t *testing.T) {
	assert.IsType(t, LogPublisher{}, New(nil, "topic"))

	p := New([]string{"localhost:9092"}, "bankrec.events")
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, "bankrec.events", kp.writer.Topic)
	assert.NoError(t, kp.Close())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	Emit(ctx, &r, Event{Type: MatchConfirmed, AccountID: 1})
	Emit(ctx, &r, Event{Type: DiscrepancyOpened, AccountID: 1})
	Emit(ctx, nil, Event{Type: DiscrepancyOpened})

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(DiscrepancyOpened), 1)
}

type failing struct{}

func (failing) Publish(context.Context, Event) error { return errors.New("broker down") }
func (failing) Close() error                         { return nil }

func TestEmitSwallowsFailure(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), failing{}, Event{Type: MatchConfirmed})
	})
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), Event{Type: MatchConfirmed}))
}

type deadlineRecorder struct{ deadline bool }

func (d *deadlineRecorder) Publish(ctx context.Context, _ Event) error {
	_, d.deadline = ctx.Deadline()
	return nil
}
func (d *deadlineRecorder) Close() error { return nil }

type stalled struct{}

func (stalled) Publish(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}
func (stalled) Close() error { return nil }

func TestEmitBoundsPublish(t *testing.T) {
	p := &deadlineRecorder{}
	Emit(context.Background(), p, Event{Type: MatchConfirmed})
	assert.True(t, p.deadline)

	prev := PublishTimeout
	PublishTimeout = 20 * time.Millisecond
	t.Cleanup(func() { PublishTimeout = prev })

	start := time.Now()
	Emit(context.Background(), stalled{}, Event{Type: MatchConfirmed})
	assert.Less(t, time.Since(start), time.Second)
}
