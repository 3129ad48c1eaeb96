// Package events publishes reconciliation facts to other systems after the
// change that produced them has committed. Publication is best effort: a
// failed publish is logged by the caller and never undoes the change.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/cleared-dev/bankrec/internal/logger"
)

// Event types.
const (
	MatchConfirmed     = "match.confirmed"
	AutoMatchCompleted = "automatch.completed"
	DiscrepancyOpened  = "discrepancy.opened"
	DiscrepancyChanged = "discrepancy.status_changed"
)

// Event is one published fact.
type Event struct {
	Type       string    `json:"type"`
	AccountID  int64     `json:"bankAccountId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct{}

// Publish logs e at info level.
func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logger.FromContext(ctx).Info("event", "type", e.Type, "accountID", e.AccountID, "payload", e.Payload)
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(t string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// PublishTimeout bounds one Emit. A broker that does not acknowledge in
// time costs the event, not the caller.
var PublishTimeout = 3 * time.Second

// Emit publishes e and logs a failure instead of returning it. Callers emit
// after releasing any account lock.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("publishing event failed", "type", e.Type, "accountID", e.AccountID, "error", err)
	}
}
