package ports

import (
	"context"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

// EventFilter decides whether a delivered event is relevant to the
// subscriber. A nil filter accepts everything.
type EventFilter func(domain.ChangeEvent) bool

// Subscription is a cancellable handle to one topic subscription. Close is
// idempotent; once it returns, the callback will not fire again.
type Subscription interface {
	Topic() string
	Close() error
}

// ChangeFeed delivers change-notification events for a topic. Delivery is
// at-least-once and ordered within a topic; cross-topic ordering is not
// guaranteed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, topic string, filter EventFilter, fn func(domain.ChangeEvent)) (Subscription, error)
}
