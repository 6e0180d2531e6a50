// Package feed implements the change-notification channel over Redis
// pub/sub. Backend writers publish row changes to feed:<topic> channels; the
// engine subscribes with per-topic ordering via the sharded dispatcher.
// Delivery is at-least-once; consumers must handle duplicates idempotently.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

const channelPrefix = "feed:"

// Feed is a ChangeFeed backed by Redis pub/sub.
type Feed struct {
	client     *redis.Client
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewFeed wraps the given client. The dispatcher must already be started.
func NewFeed(client *redis.Client, dispatcher *Dispatcher, log zerolog.Logger) *Feed {
	return &Feed{client: client, dispatcher: dispatcher, log: log}
}

// Subscribe opens a pub/sub subscription for the topic and delivers matching
// events to fn through the per-topic dispatcher shard.
func (f *Feed) Subscribe(ctx context.Context, topic string, filter ports.EventFilter, fn func(domain.ChangeEvent)) (ports.Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelPrefix+topic)

	// Force the SUBSCRIBE round trip so a broken connection fails here, not
	// silently in the reader.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &subscription{topic: topic, pubsub: pubsub, filter: filter, fn: fn}
	go f.read(sub)
	return sub, nil
}

// Publish emits a change event on the topic's channel. Backend writers use
// this after their row mutations.
func (f *Feed) Publish(ctx context.Context, topic string, ev domain.ChangeEvent) error {
	ev.Topic = topic
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := f.client.Publish(ctx, channelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (f *Feed) read(sub *subscription) {
	for msg := range sub.pubsub.Channel() {
		var ev domain.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			f.log.Warn().Err(err).Str("topic", sub.topic).Msg("malformed feed payload dropped")
			continue
		}
		ev.Topic = sub.topic
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		f.dispatcher.Enqueue(sub.topic, func() { sub.deliver(ev) })
	}
}

// subscription is a cancellable handle to one topic subscription. The mutex
// closes the use-after-dispose race: deliver holds it while the callback
// runs, and Close takes it before marking the handle closed, so no callback
// can fire once Close returns.
type subscription struct {
	topic  string
	pubsub *redis.PubSub
	filter ports.EventFilter
	fn     func(domain.ChangeEvent)

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) deliver(ev domain.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(ev)
}

// Close is idempotent and safe to call concurrently with deliveries.
func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.pubsub.Close()
}
