package feed

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes event deliveries to a fixed set of workers using
// consistent hashing on the topic, guaranteeing per-topic delivery ordering.
// Cross-topic ordering is deliberately not guaranteed.
type Dispatcher struct {
	workers []chan func()
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan func(), numWorkers),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan func(), channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, ch := range d.workers {
		go d.runWorker(ctx, ch)
	}
}

// Enqueue schedules a delivery on the worker responsible for its topic.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(topic string, deliver func()) {
	d.workers[d.shardIndex(topic)] <- deliver
}

// shardIndex maps a topic deterministically to a worker index.
func (d *Dispatcher) shardIndex(topic string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, ch <-chan func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case deliver, ok := <-ch:
			if !ok {
				return
			}
			deliver()
		}
	}
}
