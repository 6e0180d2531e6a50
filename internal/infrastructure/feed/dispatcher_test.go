package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDispatcherPreservesPerTopicOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(4, zerolog.Nop())
	d.Start(ctx)

	const n = 100
	var mu sync.Mutex
	got := make([]int, 0, n)
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		d.Enqueue("messages", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		if got[i] != i {
			t.Fatalf("delivery %d out of order: got %d", i, got[i])
		}
	}
}

func TestDispatcherShardsTopicsDeterministically(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	for _, topic := range []string{"messages", "seller_applications", "presence"} {
		first := d.shardIndex(topic)
		for i := 0; i < 10; i++ {
			if got := d.shardIndex(topic); got != first {
				t.Fatalf("topic %q moved shards: %d vs %d", topic, first, got)
			}
		}
	}
}

func TestDispatcherRunsTopicsConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(8, zerolog.Nop())
	d.Start(ctx)

	// Find two topics landing on different shards so one can't starve the
	// other.
	topicA := "messages"
	topicB := ""
	for _, candidate := range []string{"presence", "seller_applications", "orders", "listings"} {
		if d.shardIndex(candidate) != d.shardIndex(topicA) {
			topicB = candidate
			break
		}
	}
	if topicB == "" {
		t.Skip("no shard-distinct topic pair found")
	}

	release := make(chan struct{})
	delivered := make(chan struct{})

	d.Enqueue(topicA, func() { <-release })
	d.Enqueue(topicB, func() { close(delivered) })

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second shard blocked behind the first")
	}
	close(release)
}

func TestDispatcherDefaultsWorkerCount(t *testing.T) {
	d := NewDispatcher(0, zerolog.Nop())
	if got := len(d.workers); got != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, got)
	}
}
