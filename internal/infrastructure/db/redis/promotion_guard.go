package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardTTL = 24 * time.Hour

// PromotionGuard fences the role-promotion side effect with a SetNX key per
// application, so at-least-once event delivery performs exactly one durable
// write. Key format: promotion:<application_id>
type PromotionGuard struct {
	client *redis.Client
}

// NewPromotionGuard creates a PromotionGuard wrapping the given Redis client.
func NewPromotionGuard(client *redis.Client) *PromotionGuard {
	return &PromotionGuard{client: client}
}

// Acquire reports whether the caller won the right to promote for this
// application. Losers (duplicate deliveries) get false with no error.
func (g *PromotionGuard) Acquire(ctx context.Context, applicationID string) (bool, error) {
	won, err := g.client.SetNX(ctx, g.key(applicationID), "1", guardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("promotion guard: %w", err)
	}
	return won, nil
}

func (g *PromotionGuard) key(applicationID string) string {
	return fmt.Sprintf("promotion:%s", applicationID)
}
