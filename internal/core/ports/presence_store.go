package ports

import (
	"context"
	"time"
)

// PresenceStore records the online/last-seen liveness signal.
type PresenceStore interface {
	MarkOnline(ctx context.Context, id string, at time.Time) error
	MarkOffline(ctx context.Context, id string, at time.Time) error
	CountOnline(ctx context.Context) (int64, error)
}
