package ports

import "context"

// MessageStore exposes the one read the aggregator needs: the authoritative
// unread count. Counts are always re-queried, never patched incrementally,
// so missed events cannot cause drift.
type MessageStore interface {
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}
