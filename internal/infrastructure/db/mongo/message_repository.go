package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const messageCollection = "messages"

// MessageRepository exposes the authoritative unread count the aggregator
// re-queries on every messages event and on polling fallback.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(messageCollection)}
}

func (r *MessageRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{
		"recipient_id": recipientID,
		"read":         false,
	})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
