package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/ports"
)

const profileCollection = "profiles"

// IdentityRepository persists user profiles. It is the durable side of the
// Identity Store contract: read-one-by-key, create-if-absent tolerating the
// unique-constraint race, and update-by-key.
type IdentityRepository struct {
	coll *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{coll: db.Collection(profileCollection)}
}

type profileDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	DisplayName string    `bson:"display_name"`
	Role        string    `bson:"role"`
	IsActive    bool      `bson:"is_active"`
	LastSeenAt  time.Time `bson:"last_seen_at,omitempty"`
	IsOnline    bool      `bson:"is_online"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (r *IdentityRepository) FindByKey(ctx context.Context, id string) (*domain.Identity, error) {
	var doc profileDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return docToIdentity(doc), nil
}

// CreateIfAbsent inserts the profile. A duplicate-key error means another
// resolver won the creation race; the pre-existing row is read back and
// returned as success.
func (r *IdentityRepository) CreateIfAbsent(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	now := time.Now().UTC()
	doc := profileDoc{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        string(identity.Role),
		IsActive:    identity.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByKey(ctx, identity.ID)
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return r.FindByKey(ctx, identity.ID)
}

func (r *IdentityRepository) UpdateByKey(ctx context.Context, id string, upd ports.IdentityUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.Role != nil {
		set["role"] = string(*upd.Role)
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// PromoteRole performs the buyer-to-seller promotion write on the normal
// authorized path.
func (r *IdentityRepository) PromoteRole(ctx context.Context, id string, role domain.Role) error {
	return r.UpdateByKey(ctx, id, ports.IdentityUpdate{Role: &role})
}

func docToIdentity(doc profileDoc) *domain.Identity {
	return &domain.Identity{
		ID:          doc.ID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Role:        domain.Role(doc.Role),
		IsActive:    doc.IsActive,
		LastSeenAt:  doc.LastSeenAt,
		IsOnline:    doc.IsOnline,
	}
}
