package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

const overrideCollection = "admin_overrides"

// overrideDocID names the single stored override record. There is exactly
// one operational-recovery secret per deployment.
const overrideDocID = "recovery"

// OverrideRepository is the server side of the override RPC surface: a
// stored bcrypt hash of the recovery secret, verified on every privileged
// call. Verification failures reject the call outright; there is no
// unprivileged fallback.
type OverrideRepository struct {
	db *mongo.Database
}

func NewOverrideRepository(db *mongo.Database) *OverrideRepository {
	return &OverrideRepository{db: db}
}

type overrideDoc struct {
	ID         string    `bson:"_id"`
	SecretHash string    `bson:"secret_hash"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// Verify checks the supplied secret against the stored hash. A missing
// record, a lookup failure, and a mismatch all reject.
func (r *OverrideRepository) Verify(ctx context.Context, secret string) error {
	if secret == "" {
		return domain.ErrOverrideRejected
	}

	var doc overrideDoc
	err := r.db.Collection(overrideCollection).
		FindOne(ctx, bson.M{"_id": overrideDocID}).
		Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return domain.ErrOverrideRejected
		}
		return fmt.Errorf("load override secret: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(doc.SecretHash), []byte(secret)) != nil {
		return domain.ErrOverrideRejected
	}
	return nil
}

// PromoteRole performs a privileged role write after re-verifying the
// secret.
func (r *OverrideRepository) PromoteRole(ctx context.Context, secret, id string, role domain.Role) error {
	if err := r.Verify(ctx, secret); err != nil {
		return err
	}
	return r.setProfileFields(ctx, id, bson.M{"role": string(role)})
}

// SetActive performs a privileged activation toggle after re-verifying the
// secret.
func (r *OverrideRepository) SetActive(ctx context.Context, secret, id string, active bool) error {
	if err := r.Verify(ctx, secret); err != nil {
		return err
	}
	return r.setProfileFields(ctx, id, bson.M{"is_active": active})
}

func (r *OverrideRepository) setProfileFields(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.db.Collection(profileCollection).
		UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("override profile write: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}
