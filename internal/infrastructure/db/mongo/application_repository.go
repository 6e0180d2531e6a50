package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusmarket/session-engine/internal/core/domain"
)

const applicationCollection = "seller_applications"

// ApplicationRepository reads externally owned seller applications. The
// engine observes them; the review workflow writes them.
type ApplicationRepository struct {
	coll *mongo.Collection
}

func NewApplicationRepository(db *mongo.Database) *ApplicationRepository {
	return &ApplicationRepository{coll: db.Collection(applicationCollection)}
}

// FindByApplicant returns the applicant's most recent application.
func (r *ApplicationRepository) FindByApplicant(ctx context.Context, applicantID string) (*domain.SellerApplication, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var app domain.SellerApplication
	if err := r.coll.FindOne(ctx, bson.M{"applicant_id": applicantID}, opts).Decode(&app); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}
