package contributionRepo

import (
	"context"

	"harambee/database"
	"harambee/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type ContributionRepository interface {
	// Create stores a settled contribution. It reports false when the receipt was already recorded.
	Create(ctx context.Context, contribution models.Contribution) (bool, error)
	GetByProjectID(ctx context.Context, projectID string) ([]models.Contribution, error)
}

type mongoContributionRepo struct {
	coll *mongo.Collection
}

// NewMongoContributionRepo returns a new ContributionRepository instance using MongoDB.
func NewMongoContributionRepo() ContributionRepository {
	repo := &mongoContributionRepo{
		coll: database.DB().Collection("contributions"),
	}
	if err := repo.ensureIndexes(context.Background()); err != nil {
		database.LogIndexError("contributions", err)
	}
	return repo
}
