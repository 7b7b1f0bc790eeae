package contributionRepo

import (
	"context"
	"time"

	"harambee/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoContributionRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "checkoutRequestId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

// Create inserts a new contribution keyed by its checkout request id.
func (r *mongoContributionRepo) Create(ctx context.Context, contribution models.Contribution) (bool, error) {
	if contribution.ID == "" {
		contribution.ID = uuid.New().String()
	}
	contribution.CreatedAt = time.Now()

	_, err := r.coll.InsertOne(ctx, contribution)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetByProjectID fetches all contributions for a project, newest first.
func (r *mongoContributionRepo) GetByProjectID(ctx context.Context, projectID string) ([]models.Contribution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"projectId": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var contributions []models.Contribution
	if err := cursor.All(ctx, &contributions); err != nil {
		return nil, err
	}
	return contributions, nil
}
