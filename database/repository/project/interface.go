package projectRepo

import (
	"context"
	"errors"

	"harambee/database"
	"harambee/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrProjectNotFound = errors.New("project not found")

type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	// AddRaised increments the raised total once per settlement reference.
	AddRaised(ctx context.Context, id string, amount int64, settlementRef string) error
}

type mongoProjectRepo struct {
	coll *mongo.Collection
}

// NewMongoProjectRepo returns a new ProjectRepository instance using MongoDB.
func NewMongoProjectRepo() ProjectRepository {
	return &mongoProjectRepo{
		coll: database.DB().Collection("projects"),
	}
}
