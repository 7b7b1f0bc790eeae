package ticketRepo

import (
	"context"
	"errors"

	"harambee/database"
	"harambee/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrTicketNotFound = errors.New("ticket not found")

type TicketRepository interface {
	// Issue stores the ticket, or returns the ticket already issued for the same checkout request.
	Issue(ctx context.Context, ticket models.Ticket) (*models.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
}

type mongoTicketRepo struct {
	coll *mongo.Collection
}

// NewMongoTicketRepo returns a new TicketRepository instance using MongoDB.
func NewMongoTicketRepo() TicketRepository {
	repo := &mongoTicketRepo{
		coll: database.DB().Collection("tickets"),
	}
	if err := repo.ensureIndexes(context.Background()); err != nil {
		database.LogIndexError("tickets", err)
	}
	return repo
}
