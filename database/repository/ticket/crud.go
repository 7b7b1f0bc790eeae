package ticketRepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"harambee/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoTicketRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticketNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "checkoutRequestId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// NewTicketNumber builds a short human readable ticket number.
func NewTicketNumber() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TKT-" + strings.ToUpper(id[:8])
}

// Issue inserts the ticket once per checkout request id.
func (r *mongoTicketRepo) Issue(ctx context.Context, ticket models.Ticket) (*models.Ticket, error) {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	if ticket.TicketNumber == "" {
		ticket.TicketNumber = NewTicketNumber()
	}
	ticket.IssuedAt = time.Now()

	_, err := r.coll.InsertOne(ctx, ticket)
	if err == nil {
		return &ticket, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	var existing models.Ticket
	if err := r.coll.FindOne(ctx, bson.M{"checkoutRequestId": ticket.CheckoutRequestID}).Decode(&existing); err != nil {
		return nil, fmt.Errorf("failed to load issued ticket: %w", err)
	}
	return &existing, nil
}

// GetByNumber returns a ticket by its number.
func (r *mongoTicketRepo) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.coll.FindOne(ctx, bson.M{"ticketNumber": number}).Decode(&ticket); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}
