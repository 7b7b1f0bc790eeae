package ledger

import (
	"context"
	"errors"
	"fmt"

	projectRepo "harambee/database/repository/project"
	ticketRepo "harambee/database/repository/ticket"
	"harambee/models"
)

// TicketForMember returns a ticket only to the member it was issued to. Anyone else gets
// ErrTicketNotFound so other members cannot learn which numbers exist.
func (s *DefaultLedgerService) TicketForMember(ctx context.Context, memberID, number string) (*models.Ticket, error) {
	ticket, err := s.Tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ticketRepo.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("TicketForMember: %w", err)
	}

	member, err := s.Members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("TicketForMember: %w", err)
	}
	if ticket.MMID != member.MMID {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

func (s *DefaultLedgerService) ProjectContributions(ctx context.Context, projectID string) (*models.ProjectContributions, error) {
	project, err := s.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, projectRepo.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("ProjectContributions: %w", err)
	}

	contributions, err := s.Contributions.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ProjectContributions: %w", err)
	}
	if contributions == nil {
		contributions = []models.Contribution{}
	}

	var total int64
	for _, c := range contributions {
		total += c.Amount
	}
	return &models.ProjectContributions{
		Project:       *project,
		Contributions: contributions,
		Total:         total,
	}, nil
}
