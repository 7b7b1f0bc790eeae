package ledger

import (
	"context"
	"errors"

	contributionRepo "harambee/database/repository/contribution"
	projectRepo "harambee/database/repository/project"
	ticketRepo "harambee/database/repository/ticket"
	"harambee/models"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrProjectNotFound = errors.New("project not found")
)

// MemberLookup resolves the caller's membership reference.
type MemberLookup interface {
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
}

// LedgerService serves what settled payments produced: issued tickets and project contributions.
type LedgerService interface {
	TicketForMember(ctx context.Context, memberID, number string) (*models.Ticket, error)
	ProjectContributions(ctx context.Context, projectID string) (*models.ProjectContributions, error)
}

type DefaultLedgerService struct {
	Tickets       ticketRepo.TicketRepository
	Contributions contributionRepo.ContributionRepository
	Projects      projectRepo.ProjectRepository
	Members       MemberLookup
}

func NewDefaultLedgerService(tickets ticketRepo.TicketRepository, contributions contributionRepo.ContributionRepository, projects projectRepo.ProjectRepository, members MemberLookup) (*DefaultLedgerService, error) {
	if tickets == nil || contributions == nil || projects == nil || members == nil {
		return nil, errors.New("ledger service initialization error: repositories and member lookup are required")
	}
	return &DefaultLedgerService{
		Tickets:       tickets,
		Contributions: contributions,
		Projects:      projects,
		Members:       members,
	}, nil
}
