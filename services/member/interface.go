package member

import (
	"context"
	"errors"
	"time"

	memberRepo "harambee/database/repository/member"
	"harambee/models"
)

var ErrFeeAlreadyPaid = errors.New("mandatory fee already paid for this term")

type MemberService interface {
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
	GetMemberByMMID(ctx context.Context, mmid string) (*models.Member, error)

	// Mandatory fee gate
	MandatoryStatus(ctx context.Context, memberID string) (*models.MandatoryStatus, error)
	MarkMandatoryPaid(ctx context.Context, memberID, term string, amount int64, receipt string) (bool, error)
	FeeAmount() int64
	CurrentTerm() string

	// Wallet
	CreditWallet(ctx context.Context, memberID string, amount int64, receipt string) (int64, error)
	Balance(ctx context.Context, memberID string) (int64, error)
}

// FeeSchedule is the published mandatory fee for the current term.
type FeeSchedule struct {
	Term   string
	Amount int64
}

// DefaultMemberService is the production implementation.
type DefaultMemberService struct {
	Repo memberRepo.MemberRepository
	Fee  FeeSchedule
	now  func() time.Time
}

func NewDefaultMemberService(repo memberRepo.MemberRepository, fee FeeSchedule) (*DefaultMemberService, error) {
	if repo == nil {
		return nil, errors.New("member service initialization error: repository is nil")
	}
	if fee.Amount <= 0 || fee.Term == "" {
		return nil, errors.New("member service initialization error: mandatory fee term and amount are required")
	}
	return &DefaultMemberService{Repo: repo, Fee: fee, now: time.Now}, nil
}
