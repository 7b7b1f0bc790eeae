package memberRepo

import (
	"context"
	"errors"

	"harambee/models"
)

var ErrMemberNotFound = errors.New("member not found")

// MemberRepository defines methods for member data access.
type MemberRepository interface {
	// GetByID retrieves a member by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Member, error)
	// GetByMMID retrieves a member by the public membership reference.
	GetByMMID(ctx context.Context, mmid string) (*models.Member, error)
	// AddMandatoryPayment records a fee payment once per term. It reports false if the term was already paid.
	AddMandatoryPayment(ctx context.Context, memberID string, payment models.FeePayment) (bool, error)
	// CreditWallet adds amount to the wallet once per receipt and returns the resulting balance.
	CreditWallet(ctx context.Context, memberID string, amount int64, receipt string) (int64, bool, error)
}
