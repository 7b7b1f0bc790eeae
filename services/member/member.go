package member

import (
	"context"
	"fmt"

	"harambee/models"
)

func (s *DefaultMemberService) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	m, err := s.Repo.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("GetMember: %w", err)
	}
	return m, nil
}

func (s *DefaultMemberService) GetMemberByMMID(ctx context.Context, mmid string) (*models.Member, error) {
	m, err := s.Repo.GetByMMID(ctx, mmid)
	if err != nil {
		return nil, fmt.Errorf("GetMemberByMMID: %w", err)
	}
	return m, nil
}

func (s *DefaultMemberService) FeeAmount() int64 { return s.Fee.Amount }

func (s *DefaultMemberService) CurrentTerm() string { return s.Fee.Term }

// --- Mandatory fee ---

func (s *DefaultMemberService) MandatoryStatus(ctx context.Context, memberID string) (*models.MandatoryStatus, error) {
	m, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return &models.MandatoryStatus{
		Term:   s.Fee.Term,
		Amount: s.Fee.Amount,
		Paid:   m.HasPaidTerm(s.Fee.Term),
	}, nil
}

// MarkMandatoryPaid records the fee once per term. It reports false when the term was already settled.
func (s *DefaultMemberService) MarkMandatoryPaid(ctx context.Context, memberID, term string, amount int64, receipt string) (bool, error) {
	applied, err := s.Repo.AddMandatoryPayment(ctx, memberID, models.FeePayment{
		Term:               term,
		Amount:             amount,
		MpesaReceiptNumber: receipt,
		PaidAt:             s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("MarkMandatoryPaid: member %s term %s: %w", memberID, term, err)
	}
	return applied, nil
}

// --- Wallet ---

// CreditWallet is idempotent on receipt and always returns the current balance.
func (s *DefaultMemberService) CreditWallet(ctx context.Context, memberID string, amount int64, receipt string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("CreditWallet: invalid amount %d", amount)
	}
	balance, _, err := s.Repo.CreditWallet(ctx, memberID, amount, receipt)
	if err != nil {
		return 0, fmt.Errorf("CreditWallet: member %s: %w", memberID, err)
	}
	return balance, nil
}

func (s *DefaultMemberService) Balance(ctx context.Context, memberID string) (int64, error) {
	m, err := s.GetMember(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return m.WalletBalance, nil
}
