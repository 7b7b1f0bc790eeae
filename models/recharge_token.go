package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RechargeTokenStatus string

const (
	RechargeTokenActive    RechargeTokenStatus = "active"
	RechargeTokenCompleted RechargeTokenStatus = "completed"
	RechargeTokenCancelled RechargeTokenStatus = "cancelled"
)

// RechargeContribution is one payer's attempt against a recharge link.
type RechargeContribution struct {
	CheckoutRequestID  string        `bson:"checkoutRequestId" json:"-"`
	DonorName          string        `bson:"donorName" json:"donorName"`
	Amount             int64         `bson:"amount" json:"amount"`
	Status             PaymentStatus `bson:"status" json:"status"`
	MpesaReceiptNumber string        `bson:"mpesaReceiptNumber,omitempty" json:"-"`
	CreatedAt          time.Time     `bson:"createdAt" json:"createdAt"`
}

// RechargeToken is a shareable, expiring payment request any third party can fulfil.
type RechargeToken struct {
	ID              string                 `bson:"id" json:"id"`
	Token           string                 `bson:"token" json:"token"`
	OwnerID         string                 `bson:"ownerId" json:"ownerId"`
	RecipientLabel  string                 `bson:"recipientLabel" json:"recipientLabel"`
	Reason          string                 `bson:"reason" json:"reason"`
	TargetAmount    int64                  `bson:"targetAmount" json:"targetAmount"`
	CollectedAmount int64                  `bson:"collectedAmount" json:"collectedAmount"`
	Status          RechargeTokenStatus    `bson:"status" json:"status"`
	ExpiresAt       time.Time              `bson:"expiresAt" json:"expiresAt"`
	Contributions   []RechargeContribution `bson:"contributions" json:"contributions"`
	CreatedAt       time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// IsValid reports whether the token still accepts contributions. Expired tokens remain displayable.
func (t *RechargeToken) IsValid(now time.Time) bool {
	return t.Status == RechargeTokenActive && now.Before(t.ExpiresAt)
}

func (t *RechargeToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RechargeToken) HasTarget() bool {
	return t.TargetAmount > 0
}

// ProgressPercentage is min(100, collected/target*100). The second value is false when no target is set.
func (t *RechargeToken) ProgressPercentage() (float64, bool) {
	if !t.HasTarget() {
		return 0, false
	}
	pct := decimal.NewFromInt(t.CollectedAmount).
		Div(decimal.NewFromInt(t.TargetAmount)).
		Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	f, _ := pct.Round(2).Float64()
	return f, true
}

// RechargeTokenView is the public representation served at /recharge/{token}.
type RechargeTokenView struct {
	Token              string                 `json:"token"`
	RecipientLabel     string                 `json:"recipient_label"`
	Reason             string                 `json:"reason"`
	TargetAmount       int64                  `json:"target_amount,omitempty"`
	CollectedAmount    int64                  `json:"collected_amount"`
	ProgressPercentage *float64               `json:"progress_percentage,omitempty"`
	Status             RechargeTokenStatus    `json:"status"`
	ExpiresAt          time.Time              `json:"expires_at"`
	IsValid            bool                   `json:"is_valid"`
	Contributions      []RechargeContribution `json:"contributions"`
}

func (t *RechargeToken) PublicView(now time.Time) RechargeTokenView {
	view := RechargeTokenView{
		Token:           t.Token,
		RecipientLabel:  t.RecipientLabel,
		Reason:          t.Reason,
		TargetAmount:    t.TargetAmount,
		CollectedAmount: t.CollectedAmount,
		Status:          t.Status,
		ExpiresAt:       t.ExpiresAt,
		IsValid:         t.IsValid(now),
		Contributions:   t.Contributions,
	}
	if pct, ok := t.ProgressPercentage(); ok {
		view.ProgressPercentage = &pct
	}
	if view.Contributions == nil {
		view.Contributions = []RechargeContribution{}
	}
	return view
}

// CreateRechargeTokenRequest is the owner's input when sharing a new link.
type CreateRechargeTokenRequest struct {
	RecipientLabel string `json:"recipientLabel" binding:"required"`
	Reason         string `json:"reason"`
	TargetAmount   int64  `json:"targetAmount"`
	ExpiresInHours int    `json:"expiresInHours"`
}
