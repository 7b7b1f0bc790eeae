package models

import (
	"errors"
	"fmt"
	"time"
)

// PaymentStatus is the state of a single STK push charge.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Gateway result codes with special meaning. Everything else non-zero is a failure.
const (
	ResultCodeSuccess         = 0
	ResultCodeCancelledByUser = 1032
)

const (
	defaultFailureMessage = "Payment failed. Please try again."
	defaultCancelMessage  = "Payment was cancelled."
)

var ErrSessionTerminal = errors.New("payment session already resolved")

var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted: {},
	PaymentFailed:    {},
	PaymentCancelled: {},
}

// IsTerminal reports whether no further transition is possible.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// CanTransitionTo checks the transition table.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResolveResultCode maps a gateway result code to a session status.
func ResolveResultCode(code int) PaymentStatus {
	switch code {
	case ResultCodeSuccess:
		return PaymentCompleted
	case ResultCodeCancelledByUser:
		return PaymentCancelled
	default:
		return PaymentFailed
	}
}

// PurposeKind tags what a payment is for.
type PurposeKind string

const (
	PurposeProject        PurposeKind = "project"
	PurposeMandatoryFee   PurposeKind = "mandatory_fee"
	PurposeWalletRecharge PurposeKind = "wallet_recharge"
	PurposeTicket         PurposeKind = "ticket"
	PurposeRechargeLink   PurposeKind = "recharge_link"
)

// AccountRechargeLabel is the purpose label sent to the gateway for wallet top ups.
const AccountRechargeLabel = "account_recharge"

func (k PurposeKind) Valid() bool {
	switch k {
	case PurposeProject, PurposeMandatoryFee, PurposeWalletRecharge, PurposeTicket, PurposeRechargeLink:
		return true
	}
	return false
}

// PurposeContext is the tagged payload deciding the completion handler.
type PurposeContext struct {
	Kind         PurposeKind `json:"kind" bson:"kind"`
	MemberID     string      `json:"memberId,omitempty" bson:"memberId,omitempty"`
	ProjectID    string      `json:"projectId,omitempty" bson:"projectId,omitempty"`
	ProjectTitle string      `json:"projectTitle,omitempty" bson:"projectTitle,omitempty"`
	MMID         string      `json:"mmid,omitempty" bson:"mmid,omitempty"`
	BuyerName    string      `json:"buyerName,omitempty" bson:"buyerName,omitempty"`
	Token        string      `json:"token,omitempty" bson:"token,omitempty"`
	DonorName    string      `json:"donorName,omitempty" bson:"donorName,omitempty"`
	Term         string      `json:"term,omitempty" bson:"term,omitempty"`
	Label        string      `json:"label,omitempty" bson:"label,omitempty"`
}

// IntentKey identifies "the same purchase" so a second initiate can be refused while one is pending.
func (p PurposeContext) IntentKey(phone string) string {
	switch p.Kind {
	case PurposeMandatoryFee:
		return fmt.Sprintf("%s:%s:%s", p.Kind, p.MemberID, p.Term)
	case PurposeWalletRecharge:
		return fmt.Sprintf("%s:%s", p.Kind, p.MemberID)
	case PurposeProject:
		return fmt.Sprintf("%s:%s:%s", p.Kind, p.ProjectID, p.MemberID)
	case PurposeTicket:
		return fmt.Sprintf("%s:%s:%s", p.Kind, p.MMID, phone)
	case PurposeRechargeLink:
		return fmt.Sprintf("%s:%s:%s", p.Kind, p.Token, phone)
	default:
		return fmt.Sprintf("%s:%s", p.Kind, phone)
	}
}

// PaymentSession is one in-flight mobile money charge, keyed by the gateway checkout request id.
type PaymentSession struct {
	ID                 string            `json:"id"`
	CheckoutRequestID  string            `json:"checkoutRequestId"`
	MerchantRequestID  string            `json:"merchantRequestId,omitempty"`
	OwnerID            string            `json:"ownerId,omitempty"`
	Amount             int64             `json:"amount"`
	PhoneNumber        string            `json:"phoneNumber"`
	Purpose            PurposeContext    `json:"purpose"`
	Status             PaymentStatus     `json:"status"`
	InitiatedAt        time.Time         `json:"initiatedAt"`
	ResolvedAt         *time.Time        `json:"resolvedAt,omitempty"`
	MpesaReceiptNumber string            `json:"mpesaReceiptNumber,omitempty"`
	ErrorMessage       string            `json:"errorMessage,omitempty"`
	ResultCode         *int              `json:"resultCode,omitempty"`
	Outcome            map[string]string `json:"outcome,omitempty"`
	// SettledAt is set once the purpose completion handler has been applied.
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// NewPendingSession creates the session right after the gateway acknowledged initiation.
func NewPendingSession(handle SessionHandle, ownerID string, purpose PurposeContext, now time.Time) *PaymentSession {
	return &PaymentSession{
		ID:                handle.CheckoutRequestID,
		CheckoutRequestID: handle.CheckoutRequestID,
		MerchantRequestID: handle.MerchantRequestID,
		OwnerID:           ownerID,
		Amount:            handle.Amount,
		PhoneNumber:       handle.PhoneNumber,
		Purpose:           purpose,
		Status:            PaymentPending,
		InitiatedAt:       now,
	}
}

func (s *PaymentSession) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Elapsed is measured up to resolution for terminal sessions.
func (s *PaymentSession) Elapsed(now time.Time) time.Duration {
	if s.ResolvedAt != nil {
		return s.ResolvedAt.Sub(s.InitiatedAt)
	}
	return now.Sub(s.InitiatedAt)
}

// NeedsSettlement reports whether a completed charge has not reached domain state yet.
func (s *PaymentSession) NeedsSettlement() bool {
	return s.Status == PaymentCompleted && s.SettledAt == nil
}

// Apply moves the session to the status carried by a gateway snapshot.
// A pending snapshot is a no-op. Terminal sessions never change.
func (s *PaymentSession) Apply(snapshot PaymentSession, now time.Time) (bool, error) {
	if s.IsTerminal() {
		return false, ErrSessionTerminal
	}
	if snapshot.Status == PaymentPending || snapshot.Status == "" {
		return false, nil
	}
	if !s.Status.CanTransitionTo(snapshot.Status) {
		return false, fmt.Errorf("invalid transition %s -> %s", s.Status, snapshot.Status)
	}

	s.Status = snapshot.Status
	s.ResultCode = snapshot.ResultCode
	s.ResolvedAt = &now
	if snapshot.MerchantRequestID != "" && s.MerchantRequestID == "" {
		s.MerchantRequestID = snapshot.MerchantRequestID
	}

	switch snapshot.Status {
	case PaymentCompleted:
		s.MpesaReceiptNumber = snapshot.MpesaReceiptNumber
		s.ErrorMessage = ""
	case PaymentFailed:
		s.MpesaReceiptNumber = ""
		s.ErrorMessage = firstNonEmpty(snapshot.ErrorMessage, defaultFailureMessage)
	case PaymentCancelled:
		s.MpesaReceiptNumber = ""
		s.ErrorMessage = firstNonEmpty(snapshot.ErrorMessage, defaultCancelMessage)
	}
	return true, nil
}

// Cancel marks the session cancelled on behalf of the payer. It only stops tracking;
// the charge may still settle on the gateway side.
func (s *PaymentSession) Cancel(reason string, now time.Time) error {
	_, err := s.Apply(PaymentSession{
		Status:       PaymentCancelled,
		ErrorMessage: firstNonEmpty(reason, "Cancelled by user."),
	}, now)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
