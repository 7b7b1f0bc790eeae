package models

import "time"

// FeePayment records one mandatory fee settlement.
type FeePayment struct {
	Term               string    `bson:"term" json:"term"`
	Amount             int64     `bson:"amount" json:"amount"`
	MpesaReceiptNumber string    `bson:"mpesaReceiptNumber" json:"mpesaReceiptNumber"`
	PaidAt             time.Time `bson:"paidAt" json:"paidAt"`
}

// Member is a registered platform member.
type Member struct {
	ID                string       `bson:"id" json:"id"`
	MMID              string       `bson:"mmid" json:"mmid"`
	FullName          string       `bson:"fullName" json:"fullName"`
	Email             string       `bson:"email" json:"email"`
	PhoneNumber       string       `bson:"phoneNumber" json:"phoneNumber"`
	WalletBalance     int64        `bson:"walletBalance" json:"walletBalance"`
	WalletReceipts    []string     `bson:"walletReceipts,omitempty" json:"-"`
	MandatoryPayments []FeePayment `bson:"mandatoryPayments,omitempty" json:"mandatoryPayments,omitempty"`
	CreatedAt         time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// HasPaidTerm reports whether the mandatory fee for term is settled.
func (m *Member) HasPaidTerm(term string) bool {
	for _, p := range m.MandatoryPayments {
		if p.Term == term {
			return true
		}
	}
	return false
}

// MandatoryStatus gates access to member-only dashboard features.
type MandatoryStatus struct {
	Term   string `json:"term"`
	Amount int64  `json:"amount"`
	Paid   bool   `json:"paid"`
}
