package models

import "time"

// Project is a fundraising project members contribute to.
type Project struct {
	ID           string `bson:"id" json:"id"`
	Title        string `bson:"title" json:"title"`
	TargetAmount int64  `bson:"targetAmount" json:"targetAmount"`
	RaisedAmount int64  `bson:"raisedAmount" json:"raisedAmount"`
	Active       bool   `bson:"active" json:"active"`
	// SettlementRefs lists the receipts already added to RaisedAmount.
	SettlementRefs []string  `bson:"settlementRefs,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// Contribution is a settled payment recorded against a project.
type Contribution struct {
	ID                 string    `bson:"id" json:"id"`
	ProjectID          string    `bson:"projectId" json:"projectId"`
	MemberID           string    `bson:"memberId,omitempty" json:"memberId,omitempty"`
	DonorName          string    `bson:"donorName" json:"donorName"`
	Amount             int64     `bson:"amount" json:"amount"`
	PhoneNumber        string    `bson:"phoneNumber" json:"-"`
	CheckoutRequestID  string    `bson:"checkoutRequestId" json:"checkoutRequestId"`
	MpesaReceiptNumber string    `bson:"mpesaReceiptNumber" json:"mpesaReceiptNumber"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
}

// ProjectContributions lists the settled contributions of one project.
type ProjectContributions struct {
	Project       Project        `json:"project"`
	Contributions []Contribution `json:"contributions"`
	Total         int64          `json:"total"`
}

// Ticket is issued to a buyer once the ticket payment settles.
type Ticket struct {
	ID                 string    `bson:"id" json:"id"`
	TicketNumber       string    `bson:"ticketNumber" json:"ticketNumber"`
	MMID               string    `bson:"mmid" json:"mmid"`
	BuyerName          string    `bson:"buyerName" json:"buyerName"`
	PhoneNumber        string    `bson:"phoneNumber" json:"-"`
	Amount             int64     `bson:"amount" json:"amount"`
	CheckoutRequestID  string    `bson:"checkoutRequestId" json:"checkoutRequestId"`
	MpesaReceiptNumber string    `bson:"mpesaReceiptNumber" json:"mpesaReceiptNumber"`
	IssuedAt           time.Time `bson:"issuedAt" json:"issuedAt"`
}
