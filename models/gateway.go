package models

import "time"

// InitiateRequest is what every purchase context hands to the gateway.
type InitiateRequest struct {
	Amount           int64
	PhoneNumber      string
	AccountReference string
	Description      string
	Purpose          PurposeContext
}

// SessionHandle is the gateway acknowledgement of an initiated push.
type SessionHandle struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	Amount            int64  `json:"amount"`
	PhoneNumber       string `json:"phoneNumber"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// GatewayResult is the final outcome pushed by the gateway callback.
type GatewayResult struct {
	CheckoutRequestID  string    `json:"checkoutRequestId"`
	MerchantRequestID  string    `json:"merchantRequestId"`
	ResultCode         int       `json:"resultCode"`
	ResultDesc         string    `json:"resultDesc"`
	MpesaReceiptNumber string    `json:"mpesaReceiptNumber,omitempty"`
	Amount             int64     `json:"amount,omitempty"`
	PhoneNumber        string    `json:"phoneNumber,omitempty"`
	ReceivedAt         time.Time `json:"receivedAt"`
}

// Snapshot converts a callback result into a session snapshot.
func (r GatewayResult) Snapshot() PaymentSession {
	code := r.ResultCode
	snap := PaymentSession{
		ID:                r.CheckoutRequestID,
		CheckoutRequestID: r.CheckoutRequestID,
		MerchantRequestID: r.MerchantRequestID,
		Status:            ResolveResultCode(code),
		ResultCode:        &code,
	}
	if snap.Status == PaymentCompleted {
		snap.MpesaReceiptNumber = r.MpesaReceiptNumber
	} else {
		snap.ErrorMessage = r.ResultDesc
	}
	return snap
}
