package models

// ReconcilePayload is queued when tracking stops before the gateway resolved a charge.
type ReconcilePayload struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	Reason            string `json:"reason"`
}
