package models

import "time"

// Notification is a realtime event published to a member or recharge link channel.
type Notification struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

const (
	NotificationPaymentCompleted = "payment_completed"
	NotificationPaymentFailed    = "payment_failed"
	NotificationPaymentLate      = "payment_settled_after_cancel"
	NotificationDashboardUnlock  = "dashboard_unlocked"
	NotificationRechargeProgress = "recharge_progress"
)
