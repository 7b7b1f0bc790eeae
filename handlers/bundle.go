package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Member payment endpoints
	StartContribution    gin.HandlerFunc
	StartMandatoryFee    gin.HandlerFunc
	StartWalletRecharge  gin.HandlerFunc
	StartTicket          gin.HandlerFunc
	GetPaymentSession    gin.HandlerFunc
	CancelPaymentSession gin.HandlerFunc

	// Member account endpoints
	MandatoryStatus gin.HandlerFunc
	Wallet          gin.HandlerFunc

	// Settled payment records
	GetTicket            gin.HandlerFunc
	ProjectContributions gin.HandlerFunc

	// Recharge link owner endpoints
	CreateRechargeLink gin.HandlerFunc
	ListRechargeLinks  gin.HandlerFunc
	CancelRechargeLink gin.HandlerFunc

	// Public recharge link endpoints
	PublicRechargeView    gin.HandlerFunc
	PublicRechargePay     gin.HandlerFunc
	PublicRechargeSession gin.HandlerFunc
	PublicRechargeCancel  gin.HandlerFunc

	// Gateway
	MpesaCallback gin.HandlerFunc

	Health gin.HandlerFunc
}

// NewHandlerBundle wires the handler structs into route-ready funcs.
func NewHandlerBundle(p *PaymentHandler, r *RechargeHandler, m *MemberHandler, l *LedgerHandler, cb *CallbackHandler) *HandlerBundle {
	return &HandlerBundle{
		StartContribution:    p.StartContributionHandler(),
		StartMandatoryFee:    p.StartMandatoryFeeHandler(),
		StartWalletRecharge:  p.StartWalletRechargeHandler(),
		StartTicket:          p.StartTicketHandler(),
		GetPaymentSession:    p.GetSessionHandler,
		CancelPaymentSession: p.CancelSessionHandler,

		MandatoryStatus: m.MandatoryStatusHandler,
		Wallet:          m.WalletHandler,

		GetTicket:            l.GetTicketHandler,
		ProjectContributions: l.ProjectContributionsHandler,

		CreateRechargeLink: r.CreateLinkHandler,
		ListRechargeLinks:  r.ListLinksHandler,
		CancelRechargeLink: r.CancelLinkHandler,

		PublicRechargeView:    r.PublicViewHandler,
		PublicRechargePay:     r.PayHandler(),
		PublicRechargeSession: r.SessionHandler,
		PublicRechargeCancel:  r.CancelSessionHandler,

		MpesaCallback: cb.MpesaCallbackHandler,

		Health: HealthHandler,
	}
}
