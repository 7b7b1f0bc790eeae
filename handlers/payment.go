package handlers

import (
	"context"
	"net/http"

	"harambee/models"
	"harambee/services/payment"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Starter starts one purchase context. *payment.FlowController satisfies it.
type Starter[T any] interface {
	Start(ctx context.Context, ownerID string, input T) (*models.PaymentSession, error)
}

// SessionEngine reads and cancels tracked sessions. *payment.Engine satisfies it.
type SessionEngine interface {
	View(ctx context.Context, id string, access payment.Access) (*payment.SessionView, error)
	Cancel(ctx context.Context, id string, access payment.Access, reason string) (*models.PaymentSession, error)
}

type PaymentHandler struct {
	Contribution   Starter[payment.ContributionInput]
	MandatoryFee   Starter[payment.MandatoryFeeInput]
	WalletRecharge Starter[payment.WalletRechargeInput]
	Ticket         Starter[payment.TicketInput]
	Sessions       SessionEngine
}

func NewPaymentHandler(flows *payment.Flows, engine SessionEngine) *PaymentHandler {
	return &PaymentHandler{
		Contribution:   flows.Contribution,
		MandatoryFee:   flows.MandatoryFee,
		WalletRecharge: flows.WalletRecharge,
		Ticket:         flows.Ticket,
		Sessions:       engine,
	}
}

// startResponse is returned with 202 while the payer confirms the push on the handset.
type startResponse struct {
	Session         models.PaymentSession `json:"session"`
	CustomerMessage string                `json:"customerMessage"`
}

// startFlow binds T, starts the flow for the caller and answers 202 with the pending session.
func startFlow[T any](flow Starter[T], prepare func(c *gin.Context, in *T)) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := getLogger(c)

		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			logger.Debug("invalid payment request", zap.Error(err))
			utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		if prepare != nil {
			prepare(c, &in)
		}

		session, err := flow.Start(c.Request.Context(), memberID(c), in)
		if err != nil {
			respondPaymentError(c, err, payment.GenericInitiationMessage)
			return
		}
		c.JSON(http.StatusAccepted, startResponse{
			Session:         *session,
			CustomerMessage: "Check your phone and enter your M-Pesa PIN to complete the payment.",
		})
	}
}

func (h *PaymentHandler) StartContributionHandler() gin.HandlerFunc {
	return startFlow(h.Contribution, nil)
}

func (h *PaymentHandler) StartMandatoryFeeHandler() gin.HandlerFunc {
	return startFlow(h.MandatoryFee, nil)
}

func (h *PaymentHandler) StartWalletRechargeHandler() gin.HandlerFunc {
	return startFlow(h.WalletRecharge, nil)
}

func (h *PaymentHandler) StartTicketHandler() gin.HandlerFunc {
	return startFlow(h.Ticket, nil)
}

// GetSessionHandler is polled by the member app while a push is outstanding.
func (h *PaymentHandler) GetSessionHandler(c *gin.Context) {
	view, err := h.Sessions.View(c.Request.Context(), c.Param("id"), payment.OwnedBy(memberID(c)))
	if err != nil {
		respondPaymentError(c, err, "Failed to load payment session.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelSessionHandler stops tracking. A charge already approved on the handset is still settled later.
func (h *PaymentHandler) CancelSessionHandler(c *gin.Context) {
	session, err := h.Sessions.Cancel(c.Request.Context(), c.Param("id"), payment.OwnedBy(memberID(c)), "")
	if err != nil {
		respondPaymentError(c, err, "Failed to cancel payment session.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}
