package handlers

import (
	"net/http"

	"harambee/models"
	"harambee/services/payment"
	"harambee/services/recharge"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RechargeHandler struct {
	Service  recharge.RechargeService
	Pay      Starter[payment.RechargeLinkInput]
	Sessions SessionEngine
}

func NewRechargeHandler(svc recharge.RechargeService, pay Starter[payment.RechargeLinkInput], sessions SessionEngine) *RechargeHandler {
	return &RechargeHandler{Service: svc, Pay: pay, Sessions: sessions}
}

// --- Owner endpoints ---

func (h *RechargeHandler) CreateLinkHandler(c *gin.Context) {
	var req models.CreateRechargeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	rt, err := h.Service.Create(c.Request.Context(), memberID(c), req)
	if err != nil {
		respondPaymentError(c, err, "Failed to create recharge link.")
		return
	}
	c.JSON(http.StatusCreated, rt)
}

func (h *RechargeHandler) ListLinksHandler(c *gin.Context) {
	tokens, err := h.Service.ListForOwner(c.Request.Context(), memberID(c))
	if err != nil {
		getLogger(c).Error("Failed to list recharge links", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to list recharge links", "")
		return
	}
	if tokens == nil {
		tokens = []models.RechargeToken{}
	}
	c.JSON(http.StatusOK, gin.H{"links": tokens})
}

func (h *RechargeHandler) CancelLinkHandler(c *gin.Context) {
	if err := h.Service.Cancel(c.Request.Context(), memberID(c), c.Param("token")); err != nil {
		respondPaymentError(c, err, "Failed to cancel recharge link.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recharge link cancelled"})
}

// --- Public endpoints ---

// PublicViewHandler serves link metadata. Expired links are still shown with is_valid=false.
func (h *RechargeHandler) PublicViewHandler(c *gin.Context) {
	view, err := h.Service.PublicView(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondPaymentError(c, err, "Failed to load recharge link.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// PayHandler starts a push scoped to the link. Invalid links answer 410.
func (h *RechargeHandler) PayHandler() gin.HandlerFunc {
	return startFlow(h.Pay, func(c *gin.Context, in *payment.RechargeLinkInput) {
		in.Token = c.Param("token")
	})
}

// SessionHandler lets an anonymous payer poll a session started through the same link.
func (h *RechargeHandler) SessionHandler(c *gin.Context) {
	view, err := h.Sessions.View(c.Request.Context(), c.Param("id"), payment.ForRechargeToken(c.Param("token")))
	if err != nil {
		respondPaymentError(c, err, "Failed to load payment session.")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *RechargeHandler) CancelSessionHandler(c *gin.Context) {
	session, err := h.Sessions.Cancel(c.Request.Context(), c.Param("id"), payment.ForRechargeToken(c.Param("token")), "")
	if err != nil {
		respondPaymentError(c, err, "Failed to cancel payment session.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}
