package handlers

import (
	"errors"
	"net/http"

	"harambee/services/ledger"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	Service ledger.LedgerService
}

func NewLedgerHandler(svc ledger.LedgerService) *LedgerHandler {
	return &LedgerHandler{Service: svc}
}

// GetTicketHandler shows the ticket issued after a ticket purchase settled.
func (h *LedgerHandler) GetTicketHandler(c *gin.Context) {
	ticket, err := h.Service.TicketForMember(c.Request.Context(), memberID(c), c.Param("number"))
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *LedgerHandler) ProjectContributionsHandler(c *gin.Context) {
	list, err := h.Service.ProjectContributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *LedgerHandler) respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrTicketNotFound):
		utils.JSONError(c, http.StatusNotFound, "Ticket not found", "")
	case errors.Is(err, ledger.ErrProjectNotFound):
		utils.JSONError(c, http.StatusNotFound, "Project not found", "")
	default:
		getLogger(c).Error("ledger lookup failed", zap.String("memberId", memberID(c)), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load records", "")
	}
}
