package handlers

import (
	"errors"
	"net/http"

	memberRepo "harambee/database/repository/member"
	"harambee/services/member"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MemberHandler struct {
	Service member.MemberService
}

func NewMemberHandler(svc member.MemberService) *MemberHandler {
	return &MemberHandler{Service: svc}
}

// MandatoryStatusHandler is refreshed by the app after a fee payment to unlock the dashboard.
func (h *MemberHandler) MandatoryStatusHandler(c *gin.Context) {
	status, err := h.Service.MandatoryStatus(c.Request.Context(), memberID(c))
	if err != nil {
		h.respondMemberError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *MemberHandler) WalletHandler(c *gin.Context) {
	balance, err := h.Service.Balance(c.Request.Context(), memberID(c))
	if err != nil {
		h.respondMemberError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "currency": "KES"})
}

func (h *MemberHandler) respondMemberError(c *gin.Context, err error) {
	if errors.Is(err, memberRepo.ErrMemberNotFound) {
		utils.JSONError(c, http.StatusNotFound, "Member not found", "")
		return
	}
	getLogger(c).Error("member lookup failed", zap.String("memberId", memberID(c)), zap.Error(err))
	utils.JSONError(c, http.StatusInternalServerError, "Failed to load member", "")
}
