package handlers

import (
	"errors"
	"net/http"

	"harambee/services/member"
	"harambee/services/payment"
	"harambee/services/recharge"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const intentPendingMessage = "A payment for this purchase is already in progress. Complete or cancel it first."

// intentPendingResponse lets the app resume polling the push that holds the intent.
type intentPendingResponse struct {
	Message           string `json:"message"`
	CheckoutRequestID string `json:"checkoutRequestId,omitempty"`
}

// respondPaymentError maps service errors to the JSON error shapes the apps render.
// fallback is the message used for unexpected failures.
func respondPaymentError(c *gin.Context, err error, fallback string) {
	var verr *payment.ValidationError
	var ierr *payment.InitiationError
	var perr *payment.IntentPendingError
	var rverr *recharge.ValidationError

	switch {
	case errors.As(err, &verr):
		utils.JSONFieldError(c, verr.Field, verr.Message)
	case errors.As(err, &rverr):
		utils.JSONFieldError(c, rverr.Field, rverr.Message)
	case errors.As(err, &ierr):
		utils.JSONRetryableError(c, http.StatusBadGateway, ierr.UserMessage(), ierr.Code)
	case errors.As(err, &perr):
		getLogger(c).Debug("purchase intent already pending", zap.String("checkoutRequestId", perr.CheckoutRequestID))
		c.JSON(http.StatusConflict, intentPendingResponse{
			Message:           intentPendingMessage,
			CheckoutRequestID: perr.CheckoutRequestID,
		})
	case errors.Is(err, payment.ErrIntentPending):
		utils.JSONError(c, http.StatusConflict, intentPendingMessage, "")
	case errors.Is(err, member.ErrFeeAlreadyPaid):
		utils.JSONError(c, http.StatusConflict, "Your mandatory fee for this term is already paid.", "")
	case errors.Is(err, recharge.ErrTokenExpired), errors.Is(err, recharge.ErrTokenClosed):
		utils.JSONError(c, http.StatusGone, "This recharge link is no longer accepting payments.", err.Error())
	case errors.Is(err, recharge.ErrTokenNotFound):
		utils.JSONError(c, http.StatusNotFound, "Recharge link not found.", "")
	case errors.Is(err, payment.ErrTargetNotFound):
		utils.JSONError(c, http.StatusNotFound, "Payment target not found.", "")
	case errors.Is(err, payment.ErrSessionNotFound):
		utils.JSONError(c, http.StatusNotFound, "Payment session not found or expired.", "")
	case errors.Is(err, payment.ErrNotSessionOwner), errors.Is(err, recharge.ErrNotTokenOwner):
		utils.JSONError(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, utils.ErrCircuitOpen), errors.Is(err, utils.ErrTooManyRequests), errors.Is(err, payment.ErrEngineClosed):
		utils.JSONRetryableError(c, http.StatusServiceUnavailable, "Payments are temporarily unavailable. Please try again shortly.", "")
	default:
		getLogger(c).Sugar().Errorf("unhandled payment error: %v", err)
		utils.JSONRetryableError(c, http.StatusBadGateway, fallback, "")
	}
}
