package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"harambee/models"
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResultStore keeps gateway callback results until the poller reads them.
type ResultStore interface {
	SaveResult(ctx context.Context, result models.GatewayResult) error
}

type CallbackHandler struct {
	Results ResultStore
}

func NewCallbackHandler(results ResultStore) *CallbackHandler {
	return &CallbackHandler{Results: results}
}

type stkCallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type stkCallbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []stkCallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// toResult flattens the Daraja callback. Metadata values arrive as JSON numbers or strings.
func (b stkCallbackBody) toResult(now time.Time) models.GatewayResult {
	cb := b.Body.StkCallback
	result := models.GatewayResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		ReceivedAt:        now,
	}
	for _, item := range cb.CallbackMetadata.Item {
		value := metadataString(item.Value)
		switch item.Name {
		case "MpesaReceiptNumber":
			result.MpesaReceiptNumber = value
		case "Amount":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				result.Amount = int64(f)
			}
		case "PhoneNumber":
			result.PhoneNumber = value
		}
	}
	return result
}

func metadataString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// MpesaCallbackHandler stores the STK push result so the next status check resolves with the receipt.
func (h *CallbackHandler) MpesaCallbackHandler(c *gin.Context) {
	logger := getLogger(c)

	var body stkCallbackBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Body.StkCallback.CheckoutRequestID == "" {
		logger.Warn("[MpesaCallback] malformed callback", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid callback payload", "")
		return
	}

	result := body.toResult(time.Now())
	if err := h.Results.SaveResult(c.Request.Context(), result); err != nil {
		logger.Error("[MpesaCallback] failed to store result",
			zap.String("checkoutRequestId", result.CheckoutRequestID),
			zap.Error(err))
		utils.JSONRetryableError(c, http.StatusInternalServerError, "Failed to store callback", "")
		return
	}

	logger.Info("[MpesaCallback] result received",
		zap.String("checkoutRequestId", result.CheckoutRequestID),
		zap.Int("resultCode", result.ResultCode))
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
