package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingSession() *PaymentSession {
	return NewPendingSession(SessionHandle{
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "29115-1",
		Amount:            100,
		PhoneNumber:       "254712345678",
	}, "member-1", PurposeContext{Kind: PurposeMandatoryFee, MemberID: "member-1"}, time.Now())
}

func TestPaymentStatus_Transitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCompleted))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCancelled))

	for _, terminal := range []PaymentStatus{PaymentCompleted, PaymentFailed, PaymentCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled} {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
	assert.False(t, PaymentPending.IsTerminal())
}

func TestResolveResultCode(t *testing.T) {
	assert.Equal(t, PaymentCompleted, ResolveResultCode(0))
	assert.Equal(t, PaymentCancelled, ResolveResultCode(1032))
	assert.Equal(t, PaymentFailed, ResolveResultCode(1))
	assert.Equal(t, PaymentFailed, ResolveResultCode(1037))
}

func TestPaymentSession_ApplyCompleted(t *testing.T) {
	s := pendingSession()
	code := 0

	changed, err := s.Apply(PaymentSession{
		Status:             PaymentCompleted,
		MpesaReceiptNumber: "QAR7XXXXX",
		ResultCode:         &code,
	}, time.Now())

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PaymentCompleted, s.Status)
	assert.Equal(t, "QAR7XXXXX", s.MpesaReceiptNumber)
	assert.Empty(t, s.ErrorMessage)
	assert.NotNil(t, s.ResolvedAt)
}

func TestPaymentSession_ApplyPendingIsNoop(t *testing.T) {
	s := pendingSession()

	changed, err := s.Apply(PaymentSession{Status: PaymentPending}, time.Now())

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, PaymentPending, s.Status)
	assert.Nil(t, s.ResolvedAt)
}

func TestPaymentSession_FailureMessages(t *testing.T) {
	t.Run("gateway message kept", func(t *testing.T) {
		s := pendingSession()
		_, err := s.Apply(PaymentSession{Status: PaymentFailed, ErrorMessage: "Insufficient balance", MpesaReceiptNumber: "X"}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "Insufficient balance", s.ErrorMessage)
		assert.Empty(t, s.MpesaReceiptNumber)
	})

	t.Run("generic fallback", func(t *testing.T) {
		s := pendingSession()
		_, err := s.Apply(PaymentSession{Status: PaymentFailed}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, defaultFailureMessage, s.ErrorMessage)
	})

	t.Run("cancel fallback", func(t *testing.T) {
		s := pendingSession()
		_, err := s.Apply(PaymentSession{Status: PaymentCancelled}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, defaultCancelMessage, s.ErrorMessage)
	})
}

func TestPaymentSession_TerminalIsImmutable(t *testing.T) {
	s := pendingSession()
	_, err := s.Apply(PaymentSession{Status: PaymentCompleted, MpesaReceiptNumber: "QAR7XXXXX"}, time.Now())
	require.NoError(t, err)

	changed, err := s.Apply(PaymentSession{Status: PaymentFailed, ErrorMessage: "late failure"}, time.Now())
	assert.ErrorIs(t, err, ErrSessionTerminal)
	assert.False(t, changed)
	assert.Equal(t, PaymentCompleted, s.Status)
	assert.Equal(t, "QAR7XXXXX", s.MpesaReceiptNumber)

	assert.ErrorIs(t, s.Cancel("", time.Now()), ErrSessionTerminal)
}

func TestPaymentSession_Cancel(t *testing.T) {
	s := pendingSession()

	require.NoError(t, s.Cancel("", time.Now()))
	assert.Equal(t, PaymentCancelled, s.Status)
	assert.Equal(t, "Cancelled by user.", s.ErrorMessage)
}

func TestPurposeContext_IntentKey(t *testing.T) {
	fee := PurposeContext{Kind: PurposeMandatoryFee, MemberID: "m1", Term: "2026"}
	assert.Equal(t, "mandatory_fee:m1:2026", fee.IntentKey("254712345678"))

	link := PurposeContext{Kind: PurposeRechargeLink, Token: "abc"}
	assert.Equal(t, "recharge_link:abc:254712345678", link.IntentKey("254712345678"))
	assert.NotEqual(t, link.IntentKey("254712345678"), link.IntentKey("254722000000"))
}

func TestGatewayResult_Snapshot(t *testing.T) {
	ok := GatewayResult{CheckoutRequestID: "ws_CO_1", ResultCode: 0, ResultDesc: "ok", MpesaReceiptNumber: "QAR7XXXXX"}.Snapshot()
	assert.Equal(t, PaymentCompleted, ok.Status)
	assert.Equal(t, "QAR7XXXXX", ok.MpesaReceiptNumber)
	assert.Empty(t, ok.ErrorMessage)

	cancelled := GatewayResult{CheckoutRequestID: "ws_CO_1", ResultCode: 1032, ResultDesc: "Request cancelled by user"}.Snapshot()
	assert.Equal(t, PaymentCancelled, cancelled.Status)
	assert.Equal(t, "Request cancelled by user", cancelled.ErrorMessage)
}
