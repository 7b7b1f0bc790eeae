package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRechargeToken_ProgressPercentage(t *testing.T) {
	tests := []struct {
		name      string
		target    int64
		collected int64
		want      float64
		wantOK    bool
	}{
		{"three quarters", 1000, 750, 75, true},
		{"capped at hundred", 1000, 1500, 100, true},
		{"nothing yet", 500, 0, 0, true},
		{"fraction rounded", 300, 100, 33.33, true},
		{"no target", 0, 750, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := RechargeToken{TargetAmount: tt.target, CollectedAmount: tt.collected}
			got, ok := token.ProgressPercentage()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestRechargeToken_IsValid(t *testing.T) {
	now := time.Now()

	active := RechargeToken{Status: RechargeTokenActive, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, active.IsValid(now))

	expired := RechargeToken{Status: RechargeTokenActive, ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.IsValid(now))
	assert.True(t, expired.IsExpired(now))

	completed := RechargeToken{Status: RechargeTokenCompleted, ExpiresAt: now.Add(time.Hour)}
	assert.False(t, completed.IsValid(now))

	atDeadline := RechargeToken{Status: RechargeTokenActive, ExpiresAt: now}
	assert.False(t, atDeadline.IsValid(now))
}

func TestRechargeToken_PublicViewOmitsProgressWithoutTarget(t *testing.T) {
	now := time.Now()
	token := RechargeToken{
		Token:           "abc",
		RecipientLabel:  "Jane",
		CollectedAmount: 750,
		Status:          RechargeTokenActive,
		ExpiresAt:       now.Add(time.Hour),
	}

	view := token.PublicView(now)
	assert.Nil(t, view.ProgressPercentage)
	assert.True(t, view.IsValid)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "progress_percentage")
	assert.Contains(t, string(raw), `"collected_amount":750`)
	assert.Contains(t, string(raw), `"contributions":[]`)
}

func TestRechargeToken_PublicViewWithTarget(t *testing.T) {
	now := time.Now()
	token := RechargeToken{TargetAmount: 1000, CollectedAmount: 750, Status: RechargeTokenActive, ExpiresAt: now.Add(-time.Minute)}

	view := token.PublicView(now)
	require.NotNil(t, view.ProgressPercentage)
	assert.Equal(t, 75.0, *view.ProgressPercentage)
	assert.False(t, view.IsValid)
}

func TestMember_HasPaidTerm(t *testing.T) {
	m := Member{MandatoryPayments: []FeePayment{{Term: "2025"}}}
	assert.True(t, m.HasPaidTerm("2025"))
	assert.False(t, m.HasPaidTerm("2026"))
}
