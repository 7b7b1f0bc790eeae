package recharge

import (
	"context"
	"testing"
	"time"

	"harambee/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.RechargeToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockTokenRepo) GetByToken(ctx context.Context, token string) (*models.RechargeToken, error) {
	args := m.Called(ctx, token)
	if v := args.Get(0); v != nil {
		return v.(*models.RechargeToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTokenRepo) GetByOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]models.RechargeToken), args.Error(1)
}

func (m *mockTokenRepo) SetStatus(ctx context.Context, token string, status models.RechargeTokenStatus) (bool, error) {
	args := m.Called(ctx, token, status)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) AppendContribution(ctx context.Context, token string, c models.RechargeContribution) error {
	return m.Called(ctx, token, c).Error(0)
}

func (m *mockTokenRepo) ResolveContribution(ctx context.Context, token, checkoutRequestID string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error) {
	args := m.Called(ctx, token, checkoutRequestID, status, receipt)
	if v := args.Get(0); v != nil {
		return v.(*models.RechargeToken), args.Error(1)
	}
	return nil, args.Error(1)
}

var fixedNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*DefaultRechargeService, *mockTokenRepo) {
	repo := &mockTokenRepo{}
	svc, err := NewDefaultRechargeService(repo, 720*time.Hour)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func TestCreate_DefaultsAndCaps(t *testing.T) {
	tests := []struct {
		name    string
		hours   int
		wantTTL time.Duration
	}{
		{"default expiry", 0, defaultLinkTTL},
		{"requested expiry", 12, 12 * time.Hour},
		{"capped at max", 10000, 720 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)
			repo.On("Create", mock.Anything, mock.AnythingOfType("*models.RechargeToken")).Return(nil)

			token, err := svc.Create(context.Background(), "m1", models.CreateRechargeTokenRequest{
				RecipientLabel: "  Jane  ",
				TargetAmount:   1000,
				ExpiresInHours: tt.hours,
			})
			require.NoError(t, err)
			assert.Equal(t, "Jane", token.RecipientLabel)
			assert.Equal(t, models.RechargeTokenActive, token.Status)
			assert.Equal(t, fixedNow.Add(tt.wantTTL), token.ExpiresAt)
			assert.Len(t, token.Token, 32)
			assert.NotNil(t, token.Contributions)
		})
	}
}

func TestCreate_RejectsBadInput(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name  string
		req   models.CreateRechargeTokenRequest
		field string
	}{
		{"blank label", models.CreateRechargeTokenRequest{RecipientLabel: " "}, "recipientLabel"},
		{"negative target", models.CreateRechargeTokenRequest{RecipientLabel: "Jane", TargetAmount: -5}, "targetAmount"},
		{"negative expiry", models.CreateRechargeTokenRequest{RecipientLabel: "Jane", ExpiresInHours: -1}, "expiresInHours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "m1", tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRequireValid(t *testing.T) {
	tests := []struct {
		name    string
		token   *models.RechargeToken
		wantErr error
	}{
		{"active", &models.RechargeToken{Status: models.RechargeTokenActive, ExpiresAt: fixedNow.Add(time.Hour)}, nil},
		{"expired", &models.RechargeToken{Status: models.RechargeTokenActive, ExpiresAt: fixedNow.Add(-time.Minute)}, ErrTokenExpired},
		{"target reached", &models.RechargeToken{Status: models.RechargeTokenCompleted, ExpiresAt: fixedNow.Add(time.Hour)}, ErrTokenClosed},
		{"cancelled by owner", &models.RechargeToken{Status: models.RechargeTokenCancelled, ExpiresAt: fixedNow.Add(time.Hour)}, ErrTokenClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(t)
			repo.On("GetByToken", mock.Anything, "tok").Return(tt.token, nil)

			_, err := svc.RequireValid(context.Background(), "tok")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequireValid_UnknownToken(t *testing.T) {
	svc, repo := newService(t)
	repo.On("GetByToken", mock.Anything, "nope").Return(nil, ErrTokenNotFound)

	_, err := svc.RequireValid(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestPublicView_ExpiredStillDisplayed(t *testing.T) {
	svc, repo := newService(t)
	repo.On("GetByToken", mock.Anything, "tok").Return(&models.RechargeToken{
		Token:           "tok",
		TargetAmount:    1000,
		CollectedAmount: 750,
		Status:          models.RechargeTokenActive,
		ExpiresAt:       fixedNow.Add(-time.Hour),
	}, nil)

	view, err := svc.PublicView(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, view.IsValid)
	require.NotNil(t, view.ProgressPercentage)
	assert.Equal(t, 75.0, *view.ProgressPercentage)
	assert.Equal(t, int64(750), view.CollectedAmount)
}

func TestCancel(t *testing.T) {
	svc, repo := newService(t)
	repo.On("GetByToken", mock.Anything, "tok").Return(&models.RechargeToken{Token: "tok", OwnerID: "m1"}, nil)
	repo.On("SetStatus", mock.Anything, "tok", models.RechargeTokenCancelled).Return(true, nil).Once()
	repo.On("SetStatus", mock.Anything, "tok", models.RechargeTokenCancelled).Return(false, nil).Once()

	assert.ErrorIs(t, svc.Cancel(context.Background(), "m2", "tok"), ErrNotTokenOwner)
	assert.NoError(t, svc.Cancel(context.Background(), "m1", "tok"))
	assert.ErrorIs(t, svc.Cancel(context.Background(), "m1", "tok"), ErrTokenClosed)
}

func TestAppendPending(t *testing.T) {
	svc, repo := newService(t)
	session := &models.PaymentSession{CheckoutRequestID: "ws_CO_1", Amount: 200, InitiatedAt: fixedNow}
	repo.On("AppendContribution", mock.Anything, "tok", models.RechargeContribution{
		CheckoutRequestID: "ws_CO_1",
		DonorName:         "Kamau",
		Amount:            200,
		Status:            models.PaymentPending,
		CreatedAt:         fixedNow,
	}).Return(nil)

	require.NoError(t, svc.AppendPending(context.Background(), "tok", session, "Kamau"))
	repo.AssertExpectations(t)
}
