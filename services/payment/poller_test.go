package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"harambee/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPollerConfig() PollerConfig {
	return PollerConfig{
		PollInterval:  2 * time.Millisecond,
		TickInterval:  time.Millisecond,
		SlowThreshold: time.Hour,
		CheckTimeout:  time.Second,
	}
}

func trackedSession() models.PaymentSession {
	return *models.NewPendingSession(models.SessionHandle{
		CheckoutRequestID: "ws_CO_1",
		Amount:            100,
		PhoneNumber:       "254712345678",
	}, "member-1", models.PurposeContext{Kind: models.PurposeMandatoryFee, MemberID: "member-1"}, time.Now())
}

func waitDone(t *testing.T, tr *Tracking) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracking did not finish")
	}
}

// scriptedCheck answers pending until the given call, then the final snapshot.
func scriptedCheck(calls *atomic.Int32, resolveOn int32, final models.PaymentSession) CheckFunc {
	return func(ctx context.Context, id string) (*models.PaymentSession, error) {
		n := calls.Add(1)
		if n < resolveOn {
			return &models.PaymentSession{CheckoutRequestID: id, Status: models.PaymentPending}, nil
		}
		snap := final
		return &snap, nil
	}
}

func TestSessionPoller_ResolvesOnFifthCheckExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	check := scriptedCheck(&calls, 5, models.PaymentSession{Status: models.PaymentCompleted, MpesaReceiptNumber: "QAR7XXXXX"})
	poller := NewSessionPoller(check, fastPollerConfig(), zap.NewNop())

	var resolvedCount atomic.Int32
	var pendingCount atomic.Int32
	var got models.PaymentSession
	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{
		OnPending: func(models.PaymentSession) { pendingCount.Add(1) },
		OnResolved: func(s models.PaymentSession) {
			resolvedCount.Add(1)
			got = s
		},
	})

	waitDone(t, tr)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, int32(4), pendingCount.Load())
	assert.Equal(t, int32(1), resolvedCount.Load())
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Equal(t, "QAR7XXXXX", got.MpesaReceiptNumber)
	assert.True(t, tr.Resolved())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(5), calls.Load(), "polling must stop after resolution")
}

func TestSessionPoller_TakingTooLongAtThresholdKeepsPolling(t *testing.T) {
	var calls atomic.Int32
	check := scriptedCheck(&calls, 1<<30, models.PaymentSession{})
	cfg := fastPollerConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.SlowThreshold = 60 * time.Millisecond
	poller := NewSessionPoller(check, cfg, zap.NewNop())

	slowCh := make(chan time.Duration, 4)
	var slowStatus models.PaymentStatus
	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{
		OnSlow: func(s models.PaymentSession, elapsed time.Duration) {
			slowStatus = s.Status
			slowCh <- elapsed
		},
	})
	defer tr.Stop()

	select {
	case elapsed := <-slowCh:
		assert.Equal(t, 60*time.Millisecond, elapsed)
	case <-time.After(2 * time.Second):
		t.Fatal("slow callback never fired")
	}
	assert.Equal(t, models.PaymentPending, slowStatus)
	assert.True(t, tr.TakingTooLong())

	before := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, calls.Load(), before, "polling continues after the slow threshold")
	assert.Equal(t, models.PaymentPending, tr.Session().Status)
	assert.Len(t, slowCh, 0, "slow fires once")
}

func TestSessionPoller_NotSlowBeforeThreshold(t *testing.T) {
	var calls atomic.Int32
	cfg := fastPollerConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.SlowThreshold = 600 * time.Millisecond
	poller := NewSessionPoller(scriptedCheck(&calls, 1<<30, models.PaymentSession{}), cfg, zap.NewNop())

	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{})
	time.Sleep(50 * time.Millisecond)
	tr.Stop()

	assert.False(t, tr.TakingTooLong())
	assert.Less(t, tr.Elapsed(), 600*time.Millisecond)
}

func TestSessionPoller_StopClearsBothTimers(t *testing.T) {
	var calls atomic.Int32
	poller := NewSessionPoller(scriptedCheck(&calls, 1<<30, models.PaymentSession{}), fastPollerConfig(), zap.NewNop())

	var resolved atomic.Bool
	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{
		OnResolved: func(models.PaymentSession) { resolved.Store(true) },
	})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	tr.Stop()
	waitDone(t, tr)

	callsAtStop := calls.Load()
	ticksAtStop := tr.Elapsed()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, callsAtStop, calls.Load(), "no status checks after cancellation")
	assert.Equal(t, ticksAtStop, tr.Elapsed(), "elapsed tick stopped")
	assert.False(t, resolved.Load())
	assert.Equal(t, models.PaymentPending, tr.Session().Status)

	tr.Stop()
}

func TestSessionPoller_TransientErrorsKeepPending(t *testing.T) {
	var calls atomic.Int32
	check := func(ctx context.Context, id string) (*models.PaymentSession, error) {
		if calls.Add(1) <= 3 {
			return nil, errors.New("connection reset by peer")
		}
		return &models.PaymentSession{Status: models.PaymentFailed, ErrorMessage: "DS timeout user cannot be reached"}, nil
	}
	poller := NewSessionPoller(check, fastPollerConfig(), zap.NewNop())

	var got models.PaymentSession
	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{
		OnResolved: func(s models.PaymentSession) { got = s },
	})
	waitDone(t, tr)

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, models.PaymentFailed, got.Status)
	assert.Equal(t, "DS timeout user cannot be reached", got.ErrorMessage)
}

func TestSessionPoller_ChecksNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	check := func(ctx context.Context, id string) (*models.PaymentSession, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if calls.Add(1) >= 4 {
			return &models.PaymentSession{Status: models.PaymentCompleted, MpesaReceiptNumber: "QAR7XXXXX"}, nil
		}
		return &models.PaymentSession{Status: models.PaymentPending}, nil
	}
	cfg := fastPollerConfig()
	cfg.PollInterval = time.Millisecond
	poller := NewSessionPoller(check, cfg, zap.NewNop())

	tr := poller.StartTracking(context.Background(), trackedSession(), Callbacks{})
	waitDone(t, tr)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestSessionPoller_StopInsideOnResolved(t *testing.T) {
	var calls atomic.Int32
	poller := NewSessionPoller(scriptedCheck(&calls, 1, models.PaymentSession{Status: models.PaymentCancelled}), fastPollerConfig(), zap.NewNop())

	var mu sync.Mutex
	var tr *Tracking
	mu.Lock()
	tr = poller.StartTracking(context.Background(), trackedSession(), Callbacks{
		OnResolved: func(models.PaymentSession) {
			mu.Lock()
			defer mu.Unlock()
			tr.Stop()
		},
	})
	mu.Unlock()

	waitDone(t, tr)
	assert.Equal(t, models.PaymentCancelled, tr.Session().Status)
}

func TestSessionPoller_ParentContextCancels(t *testing.T) {
	var calls atomic.Int32
	poller := NewSessionPoller(scriptedCheck(&calls, 1<<30, models.PaymentSession{}), fastPollerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	tr := poller.StartTracking(ctx, trackedSession(), Callbacks{})
	cancel()

	waitDone(t, tr)
	assert.False(t, tr.Resolved())
}
