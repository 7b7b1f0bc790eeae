package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"harambee/config"
	"harambee/models"
	"harambee/utils"

	"go.uber.org/zap"
)

// CheckFunc reads the gateway view of a session.
type CheckFunc func(ctx context.Context, checkoutRequestID string) (*models.PaymentSession, error)

type PollerConfig struct {
	PollInterval  time.Duration
	TickInterval  time.Duration
	SlowThreshold time.Duration
	CheckTimeout  time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollInterval:  3 * time.Second,
		TickInterval:  time.Second,
		SlowThreshold: 60 * time.Second,
		CheckTimeout:  10 * time.Second,
	}
}

func PollerConfigFromApp() PollerConfig {
	cfg := DefaultPollerConfig()
	c := config.AppConfig
	if c.PaymentPollInterval > 0 {
		cfg.PollInterval = c.PaymentPollInterval
	}
	if c.PaymentTickInterval > 0 {
		cfg.TickInterval = c.PaymentTickInterval
	}
	if c.PaymentSlowThreshold > 0 {
		cfg.SlowThreshold = c.PaymentSlowThreshold
	}
	return cfg
}

// Callbacks are invoked from the tracking goroutines. OnPending and OnSlow run inside the
// loops and must not call Stop on their own tracking.
type Callbacks struct {
	OnPending  func(session models.PaymentSession)
	OnSlow     func(session models.PaymentSession, elapsed time.Duration)
	OnResolved func(session models.PaymentSession)
}

// SessionPoller drives pending sessions to resolution.
type SessionPoller struct {
	check  CheckFunc
	cfg    PollerConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionPoller(check CheckFunc, cfg PollerConfig, logger *zap.Logger) *SessionPoller {
	def := DefaultPollerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = def.SlowThreshold
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	return &SessionPoller{check: check, cfg: cfg, logger: logger, now: time.Now}
}

func (p *SessionPoller) Config() PollerConfig { return p.cfg }

// Tracking owns the two timers of one session: the poll cadence and the elapsed tick.
type Tracking struct {
	cancel    context.CancelFunc
	loopsDone chan struct{}
	done      chan struct{}
	tick      time.Duration

	mu       sync.RWMutex
	session  models.PaymentSession
	resolved bool

	ticks atomic.Int64
	polls atomic.Int64
	slow  atomic.Bool
}

// StartTracking begins polling a pending session. Tracking ends when the gateway resolves the
// session, Stop is called or parent is cancelled. OnResolved runs once, only for gateway resolutions,
// after both loops have exited.
func (p *SessionPoller) StartTracking(parent context.Context, session models.PaymentSession, cb Callbacks) *Tracking {
	ctx, cancel := context.WithCancel(parent)
	t := &Tracking{
		cancel:    cancel,
		loopsDone: make(chan struct{}),
		done:      make(chan struct{}),
		tick:      p.cfg.TickInterval,
		session:   session,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.pollLoop(ctx, t, cb)
	}()
	go func() {
		defer wg.Done()
		p.tickLoop(ctx, t, cb)
	}()

	go func() {
		wg.Wait()
		cancel()
		close(t.loopsDone)

		t.mu.RLock()
		resolved, snapshot := t.resolved, t.session
		t.mu.RUnlock()
		if resolved && cb.OnResolved != nil {
			cb.OnResolved(snapshot)
		}
		close(t.done)
	}()

	return t
}

func (p *SessionPoller) pollLoop(ctx context.Context, t *Tracking, cb Callbacks) {
	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	id := t.Session().CheckoutRequestID
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if p.pollOnce(ctx, t, id, cb) {
			t.cancel()
			return
		}
		// The next check is scheduled only after this one settled.
		timer.Reset(p.cfg.PollInterval)
	}
}

// pollOnce reports true when the session reached a terminal state.
func (p *SessionPoller) pollOnce(ctx context.Context, t *Tracking, id string, cb Callbacks) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	snapshot, err := p.check(checkCtx, id)
	cancel()
	t.polls.Add(1)

	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		p.logger.Warn("status check failed, session stays pending",
			zap.String("checkoutRequestId", id),
			zap.Error(err))
		return false
	}
	if snapshot == nil || snapshot.Status == models.PaymentPending || snapshot.Status == "" {
		if cb.OnPending != nil {
			cb.OnPending(t.Session())
		}
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.session.Apply(*snapshot, p.now()); err != nil {
		if errors.Is(err, models.ErrSessionTerminal) {
			return true
		}
		p.logger.Error("unexpected gateway snapshot",
			zap.String("checkoutRequestId", id),
			zap.String("status", string(snapshot.Status)),
			zap.Error(err))
		return false
	}
	t.resolved = true
	p.logger.Info("payment session resolved",
		zap.String("checkoutRequestId", id),
		zap.String("status", string(t.session.Status)),
		zap.String("phone", utils.MaskPhone(t.session.PhoneNumber)))
	return true
}

func (p *SessionPoller) tickLoop(ctx context.Context, t *Tracking, cb Callbacks) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ticks := t.ticks.Add(1)
		elapsed := time.Duration(ticks) * p.cfg.TickInterval
		if elapsed >= p.cfg.SlowThreshold && t.slow.CompareAndSwap(false, true) {
			p.logger.Info("payment session taking too long, still polling",
				zap.String("checkoutRequestId", t.Session().CheckoutRequestID),
				zap.Duration("elapsed", elapsed))
			if cb.OnSlow != nil {
				cb.OnSlow(t.Session(), elapsed)
			}
		}
	}
}

// Stop cancels both timers and waits for them to exit. Safe to call more than once and from OnResolved.
func (t *Tracking) Stop() {
	t.cancel()
	<-t.loopsDone
}

// Done is closed after tracking ended and OnResolved returned.
func (t *Tracking) Done() <-chan struct{} { return t.done }

// Session returns a copy of the live session.
func (t *Tracking) Session() models.PaymentSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session
}

// Resolved reports whether the gateway settled the session while tracked.
func (t *Tracking) Resolved() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolved
}

func (t *Tracking) Elapsed() time.Duration {
	return time.Duration(t.ticks.Load()) * t.tick
}

func (t *Tracking) ElapsedSeconds() int {
	return int(t.Elapsed() / time.Second)
}

func (t *Tracking) TakingTooLong() bool {
	return t.slow.Load()
}

// Polls is the number of status checks issued so far.
func (t *Tracking) Polls() int {
	return int(t.polls.Load())
}
