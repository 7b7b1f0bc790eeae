package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	sessionRepo "harambee/database/repository/session"
	"harambee/models"
	"harambee/monitoring"
	"harambee/services/notification"
	"harambee/services/tasks"
	"harambee/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const intentInitiating = "initiating"

// TaskEnqueuer schedules background work. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CompletionHandler applies a completed charge to domain state. It must be idempotent per checkout
// request id and returns values shown to the payer, such as a ticket number.
type CompletionHandler func(ctx context.Context, session *models.PaymentSession) (map[string]string, error)

// SessionHook runs around the session lifecycle for one purpose.
type SessionHook func(ctx context.Context, session *models.PaymentSession) error

// PurposeHandler is what differs between purchase contexts once a session exists.
type PurposeHandler struct {
	// Started runs after the gateway accepted the push. Optional.
	Started SessionHook
	// Complete runs once per completed session. Required.
	Complete CompletionHandler
	// Abandon runs for failed or cancelled sessions. Optional.
	Abandon SessionHook
}

// Plan is a validated-on-begin description of one charge.
type Plan struct {
	Amount           int64
	Phone            string
	MinAmount        int64
	Purpose          models.PurposeContext
	AccountReference string
	Description      string
}

// SessionView is what the payer's UI polls.
type SessionView struct {
	Session        models.PaymentSession `json:"session"`
	ElapsedSeconds int                   `json:"elapsedSeconds"`
	TakingTooLong  bool                  `json:"takingTooLong"`
	Tracking       bool                  `json:"tracking"`
}

// Access decides whether a caller may see or cancel a session.
type Access func(session models.PaymentSession) bool

func OwnedBy(memberID string) Access {
	return func(s models.PaymentSession) bool {
		return memberID != "" && s.OwnerID == memberID
	}
}

func ForRechargeToken(token string) Access {
	return func(s models.PaymentSession) bool {
		return token != "" && s.Purpose.Kind == models.PurposeRechargeLink && s.Purpose.Token == token
	}
}

type EngineDeps struct {
	Gateway        GatewayClient
	Sessions       sessionRepo.SessionRepository
	Notifier       notification.NotificationService
	Tasks          TaskEnqueuer
	Poller         PollerConfig
	ReconcileDelay time.Duration
	Logger         *zap.Logger
}

// Engine is the session lifecycle shared by every purchase context.
type Engine struct {
	gateway        GatewayClient
	sessions       sessionRepo.SessionRepository
	notifier       notification.NotificationService
	tasks          TaskEnqueuer
	poller         *SessionPoller
	registry       *Registry
	reconcileDelay time.Duration
	logger         *zap.Logger
	now            func() time.Time

	mu       sync.RWMutex
	handlers map[models.PurposeKind]PurposeHandler

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Gateway == nil || deps.Sessions == nil || deps.Notifier == nil || deps.Logger == nil {
		return nil, errors.New("payment engine initialization error: gateway, sessions, notifier and logger are required")
	}
	if deps.ReconcileDelay <= 0 {
		deps.ReconcileDelay = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		gateway:        deps.Gateway,
		sessions:       deps.Sessions,
		notifier:       deps.Notifier,
		tasks:          deps.Tasks,
		registry:       NewRegistry(),
		reconcileDelay: deps.ReconcileDelay,
		logger:         deps.Logger,
		now:            time.Now,
		handlers:       make(map[models.PurposeKind]PurposeHandler),
		ctx:            ctx,
		cancel:         cancel,
	}
	e.poller = NewSessionPoller(deps.Gateway.CheckStatus, deps.Poller, deps.Logger)
	return e, nil
}

// Register installs the handler for a purpose kind, replacing any previous one.
func (e *Engine) Register(kind models.PurposeKind, h PurposeHandler) error {
	if !kind.Valid() {
		return fmt.Errorf("Register: %w: %s", ErrUnknownPurpose, kind)
	}
	if h.Complete == nil {
		return fmt.Errorf("Register: %s: completion handler is required", kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = h
	return nil
}

func (e *Engine) handler(kind models.PurposeKind) (PurposeHandler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[kind]
	return h, ok
}

// ActiveTrackings is the number of sessions currently polled.
func (e *Engine) ActiveTrackings() int {
	return e.registry.Count()
}

// --- Begin ---

// Begin validates the plan, guards the purchase intent, initiates the push and starts tracking.
func (e *Engine) Begin(ctx context.Context, ownerID string, plan Plan) (*models.PaymentSession, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	phone, err := validatePlan(plan)
	if err != nil {
		return nil, err
	}
	h, ok := e.handler(plan.Purpose.Kind)
	if !ok {
		return nil, fmt.Errorf("Begin: %w: %s", ErrUnknownPurpose, plan.Purpose.Kind)
	}

	key := plan.Purpose.IntentKey(phone)
	acquired, err := e.sessions.AcquireIntent(ctx, key, intentInitiating)
	if err != nil {
		return nil, fmt.Errorf("Begin: intent lock: %w", err)
	}
	if !acquired {
		pending := &IntentPendingError{}
		holder, err := e.sessions.IntentHolder(ctx, key)
		if err != nil {
			e.logger.Debug("intent holder lookup failed", zap.String("intent", key), zap.Error(err))
		} else if holder != intentInitiating {
			pending.CheckoutRequestID = holder
		}
		return nil, pending
	}

	handle, err := e.gateway.Initiate(ctx, models.InitiateRequest{
		Amount:           plan.Amount,
		PhoneNumber:      phone,
		AccountReference: plan.AccountReference,
		Description:      plan.Description,
		Purpose:          plan.Purpose,
	})
	if err != nil {
		e.releaseIntent(key)
		e.logger.Warn("payment initiation failed",
			zap.String("purpose", string(plan.Purpose.Kind)),
			zap.String("phone", utils.MaskPhone(phone)),
			zap.Error(err))
		return nil, err
	}

	session := models.NewPendingSession(*handle, ownerID, plan.Purpose, e.now())
	if session.Amount == 0 {
		session.Amount = plan.Amount
	}
	if session.PhoneNumber == "" {
		session.PhoneNumber = phone
	}

	if h.Started != nil {
		// The push already reached the payer, so tracking goes ahead regardless.
		if err := h.Started(ctx, session); err != nil {
			e.logger.Error("purpose start hook failed",
				zap.String("checkoutRequestId", session.CheckoutRequestID),
				zap.String("purpose", string(plan.Purpose.Kind)),
				zap.Error(err))
		}
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		e.logger.Error("failed to persist payment session", zap.String("checkoutRequestId", session.CheckoutRequestID), zap.Error(err))
	}
	if err := e.sessions.BindIntent(ctx, key, session.CheckoutRequestID); err != nil {
		e.logger.Warn("failed to bind purchase intent", zap.String("intent", key), zap.Error(err))
	}

	monitoring.SessionInitiated(string(plan.Purpose.Kind))
	e.logger.Info("payment session started",
		zap.String("checkoutRequestId", session.CheckoutRequestID),
		zap.String("purpose", string(plan.Purpose.Kind)),
		zap.Int64("amount", session.Amount),
		zap.String("phone", utils.MaskPhone(session.PhoneNumber)))

	e.track(*session)
	return session, nil
}

func (e *Engine) track(session models.PaymentSession) {
	id := session.CheckoutRequestID
	key := session.Purpose.IntentKey(session.PhoneNumber)
	kind := string(session.Purpose.Kind)
	ready := make(chan *Tracking, 1)

	tr := e.poller.StartTracking(e.ctx, session, Callbacks{
		OnPending: func(models.PaymentSession) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := e.sessions.TouchIntent(ctx, key); err != nil {
				e.logger.Debug("intent touch failed", zap.String("intent", key), zap.Error(err))
			}
		},
		OnSlow: func(s models.PaymentSession, elapsed time.Duration) {
			monitoring.SessionSlow(kind)
		},
		OnResolved: func(s models.PaymentSession) {
			self := <-ready
			// Stays registered until finish has saved, so Cancel waits on Done instead of the store.
			defer e.registry.Remove(id, self)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			e.finish(ctx, &s)
		},
	})

	e.registry.Add(id, tr)
	ready <- tr

	go func() {
		<-tr.Done()
		monitoring.PollerStopped()
	}()
}

// --- Resolution ---

// finish applies a terminal session to domain state, persists it and notifies the payer.
func (e *Engine) finish(ctx context.Context, s *models.PaymentSession) {
	h, _ := e.handler(s.Purpose.Kind)

	switch s.Status {
	case models.PaymentCompleted:
		e.settle(ctx, s, h)
	case models.PaymentFailed, models.PaymentCancelled:
		if h.Abandon != nil {
			if err := h.Abandon(ctx, s); err != nil {
				e.logger.Error("purpose abandon hook failed", zap.String("checkoutRequestId", s.CheckoutRequestID), zap.Error(err))
			}
		}
	}

	saved, err := e.sessions.SaveIfPending(ctx, s)
	if err != nil {
		e.logger.Error("failed to persist resolved session", zap.String("checkoutRequestId", s.CheckoutRequestID), zap.Error(err))
	}
	if err == nil && !saved {
		// Cancelled meanwhile. Its client_cancel reconcile records a completed charge as a late settlement.
		e.logger.Warn("session resolved after it was cancelled",
			zap.String("checkoutRequestId", s.CheckoutRequestID),
			zap.String("status", string(s.Status)))
		return
	}
	e.releaseIntent(s.Purpose.IntentKey(s.PhoneNumber))
	monitoring.SessionResolved(string(s.Purpose.Kind), string(s.Status), s.Elapsed(e.now()))

	e.notify(ctx, s, notificationFor(s, false))
}

// settle runs the completion handler. On failure a retry is scheduled and SettledAt stays nil.
func (e *Engine) settle(ctx context.Context, s *models.PaymentSession, h PurposeHandler) bool {
	if h.Complete == nil {
		e.logger.Error("no completion handler for purpose", zap.String("purpose", string(s.Purpose.Kind)))
		return false
	}
	outcome, err := h.Complete(ctx, s)
	if err != nil {
		e.logger.Error("completion handler failed, scheduling retry",
			zap.String("checkoutRequestId", s.CheckoutRequestID),
			zap.String("purpose", string(s.Purpose.Kind)),
			zap.Error(err))
		e.scheduleReconcile(ctx, s.CheckoutRequestID, tasks.ReasonSettlementRetry)
		return false
	}

	now := e.now()
	s.SettledAt = &now
	s.Outcome = mergeOutcome(s.Outcome, outcome)
	return true
}

func (e *Engine) notify(ctx context.Context, s *models.PaymentSession, n models.Notification) {
	if s.OwnerID != "" {
		if err := e.notifier.NotifyMember(ctx, s.OwnerID, n); err != nil {
			e.logger.Debug("member notification failed", zap.Error(err))
		}
	}
	if s.Purpose.Kind == models.PurposeRechargeLink {
		if err := e.notifier.NotifyRechargeLink(ctx, s.Purpose.Token, n); err != nil {
			e.logger.Debug("recharge link notification failed", zap.Error(err))
		}
	}
}

func notificationFor(s *models.PaymentSession, late bool) models.Notification {
	data := map[string]any{
		"checkoutRequestId": s.CheckoutRequestID,
		"purpose":           s.Purpose.Kind,
		"status":            s.Status,
		"amount":            s.Amount,
	}
	for k, v := range s.Outcome {
		data[k] = v
	}

	n := models.Notification{Data: data}
	switch {
	case late:
		n.Type = models.NotificationPaymentLate
		n.Title = "Payment received"
		n.Body = fmt.Sprintf("Your cancelled payment of KES %d went through and has been applied.", s.Amount)
	case s.Status == models.PaymentCompleted:
		n.Type = models.NotificationPaymentCompleted
		n.Title = "Payment received"
		n.Body = fmt.Sprintf("KES %d received. Receipt %s.", s.Amount, s.MpesaReceiptNumber)
	default:
		n.Type = models.NotificationPaymentFailed
		n.Title = "Payment not completed"
		n.Body = s.ErrorMessage
	}
	return n
}

func mergeOutcome(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (e *Engine) releaseIntent(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.sessions.ReleaseIntent(ctx, key); err != nil {
		e.logger.Warn("failed to release purchase intent", zap.String("intent", key), zap.Error(err))
	}
}

func (e *Engine) scheduleReconcile(ctx context.Context, id, reason string) {
	if e.tasks == nil {
		e.logger.Warn("no task queue configured, reconciliation skipped", zap.String("checkoutRequestId", id), zap.String("reason", reason))
		return
	}
	task, opts, err := tasks.NewReconcileTask(models.ReconcilePayload{CheckoutRequestID: id, Reason: reason}, e.reconcileDelay)
	if err != nil {
		e.logger.Error("failed to build reconcile task", zap.Error(err))
		return
	}
	if _, err := e.tasks.EnqueueContext(ctx, task, opts...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		e.logger.Error("failed to enqueue reconcile task", zap.String("checkoutRequestId", id), zap.Error(err))
	}
}

// --- Read / cancel ---

func (e *Engine) load(ctx context.Context, id string, access Access) (*models.PaymentSession, error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessionRepo.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if access != nil && !access(*s) {
		return nil, ErrNotSessionOwner
	}
	return s, nil
}

// View returns the live tracking state when the session is polled here, else the stored snapshot.
func (e *Engine) View(ctx context.Context, id string, access Access) (*SessionView, error) {
	if tr, ok := e.registry.Get(id); ok {
		s := tr.Session()
		if access != nil && !access(s) {
			return nil, ErrNotSessionOwner
		}
		return &SessionView{
			Session:        s,
			ElapsedSeconds: tr.ElapsedSeconds(),
			TakingTooLong:  tr.TakingTooLong(),
			Tracking:       true,
		}, nil
	}

	s, err := e.load(ctx, id, access)
	if err != nil {
		return nil, err
	}
	elapsed := s.Elapsed(e.now())
	return &SessionView{
		Session:        *s,
		ElapsedSeconds: int(elapsed / time.Second),
		TakingTooLong:  s.Status == models.PaymentPending && elapsed >= e.poller.Config().SlowThreshold,
	}, nil
}

// Cancel stops tracking on behalf of the payer. The charge may still settle on the gateway side,
// which the scheduled reconciliation picks up. Terminal sessions are returned unchanged.
func (e *Engine) Cancel(ctx context.Context, id string, access Access, reason string) (*models.PaymentSession, error) {
	if tr, ok := e.registry.Get(id); ok {
		if access != nil && !access(tr.Session()) {
			return nil, ErrNotSessionOwner
		}
		tr.Stop()
		if tr.Resolved() {
			<-tr.Done()
			return e.load(ctx, id, access)
		}
		if !e.registry.Remove(id, tr) {
			return e.load(ctx, id, access)
		}
		s := tr.Session()
		return e.cancelPending(ctx, &s, reason)
	}

	s, err := e.load(ctx, id, access)
	if err != nil {
		return nil, err
	}
	if s.IsTerminal() {
		return s, nil
	}
	return e.cancelPending(ctx, s, reason)
}

func (e *Engine) cancelPending(ctx context.Context, s *models.PaymentSession, reason string) (*models.PaymentSession, error) {
	if err := s.Cancel(reason, e.now()); err != nil {
		if errors.Is(err, models.ErrSessionTerminal) {
			return s, nil
		}
		return nil, err
	}

	saved, err := e.sessions.SaveIfPending(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if !saved {
		return e.load(ctx, s.CheckoutRequestID, nil)
	}

	if h, ok := e.handler(s.Purpose.Kind); ok && h.Abandon != nil {
		if err := h.Abandon(ctx, s); err != nil {
			e.logger.Error("purpose abandon hook failed", zap.String("checkoutRequestId", s.CheckoutRequestID), zap.Error(err))
		}
	}
	e.releaseIntent(s.Purpose.IntentKey(s.PhoneNumber))
	monitoring.SessionResolved(string(s.Purpose.Kind), string(s.Status), s.Elapsed(e.now()))
	e.scheduleReconcile(ctx, s.CheckoutRequestID, tasks.ReasonClientCancel)

	e.logger.Info("payment session cancelled by payer", zap.String("checkoutRequestId", s.CheckoutRequestID))
	return s, nil
}

// --- Shutdown / reconcile ---

// Shutdown stops every tracking and queues reconciliation for sessions that were still pending.
func (e *Engine) Shutdown(ctx context.Context) {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	unresolved := e.registry.StopAll()
	e.cancel()

	for _, tr := range unresolved {
		s := tr.Session()
		e.scheduleReconcile(ctx, s.CheckoutRequestID, tasks.ReasonShutdown)
	}
	e.logger.Info("payment engine stopped", zap.Int("handedToReconciler", len(unresolved)))
}

// Reconcile settles a session whose tracking ended before the gateway did. It returns an error when
// the task should be retried.
func (e *Engine) Reconcile(ctx context.Context, payload models.ReconcilePayload) error {
	id := payload.CheckoutRequestID
	if _, live := e.registry.Get(id); live {
		monitoring.Reconciled("tracked")
		return nil
	}

	s, err := e.load(ctx, id, nil)
	if errors.Is(err, ErrSessionNotFound) {
		e.logger.Warn("[Reconcile] session expired before reconciliation", zap.String("checkoutRequestId", id))
		monitoring.Reconciled("expired")
		return nil
	}
	if err != nil {
		return err
	}

	if s.NeedsSettlement() {
		h, _ := e.handler(s.Purpose.Kind)
		if !e.settle(ctx, s, h) {
			monitoring.Reconciled("settlement_failed")
			return fmt.Errorf("Reconcile: settlement of %s failed", id)
		}
		if err := e.sessions.Save(ctx, s); err != nil {
			return fmt.Errorf("Reconcile: %w", err)
		}
		e.notify(ctx, s, notificationFor(s, false))
		monitoring.Reconciled("settled")
		return nil
	}

	awaitingGateway := s.Status == models.PaymentPending ||
		(s.Status == models.PaymentCancelled && s.SettledAt == nil && s.ResultCode == nil)
	if !awaitingGateway {
		monitoring.Reconciled("noop")
		return nil
	}

	snap, err := e.gateway.CheckStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("Reconcile: check %s: %w", id, err)
	}
	if snap.Status == models.PaymentPending || snap.Status == "" {
		monitoring.Reconciled("pending")
		return ErrStillPending
	}

	if s.Status == models.PaymentPending {
		if _, err := s.Apply(*snap, e.now()); err != nil {
			return fmt.Errorf("Reconcile: %w", err)
		}
		e.finish(ctx, s)
		monitoring.Reconciled("resolved")
		return nil
	}

	// Client cancelled earlier. Only a completed charge needs action.
	s.ResultCode = snap.ResultCode
	if snap.Status != models.PaymentCompleted {
		if err := e.sessions.Save(ctx, s); err != nil {
			return fmt.Errorf("Reconcile: %w", err)
		}
		monitoring.Reconciled("confirmed_cancel")
		return nil
	}
	return e.settleLate(ctx, s, snap)
}

// settleLate applies a charge the payer cancelled locally but completed on the phone.
// The session keeps its cancelled status; the outcome records the settlement.
func (e *Engine) settleLate(ctx context.Context, s *models.PaymentSession, snap *models.PaymentSession) error {
	h, ok := e.handler(s.Purpose.Kind)
	if !ok {
		return fmt.Errorf("settleLate: %w: %s", ErrUnknownPurpose, s.Purpose.Kind)
	}

	charged := *s
	charged.MpesaReceiptNumber = snap.MpesaReceiptNumber
	outcome, err := h.Complete(ctx, &charged)
	if err != nil {
		monitoring.Reconciled("settlement_failed")
		return fmt.Errorf("settleLate: %s: %w", s.CheckoutRequestID, err)
	}

	now := e.now()
	s.SettledAt = &now
	s.Outcome = mergeOutcome(s.Outcome, outcome)
	s.Outcome = mergeOutcome(s.Outcome, map[string]string{
		"lateSettlement":     strconv.FormatBool(true),
		"mpesaReceiptNumber": snap.MpesaReceiptNumber,
	})
	if err := e.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("settleLate: %w", err)
	}

	e.logger.Info("[Reconcile] cancelled session settled by gateway",
		zap.String("checkoutRequestId", s.CheckoutRequestID),
		zap.String("purpose", string(s.Purpose.Kind)))
	e.notify(ctx, s, notificationFor(s, true))
	monitoring.Reconciled("late_settlement")
	return nil
}
