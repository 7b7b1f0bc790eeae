package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	memberRepo "harambee/database/repository/member"
	projectRepo "harambee/database/repository/project"
	sessionRepo "harambee/database/repository/session"
	"harambee/models"
	"harambee/services/recharge"
	"harambee/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- gateway ---

type fakeGateway struct {
	mu        sync.Mutex
	initiated []models.InitiateRequest
	initErr   error
	seq       atomic.Int32
	checks    atomic.Int32
	// check answers the n-th status call (1-based). Nil means pending forever.
	check func(n int32, id string) (*models.PaymentSession, error)
}

func (g *fakeGateway) Initiate(ctx context.Context, req models.InitiateRequest) (*models.SessionHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated = append(g.initiated, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	n := g.seq.Add(1)
	return &models.SessionHandle{
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", n),
		MerchantRequestID: fmt.Sprintf("29115-%d", n),
		Amount:            req.Amount,
		PhoneNumber:       req.PhoneNumber,
	}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, id string) (*models.PaymentSession, error) {
	n := g.checks.Add(1)
	g.mu.Lock()
	check := g.check
	g.mu.Unlock()
	if check == nil {
		return &models.PaymentSession{CheckoutRequestID: id, Status: models.PaymentPending}, nil
	}
	return check(n, id)
}

func (g *fakeGateway) setCheck(fn func(n int32, id string) (*models.PaymentSession, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.check = fn
}

func (g *fakeGateway) requests() []models.InitiateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.InitiateRequest(nil), g.initiated...)
}

func completeAfter(pending int32, receipt string) func(n int32, id string) (*models.PaymentSession, error) {
	return func(n int32, id string) (*models.PaymentSession, error) {
		if n <= pending {
			return &models.PaymentSession{CheckoutRequestID: id, Status: models.PaymentPending}, nil
		}
		code := models.ResultCodeSuccess
		return &models.PaymentSession{CheckoutRequestID: id, Status: models.PaymentCompleted, MpesaReceiptNumber: receipt, ResultCode: &code}, nil
	}
}

// --- session store ---

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]models.PaymentSession
	intents  map[string]string
	results  map[string]models.GatewayResult
}

func newMemorySessions() *memorySessions {
	return &memorySessions{
		sessions: map[string]models.PaymentSession{},
		intents:  map[string]string{},
		results:  map[string]models.GatewayResult{},
	}
}

func (m *memorySessions) Save(ctx context.Context, s *models.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memorySessions) SaveIfPending(ctx context.Context, s *models.PaymentSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok && cur.Status != models.PaymentPending {
		return false, nil
	}
	m.sessions[s.ID] = *s
	return true, nil
}

func (m *memorySessions) Get(ctx context.Context, id string) (*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sessionRepo.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memorySessions) AcquireIntent(ctx context.Context, key, holder string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.intents[key]; held {
		return false, nil
	}
	m.intents[key] = holder
	return true, nil
}

func (m *memorySessions) IntentHolder(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intents[key], nil
}

func (m *memorySessions) BindIntent(ctx context.Context, key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[key] = holder
	return nil
}

func (m *memorySessions) TouchIntent(ctx context.Context, key string) error { return nil }

func (m *memorySessions) ReleaseIntent(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, key)
	return nil
}

func (m *memorySessions) SaveResult(ctx context.Context, r models.GatewayResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.CheckoutRequestID] = r
	return nil
}

func (m *memorySessions) GetResult(ctx context.Context, id string) (*models.GatewayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memorySessions) stored(id string) (models.PaymentSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *memorySessions) intentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

// --- notifier ---

type sentNotification struct {
	Channel string
	models.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) NotifyMember(ctx context.Context, memberID string, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{Channel: "member-" + memberID, Notification: n})
	return nil
}

func (r *recordingNotifier) NotifyRechargeLink(ctx context.Context, token string, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{Channel: "recharge-" + token, Notification: n})
	return nil
}

func (r *recordingNotifier) count(notificationType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Type == notificationType {
			n++
		}
	}
	return n
}

// --- task queue ---

type recordingQueue struct {
	mu       sync.Mutex
	payloads []models.ReconcilePayload
}

func (q *recordingQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, err := tasks.ParseReconcilePayload(task)
	if err != nil {
		return nil, err
	}
	q.payloads = append(q.payloads, p)
	return &asynq.TaskInfo{ID: p.CheckoutRequestID, Type: task.Type()}, nil
}

func (q *recordingQueue) reasons() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.payloads))
	for _, p := range q.payloads {
		out = append(out, p.Reason)
	}
	return out
}

// --- members ---

type fakeMembers struct {
	mu        sync.Mutex
	members   map[string]*models.Member
	fee       int64
	term      string
	markCalls []string
	credits   map[string]bool
	creditErr error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		members: map[string]*models.Member{
			"m1": {ID: "m1", MMID: "MM001", FullName: "Wanjiru"},
			"m2": {ID: "m2", MMID: "MM002", FullName: "Otieno"},
		},
		fee:     100,
		term:    "2026",
		credits: map[string]bool{},
	}
}

func (f *fakeMembers) GetMember(ctx context.Context, id string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, fmt.Errorf("GetMember: %w", memberRepo.ErrMemberNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) GetMemberByMMID(ctx context.Context, mmid string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.MMID == mmid {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("GetMemberByMMID: %w", memberRepo.ErrMemberNotFound)
}

func (f *fakeMembers) MandatoryStatus(ctx context.Context, id string) (*models.MandatoryStatus, error) {
	m, err := f.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.MandatoryStatus{Term: f.term, Amount: f.fee, Paid: m.HasPaidTerm(f.term)}, nil
}

func (f *fakeMembers) MarkMandatoryPaid(ctx context.Context, id, term string, amount int64, receipt string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, receipt)
	m := f.members[id]
	if m.HasPaidTerm(term) {
		return false, nil
	}
	m.MandatoryPayments = append(m.MandatoryPayments, models.FeePayment{Term: term, Amount: amount, MpesaReceiptNumber: receipt})
	return true, nil
}

func (f *fakeMembers) FeeAmount() int64   { return f.fee }
func (f *fakeMembers) CurrentTerm() string { return f.term }

func (f *fakeMembers) CreditWallet(ctx context.Context, id string, amount int64, receipt string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return 0, f.creditErr
	}
	m := f.members[id]
	if !f.credits[receipt] {
		f.credits[receipt] = true
		m.WalletBalance += amount
	}
	return m.WalletBalance, nil
}

func (f *fakeMembers) Balance(ctx context.Context, id string) (int64, error) {
	m, err := f.GetMember(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.WalletBalance, nil
}

func (f *fakeMembers) setCreditErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditErr = err
}

func (f *fakeMembers) balance(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[id].WalletBalance
}

// --- recharge links ---

type fakeRecharge struct {
	mu     sync.Mutex
	tokens map[string]*models.RechargeToken
}

func newFakeRecharge() *fakeRecharge {
	return &fakeRecharge{tokens: map[string]*models.RechargeToken{
		"tok": {Token: "tok", OwnerID: "m2", RecipientLabel: "Otieno", TargetAmount: 1000, Status: models.RechargeTokenActive, ExpiresAt: time.Now().Add(time.Hour)},
		"old": {Token: "old", OwnerID: "m2", Status: models.RechargeTokenActive, ExpiresAt: time.Now().Add(-time.Hour)},
	}}
}

func (f *fakeRecharge) Create(ctx context.Context, ownerID string, req models.CreateRechargeTokenRequest) (*models.RechargeToken, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeRecharge) ListForOwner(ctx context.Context, ownerID string) ([]models.RechargeToken, error) {
	return nil, nil
}

func (f *fakeRecharge) Cancel(ctx context.Context, ownerID, token string) error { return nil }

func (f *fakeRecharge) PublicView(ctx context.Context, token string) (*models.RechargeTokenView, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeRecharge) RequireValid(ctx context.Context, token string) (*models.RechargeToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return nil, recharge.ErrTokenNotFound
	}
	if rt.IsExpired(time.Now()) {
		return nil, recharge.ErrTokenExpired
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeRecharge) AppendPending(ctx context.Context, token string, s *models.PaymentSession, donor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt := f.tokens[token]
	rt.Contributions = append(rt.Contributions, models.RechargeContribution{
		CheckoutRequestID: s.CheckoutRequestID, DonorName: donor, Amount: s.Amount, Status: models.PaymentPending,
	})
	return nil
}

func (f *fakeRecharge) Resolve(ctx context.Context, token, id string, status models.PaymentStatus, receipt string) (*models.RechargeToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt := f.tokens[token]
	for i := range rt.Contributions {
		c := &rt.Contributions[i]
		if c.CheckoutRequestID != id || c.Status == models.PaymentCompleted {
			continue
		}
		c.Status = status
		if status == models.PaymentCompleted {
			c.MpesaReceiptNumber = receipt
			rt.CollectedAmount += c.Amount
		}
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeRecharge) token(t string) models.RechargeToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.tokens[t]
	cp.Contributions = append([]models.RechargeContribution(nil), f.tokens[t].Contributions...)
	return cp
}

// --- projects, contributions, tickets ---

type fakeProjects struct {
	mu     sync.Mutex
	raised map[string]int64
	refs   map[string]bool
}

func (f *fakeProjects) GetByID(ctx context.Context, id string) (*models.Project, error) {
	switch id {
	case "p1":
		return &models.Project{ID: "p1", Title: "Borehole", Active: true}, nil
	case "closed":
		return &models.Project{ID: "closed", Title: "Old", Active: false}, nil
	}
	return nil, projectRepo.ErrProjectNotFound
}

func (f *fakeProjects) AddRaised(ctx context.Context, id string, amount int64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs[ref] {
		return nil
	}
	f.refs[ref] = true
	f.raised[id] += amount
	return nil
}

type fakeContributions struct {
	mu      sync.Mutex
	created map[string]models.Contribution
}

func (f *fakeContributions) Create(ctx context.Context, c models.Contribution) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.created[c.CheckoutRequestID]; dup {
		return false, nil
	}
	f.created[c.CheckoutRequestID] = c
	return true, nil
}

func (f *fakeContributions) GetByProjectID(ctx context.Context, projectID string) ([]models.Contribution, error) {
	return nil, nil
}

type fakeTickets struct {
	mu     sync.Mutex
	issued map[string]models.Ticket
}

func (f *fakeTickets) Issue(ctx context.Context, t models.Ticket) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.issued[t.CheckoutRequestID]; ok {
		return &existing, nil
	}
	f.issued[t.CheckoutRequestID] = t
	return &t, nil
}

func (f *fakeTickets) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	return nil, fmt.Errorf("not used")
}

// --- harness ---

type harness struct {
	engine   *Engine
	flows    *Flows
	gateway  *fakeGateway
	sessions *memorySessions
	notifier *recordingNotifier
	queue    *recordingQueue
	members  *fakeMembers
	recharge *fakeRecharge
	projects *fakeProjects
	tickets  *fakeTickets
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gateway:  &fakeGateway{},
		sessions: newMemorySessions(),
		notifier: &recordingNotifier{},
		queue:    &recordingQueue{},
		members:  newFakeMembers(),
		recharge: newFakeRecharge(),
		projects: &fakeProjects{raised: map[string]int64{}, refs: map[string]bool{}},
		tickets:  &fakeTickets{issued: map[string]models.Ticket{}},
	}

	engine, err := NewEngine(EngineDeps{
		Gateway:  h.gateway,
		Sessions: h.sessions,
		Notifier: h.notifier,
		Tasks:    h.queue,
		Poller: PollerConfig{
			PollInterval:  2 * time.Millisecond,
			TickInterval:  time.Millisecond,
			SlowThreshold: time.Hour,
			CheckTimeout:  time.Second,
		},
		ReconcileDelay: time.Minute,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)
	h.engine = engine

	flows, err := NewFlows(FlowDeps{
		Engine:        engine,
		Members:       h.members,
		Recharge:      h.recharge,
		Projects:      h.projects,
		Contributions: &fakeContributions{created: map[string]models.Contribution{}},
		Tickets:       h.tickets,
		Notifier:      h.notifier,
		Limits:        Limits{MinContribution: 10, MinWalletRecharge: 10, MinTicket: 1, MinRechargeLink: 1},
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	h.flows = flows

	t.Cleanup(func() { engine.Shutdown(context.Background()) })
	return h
}

// waitSettled waits until the stored session reached a terminal state and tracking ended.
func (h *harness) waitSettled(t *testing.T, id string) models.PaymentSession {
	t.Helper()
	var s models.PaymentSession
	require.Eventually(t, func() bool {
		var ok bool
		s, ok = h.sessions.stored(id)
		_, live := h.engine.registry.Get(id)
		return ok && s.IsTerminal() && !live
	}, 2*time.Second, time.Millisecond)
	return s
}
