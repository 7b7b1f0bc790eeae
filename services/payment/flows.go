package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"harambee/config"
	contributionRepo "harambee/database/repository/contribution"
	memberRepo "harambee/database/repository/member"
	projectRepo "harambee/database/repository/project"
	ticketRepo "harambee/database/repository/ticket"
	"harambee/models"
	"harambee/services/member"
	"harambee/services/notification"
	"harambee/services/recharge"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const anonymousDonor = "Anonymous"

// --- Inputs ---

type ContributionInput struct {
	ProjectID string `json:"projectId" binding:"required"`
	Amount    int64  `json:"amount"`
	Phone     string `json:"phone"`
	DonorName string `json:"donorName"`
}

type MandatoryFeeInput struct {
	Phone string `json:"phone"`
}

type WalletRechargeInput struct {
	Amount int64  `json:"amount"`
	Phone  string `json:"phone"`
}

type TicketInput struct {
	MMID      string `json:"mmid" binding:"required"`
	BuyerName string `json:"buyerName"`
	Amount    int64  `json:"amount"`
	Phone     string `json:"phone"`
}

// RechargeLinkInput is posted by unauthenticated payers.
type RechargeLinkInput struct {
	Token     string `json:"-"`
	DonorName string `json:"donor_name"`
	Amount    int64  `json:"amount"`
	Phone     string `json:"phone"`
}

// Limits are the advertised minimum amounts per context.
type Limits struct {
	MinContribution   int64
	MinWalletRecharge int64
	MinTicket         int64
	MinRechargeLink   int64
}

func LimitsFromApp() Limits {
	c := config.AppConfig
	return Limits{
		MinContribution:   c.MinContributionAmount,
		MinWalletRecharge: c.MinWalletRechargeAmount,
		MinTicket:         c.MinTicketAmount,
		MinRechargeLink:   c.MinRechargeLinkAmount,
	}
}

type FlowDeps struct {
	Engine        *Engine
	Members       member.MemberService
	Recharge      recharge.RechargeService
	Projects      projectRepo.ProjectRepository
	Contributions contributionRepo.ContributionRepository
	Tickets       ticketRepo.TicketRepository
	Notifier      notification.NotificationService
	Limits        Limits
	Logger        *zap.Logger
}

// Flows holds one controller per purchase context.
type Flows struct {
	Contribution   *FlowController[ContributionInput]
	MandatoryFee   *FlowController[MandatoryFeeInput]
	WalletRecharge *FlowController[WalletRechargeInput]
	Ticket         *FlowController[TicketInput]
	RechargeLink   *FlowController[RechargeLinkInput]
}

type flowSet struct {
	FlowDeps
	now func() time.Time
}

// NewFlows builds the five controllers and registers their completion handlers on the engine.
func NewFlows(deps FlowDeps) (*Flows, error) {
	if deps.Engine == nil || deps.Members == nil || deps.Recharge == nil || deps.Projects == nil ||
		deps.Contributions == nil || deps.Tickets == nil || deps.Notifier == nil || deps.Logger == nil {
		return nil, errors.New("payment flows initialization error: missing dependency")
	}
	fs := &flowSet{FlowDeps: deps, now: time.Now}

	var (
		flows Flows
		err   error
	)
	if flows.Contribution, err = NewFlowController[ContributionInput](deps.Engine, models.PurposeProject, fs.planContribution,
		PurposeHandler{Complete: fs.completeContribution}); err != nil {
		return nil, err
	}
	if flows.MandatoryFee, err = NewFlowController[MandatoryFeeInput](deps.Engine, models.PurposeMandatoryFee, fs.planMandatoryFee,
		PurposeHandler{Complete: fs.completeMandatoryFee}); err != nil {
		return nil, err
	}
	if flows.WalletRecharge, err = NewFlowController[WalletRechargeInput](deps.Engine, models.PurposeWalletRecharge, fs.planWalletRecharge,
		PurposeHandler{Complete: fs.completeWalletRecharge}); err != nil {
		return nil, err
	}
	if flows.Ticket, err = NewFlowController[TicketInput](deps.Engine, models.PurposeTicket, fs.planTicket,
		PurposeHandler{Complete: fs.completeTicket}); err != nil {
		return nil, err
	}
	if flows.RechargeLink, err = NewFlowController[RechargeLinkInput](deps.Engine, models.PurposeRechargeLink, fs.planRechargeLink,
		PurposeHandler{
			Started:  fs.startRechargeLink,
			Complete: fs.completeRechargeLink,
			Abandon:  fs.abandonRechargeLink,
		}); err != nil {
		return nil, err
	}
	return &flows, nil
}

// settlementRef identifies a settlement for idempotent writes. Query-only resolutions carry no receipt.
func settlementRef(s *models.PaymentSession) string {
	if s.MpesaReceiptNumber != "" {
		return s.MpesaReceiptNumber
	}
	return s.CheckoutRequestID
}

func (fs *flowSet) requireMember(ctx context.Context, memberID string) (*models.Member, error) {
	m, err := fs.Members.GetMember(ctx, memberID)
	if errors.Is(err, memberRepo.ErrMemberNotFound) {
		return nil, ErrTargetNotFound
	}
	return m, err
}

// --- Project contribution ---

func (fs *flowSet) planContribution(ctx context.Context, ownerID string, in ContributionInput) (Plan, error) {
	project, err := fs.Projects.GetByID(ctx, in.ProjectID)
	if errors.Is(err, projectRepo.ErrProjectNotFound) {
		return Plan{}, ErrTargetNotFound
	}
	if err != nil {
		return Plan{}, fmt.Errorf("planContribution: %w", err)
	}
	if !project.Active {
		return Plan{}, NewValidationError("projectId", "This project is no longer accepting contributions.")
	}

	donor := strings.TrimSpace(in.DonorName)
	if donor == "" {
		donor = anonymousDonor
	}
	return Plan{
		Amount:    in.Amount,
		Phone:     in.Phone,
		MinAmount: fs.Limits.MinContribution,
		Purpose: models.PurposeContext{
			Kind:         models.PurposeProject,
			MemberID:     ownerID,
			ProjectID:    project.ID,
			ProjectTitle: project.Title,
			DonorName:    donor,
		},
		AccountReference: project.ID,
		Description:      "Contribution",
	}, nil
}

func (fs *flowSet) completeContribution(ctx context.Context, s *models.PaymentSession) (map[string]string, error) {
	p := s.Purpose
	created, err := fs.Contributions.Create(ctx, models.Contribution{
		ID:                 uuid.New().String(),
		ProjectID:          p.ProjectID,
		MemberID:           p.MemberID,
		DonorName:          p.DonorName,
		Amount:             s.Amount,
		PhoneNumber:        s.PhoneNumber,
		CheckoutRequestID:  s.CheckoutRequestID,
		MpesaReceiptNumber: s.MpesaReceiptNumber,
		CreatedAt:          fs.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("completeContribution: %w", err)
	}
	if err := fs.Projects.AddRaised(ctx, p.ProjectID, s.Amount, settlementRef(s)); err != nil {
		return nil, fmt.Errorf("completeContribution: %w", err)
	}
	if !created {
		fs.Logger.Info("contribution already recorded", zap.String("checkoutRequestId", s.CheckoutRequestID))
	}
	return map[string]string{
		"projectId":    p.ProjectID,
		"projectTitle": p.ProjectTitle,
	}, nil
}

// --- Mandatory fee ---

func (fs *flowSet) planMandatoryFee(ctx context.Context, ownerID string, in MandatoryFeeInput) (Plan, error) {
	m, err := fs.requireMember(ctx, ownerID)
	if err != nil {
		return Plan{}, err
	}
	term := fs.Members.CurrentTerm()
	if m.HasPaidTerm(term) {
		return Plan{}, member.ErrFeeAlreadyPaid
	}

	fee := fs.Members.FeeAmount()
	return Plan{
		Amount:    fee,
		Phone:     in.Phone,
		MinAmount: fee,
		Purpose: models.PurposeContext{
			Kind:     models.PurposeMandatoryFee,
			MemberID: m.ID,
			MMID:     m.MMID,
			Term:     term,
		},
		AccountReference: m.MMID,
		Description:      "Fee " + term,
	}, nil
}

func (fs *flowSet) completeMandatoryFee(ctx context.Context, s *models.PaymentSession) (map[string]string, error) {
	p := s.Purpose
	applied, err := fs.Members.MarkMandatoryPaid(ctx, p.MemberID, p.Term, s.Amount, settlementRef(s))
	if err != nil {
		return nil, fmt.Errorf("completeMandatoryFee: %w", err)
	}

	status, err := fs.Members.MandatoryStatus(ctx, p.MemberID)
	if err != nil {
		return nil, fmt.Errorf("completeMandatoryFee: refresh status: %w", err)
	}
	if applied && status.Paid {
		unlock := models.Notification{
			Type:  models.NotificationDashboardUnlock,
			Title: "Dashboard unlocked",
			Body:  fmt.Sprintf("Your %s membership fee is settled.", status.Term),
			Data:  map[string]any{"term": status.Term, "checkoutRequestId": s.CheckoutRequestID},
		}
		if err := fs.Notifier.NotifyMember(ctx, p.MemberID, unlock); err != nil {
			fs.Logger.Warn("dashboard unlock notification failed", zap.String("memberId", p.MemberID), zap.Error(err))
		}
	}
	return map[string]string{
		"term":          status.Term,
		"mandatoryPaid": strconv.FormatBool(status.Paid),
	}, nil
}

// --- Wallet recharge ---

func (fs *flowSet) planWalletRecharge(ctx context.Context, ownerID string, in WalletRechargeInput) (Plan, error) {
	m, err := fs.requireMember(ctx, ownerID)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Amount:    in.Amount,
		Phone:     in.Phone,
		MinAmount: fs.Limits.MinWalletRecharge,
		Purpose: models.PurposeContext{
			Kind:     models.PurposeWalletRecharge,
			MemberID: m.ID,
			MMID:     m.MMID,
			Label:    models.AccountRechargeLabel,
		},
		AccountReference: m.MMID,
		Description:      models.AccountRechargeLabel,
	}, nil
}

func (fs *flowSet) completeWalletRecharge(ctx context.Context, s *models.PaymentSession) (map[string]string, error) {
	balance, err := fs.Members.CreditWallet(ctx, s.Purpose.MemberID, s.Amount, settlementRef(s))
	if err != nil {
		return nil, fmt.Errorf("completeWalletRecharge: %w", err)
	}
	return map[string]string{"balance": strconv.FormatInt(balance, 10)}, nil
}

// --- Ticket purchase ---

func (fs *flowSet) planTicket(ctx context.Context, ownerID string, in TicketInput) (Plan, error) {
	buyer := strings.TrimSpace(in.BuyerName)
	if buyer == "" {
		return Plan{}, NewValidationError("buyerName", "Buyer name is required.")
	}
	holder, err := fs.Members.GetMemberByMMID(ctx, strings.TrimSpace(in.MMID))
	if errors.Is(err, memberRepo.ErrMemberNotFound) {
		return Plan{}, ErrTargetNotFound
	}
	if err != nil {
		return Plan{}, fmt.Errorf("planTicket: %w", err)
	}

	return Plan{
		Amount:    in.Amount,
		Phone:     in.Phone,
		MinAmount: fs.Limits.MinTicket,
		Purpose: models.PurposeContext{
			Kind:      models.PurposeTicket,
			MemberID:  ownerID,
			MMID:      holder.MMID,
			BuyerName: buyer,
		},
		AccountReference: holder.MMID,
		Description:      "Ticket",
	}, nil
}

func (fs *flowSet) completeTicket(ctx context.Context, s *models.PaymentSession) (map[string]string, error) {
	p := s.Purpose
	ticket, err := fs.Tickets.Issue(ctx, models.Ticket{
		TicketNumber:       ticketRepo.NewTicketNumber(),
		MMID:               p.MMID,
		BuyerName:          p.BuyerName,
		PhoneNumber:        s.PhoneNumber,
		Amount:             s.Amount,
		CheckoutRequestID:  s.CheckoutRequestID,
		MpesaReceiptNumber: s.MpesaReceiptNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("completeTicket: %w", err)
	}
	return map[string]string{"ticketNumber": ticket.TicketNumber}, nil
}

// --- Recharge link contribution ---

func (fs *flowSet) planRechargeLink(ctx context.Context, ownerID string, in RechargeLinkInput) (Plan, error) {
	rt, err := fs.Recharge.RequireValid(ctx, in.Token)
	if err != nil {
		return Plan{}, err
	}

	donor := strings.TrimSpace(in.DonorName)
	if donor == "" {
		donor = anonymousDonor
	}
	return Plan{
		Amount:    in.Amount,
		Phone:     in.Phone,
		MinAmount: fs.Limits.MinRechargeLink,
		Purpose: models.PurposeContext{
			Kind:      models.PurposeRechargeLink,
			Token:     rt.Token,
			DonorName: donor,
		},
		AccountReference: rt.Token,
		Description:      "Recharge",
	}, nil
}

func (fs *flowSet) startRechargeLink(ctx context.Context, s *models.PaymentSession) error {
	return fs.Recharge.AppendPending(ctx, s.Purpose.Token, s, s.Purpose.DonorName)
}

func (fs *flowSet) completeRechargeLink(ctx context.Context, s *models.PaymentSession) (map[string]string, error) {
	rt, err := fs.Recharge.Resolve(ctx, s.Purpose.Token, s.CheckoutRequestID, models.PaymentCompleted, s.MpesaReceiptNumber)
	if err != nil {
		return nil, fmt.Errorf("completeRechargeLink: %w", err)
	}

	outcome := map[string]string{
		"collectedAmount": strconv.FormatInt(rt.CollectedAmount, 10),
		"tokenStatus":     string(rt.Status),
	}
	progress, hasTarget := rt.ProgressPercentage()
	if hasTarget {
		outcome["progressPercentage"] = decimal.NewFromFloat(progress).StringFixed(2)
	}

	update := models.Notification{
		Type:  models.NotificationRechargeProgress,
		Title: "Recharge link contribution",
		Body:  fmt.Sprintf("%s sent KES %d for %s.", s.Purpose.DonorName, s.Amount, rt.RecipientLabel),
		Data:  map[string]any{"token": rt.Token, "collectedAmount": rt.CollectedAmount, "status": rt.Status},
	}
	if hasTarget {
		update.Data["progressPercentage"] = progress
	}
	if err := fs.Notifier.NotifyMember(ctx, rt.OwnerID, update); err != nil {
		fs.Logger.Warn("recharge owner notification failed", zap.String("token", rt.Token), zap.Error(err))
	}
	return outcome, nil
}

func (fs *flowSet) abandonRechargeLink(ctx context.Context, s *models.PaymentSession) error {
	_, err := fs.Recharge.Resolve(ctx, s.Purpose.Token, s.CheckoutRequestID, s.Status, "")
	return err
}
