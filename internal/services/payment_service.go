package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
)

type PaymentService struct {
	effects
	payments      models.PaymentRepo
	users         models.UserRepo
	gateway       payments.Gateway
	webhookSecret string
	now           func() time.Time
}

func NewPaymentService(d Deps) *PaymentService {
	d = d.withDefaults()
	return &PaymentService{
		effects:       newEffects(d),
		payments:      d.Docs,
		users:         d.Store,
		gateway:       d.Gateway,
		webhookSecret: d.WebhookSecret,
		now:           d.Now,
	}
}

// PaymentResult is a stored payment plus the gateway's instructions for the payer.
type PaymentResult struct {
	Payment *models.Payment `json:"payment"`
	Message string          `json:"message"`
}

func (ps *PaymentService) Methods() []payments.Method {
	return ps.gateway.Methods()
}

func (ps *PaymentService) Initiate(ctx context.Context, actor *models.Actor, in *models.PaymentInput) (*PaymentResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return ps.charge(ctx, actor, &models.Payment{
		Amount:      in.Amount,
		Method:      models.PaymentMethod(in.PaymentMethod),
		PhoneNumber: in.PhoneNumber,
		Description: in.Description,
		Purpose:     models.PurposeGeneral,
	})
}

// Upgrade buys a premium plan. Premium is granted when the charge completes,
// immediately or later through Verify or the webhook.
func (ps *PaymentService) Upgrade(ctx context.Context, actor *models.Actor, in *models.UpgradeInput) (*PaymentResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := ps.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if u.IsPremiumActive(ps.now()) {
		return nil, models.NewFieldError("plan", "user is already premium")
	}
	plan := models.Plans[in.Plan]
	return ps.charge(ctx, actor, &models.Payment{
		Amount:      plan.Price,
		Method:      models.PaymentMethod(in.PaymentMethod),
		PhoneNumber: in.PhoneNumber,
		Description: fmt.Sprintf("Rond-point Express premium (%s)", plan.Name),
		Purpose:     models.PurposePremium,
		Plan:        plan.Name,
	})
}

// charge runs p through the gateway, stores it as pending and settles it
// right away when the gateway already has an outcome.
func (ps *PaymentService) charge(ctx context.Context, actor *models.Actor, p *models.Payment) (*PaymentResult, error) {
	const op = "services.PaymentService.charge"

	now := ps.now()
	p.Reference = helpers.NewPaymentReference(now)
	p.UserID = actor.UserID.String()
	p.Currency = models.Currency
	p.Status = models.PaymentPending
	p.CreatedAt = now
	p.UpdatedAt = now

	receipt, err := ps.gateway.Charge(ctx, payments.ChargeRequest{
		Reference:   p.Reference,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      p.Method,
		PhoneNumber: p.PhoneNumber,
		Description: p.Description,
	})
	if err != nil {
		ps.metrics.PaymentRecorded(string(p.Method), "error")
		if errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: gateway: %w", op, err)
	}
	p.GatewayRef = receipt.GatewayRef

	if err := ps.payments.CreatePayment(ctx, p); err != nil {
		ps.logger.Error("charged payment could not be stored", "op", op, "reference", p.Reference, "user_id", p.UserID, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ps.logger.Info("payment initiated", "op", op, "reference", p.Reference, "user_id", p.UserID, "amount", p.Amount, "purpose", p.Purpose)

	stored := p
	if receipt.Status != models.PaymentPending {
		if stored, err = ps.settle(ctx, p.Reference, receipt.Status, receipt.GatewayRef); err != nil {
			return nil, err
		}
	} else {
		ps.metrics.PaymentRecorded(string(p.Method), string(models.PaymentPending))
	}
	return &PaymentResult{Payment: stored, Message: receipt.Message}, nil
}

// Verify asks the gateway for the current state of a pending payment.
func (ps *PaymentService) Verify(ctx context.Context, actor *models.Actor, reference string) (*models.Payment, error) {
	const op = "services.PaymentService.Verify"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, models.NewFieldError("transaction_ref", "is required")
	}
	p, err := ps.payments.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.UserID != actor.UserID.String() && !actor.IsAdmin() {
		return nil, fmt.Errorf("payment belongs to another user: %w", models.ErrForbidden)
	}
	if p.Status != models.PaymentPending {
		return ps.creditPremium(ctx, p)
	}

	receipt, err := ps.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%s: gateway: %w", op, err)
	}
	if receipt.Status == models.PaymentPending {
		return p, nil
	}
	return ps.settle(ctx, reference, receipt.Status, receipt.GatewayRef)
}

func (ps *PaymentService) History(ctx context.Context, actor *models.Actor, page models.Pagination) ([]models.Payment, models.PageInfo, error) {
	if err := requireActor(actor); err != nil {
		return nil, models.PageInfo{}, err
	}
	if err := page.Normalize(); err != nil {
		return nil, models.PageInfo{}, err
	}
	list, total, err := ps.payments.ListPayments(ctx, actor.UserID, page)
	if err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("services.PaymentService.History: %w", err)
	}
	if list == nil {
		list = []models.Payment{}
	}
	return list, models.NewPageInfo(page, total), nil
}

// Webhook applies a signed gateway notification.
func (ps *PaymentService) Webhook(ctx context.Context, body []byte, signature string) (*models.Payment, error) {
	if !payments.VerifySignature(ps.webhookSecret, body, signature) {
		return nil, fmt.Errorf("invalid webhook signature: %w", models.ErrUnauthenticated)
	}
	var n models.WebhookNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, models.NewFieldError("body", "malformed JSON")
	}
	if err := models.ValidationError(models.Validate.Struct(&n)); err != nil {
		return nil, err
	}
	status, err := models.ParsePaymentStatus(n.Status)
	if err != nil {
		return nil, err
	}
	if status == models.PaymentPending {
		return ps.payments.GetPaymentByReference(ctx, n.TransactionRef)
	}
	return ps.settle(ctx, n.TransactionRef, status, n.GatewayRef)
}

// settle moves a pending payment to its final status. A lost race returns the
// stored row, still crediting premium if the winner failed to.
func (ps *PaymentService) settle(ctx context.Context, reference string, to models.PaymentStatus, gatewayRef string) (*models.Payment, error) {
	const op = "services.PaymentService.settle"

	p, err := ps.payments.TransitionPayment(ctx, reference, to, gatewayRef, ps.now())
	if errors.Is(err, models.ErrConflict) {
		if p, err = ps.payments.GetPaymentByReference(ctx, reference); err != nil {
			return nil, err
		}
		return ps.creditPremium(ctx, p)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ps.logger.Info("payment settled", "op", op, "reference", reference, "status", p.Status)
	ps.metrics.PaymentRecorded(string(p.Method), string(p.Status))
	return ps.creditPremium(ctx, p)
}

// creditPremium activates premium for a completed premium payment that has
// not been credited yet. The payment's marker is claimed first and released
// again when activation fails, so a later Verify or webhook retries it.
func (ps *PaymentService) creditPremium(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	const op = "services.PaymentService.creditPremium"

	if !p.PremiumOwed() {
		return p, nil
	}
	err := ps.payments.SetPremiumApplied(ctx, p.Reference, true, ps.now())
	if errors.Is(err, models.ErrConflict) {
		return ps.payments.GetPaymentByReference(ctx, p.Reference)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ps.activatePremium(ctx, p); err != nil {
		if relErr := ps.payments.SetPremiumApplied(ctx, p.Reference, false, ps.now()); relErr != nil {
			ps.logger.Error("premium marker could not be released", "op", op, "reference", p.Reference, "error", relErr)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.PremiumApplied = true
	return p, nil
}

// activatePremium extends an active subscription from its current expiry,
// otherwise starts a new one now.
func (ps *PaymentService) activatePremium(ctx context.Context, p *models.Payment) error {
	const op = "services.PaymentService.activatePremium"

	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return fmt.Errorf("%s: payment %s has a malformed user id: %w", op, p.Reference, err)
	}
	plan, ok := models.Plans[p.Plan]
	if !ok {
		return fmt.Errorf("%s: payment %s has unknown plan %q", op, p.Reference, p.Plan)
	}
	u, err := ps.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	now := ps.now()
	start := now
	if u.IsPremiumActive(now) && u.PremiumExpiresAt != nil {
		start = *u.PremiumExpiresAt
	}
	u, err = ps.users.UpdateUserFields(ctx, userID, map[string]interface{}{
		"is_premium":         true,
		"premium_expires_at": plan.ExpiryFrom(start),
		"premium_plan":       plan.Name,
		"premium_auto_renew": true,
	}, now)
	if err != nil {
		return err
	}

	ps.logger.Info("premium activated", "op", op, "user_id", userID, "plan", plan.Name, "expires_at", u.PremiumExpiresAt)
	ps.publish(ctx, op, messaging.TopicPremiumGranted, u)
	return nil
}
