package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func upgradeInput(plan string) *models.UpgradeInput {
	return &models.UpgradeInput{Plan: plan, PaymentMethod: "MTN", PhoneNumber: "+237 650 000 000"}
}

func TestUpgradeActivatesPremium(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notifier := new(mockNotifier)
	notifier.On("Publish", messaging.TopicPremiumGranted, mock.AnythingOfType("*models.User")).Return(nil).Once()
	env.deps.Notifier = notifier
	svc := NewPaymentService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	res, err := svc.Upgrade(ctx, actorOf(u), upgradeInput("Monthly"))
	require.NoError(t, err)
	p := res.Payment
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, models.PurposePremium, p.Purpose)
	assert.Equal(t, "monthly", p.Plan)
	assert.Equal(t, int64(25000), p.Amount)
	assert.Equal(t, models.Currency, p.Currency)
	assert.Regexp(t, `^RPE_\d+_[0-9A-F]{9}$`, p.Reference)
	assert.Contains(t, res.Message, "MTN")

	got, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPremiumActive(testNow))
	require.NotNil(t, got.PremiumExpiresAt)
	assert.Equal(t, testNow.AddDate(0, 1, 0), *got.PremiumExpiresAt)
	assert.Equal(t, "monthly", got.PremiumPlan)
	assert.True(t, got.PremiumAutoRenew)

	_, err = svc.Upgrade(ctx, actorOf(got), upgradeInput("yearly"))
	assert.True(t, errors.Is(err, models.ErrInvalidInput), "already premium")
	notifier.AssertExpectations(t)
}

func TestUpgradeRejectsUnknownPlan(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPaymentService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	_, err := svc.Upgrade(context.Background(), actorOf(u), upgradeInput("weekly"))
	var fe *models.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "plan", fe.Field)
}

func TestPendingUpgradeCompletesOnVerify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deps.Gateway = payments.NewSandbox(models.PaymentPending)
	svc := NewPaymentService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)
	stranger := env.seedUser(t, models.RoleOrganizer)

	res, err := svc.Upgrade(ctx, actorOf(u), upgradeInput("yearly"))
	require.NoError(t, err)
	ref := res.Payment.Reference
	assert.Equal(t, models.PaymentPending, res.Payment.Status)

	got, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium, "premium waits for the payment to complete")

	_, err = svc.Verify(ctx, actorOf(stranger), ref)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	p, err := svc.Verify(ctx, actorOf(u), ref)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)

	got, err = env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(1, 0, 0), *got.PremiumExpiresAt)

	_, err = svc.Verify(ctx, actorOf(u), "RPE_0_MISSING00")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestWebhookSettlesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deps.Gateway = payments.NewSandbox(models.PaymentPending)
	env.deps.WebhookSecret = testWebhookSecret
	svc := NewPaymentService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	res, err := svc.Upgrade(ctx, actorOf(u), upgradeInput("monthly"))
	require.NoError(t, err)
	body := []byte(fmt.Sprintf(`{"transaction_ref":%q,"status":"completed","gateway_ref":"GW-42"}`, res.Payment.Reference))

	_, err = svc.Webhook(ctx, body, "deadbeef")
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))

	p, err := svc.Webhook(ctx, body, payments.Sign(testWebhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, "GW-42", p.GatewayRef)

	first, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, first.PremiumExpiresAt)

	// a replayed notification does not extend premium a second time
	p, err = svc.Webhook(ctx, body, "sha256="+payments.Sign(testWebhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	again, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.PremiumExpiresAt, *again.PremiumExpiresAt)
}

// failingUserStore fails the next n user updates.
type failingUserStore struct {
	*models.MemoryRepo
	fail int
}

func (s *failingUserStore) UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*models.User, error) {
	if s.fail > 0 {
		s.fail--
		return nil, errors.New("db down")
	}
	return s.MemoryRepo.UpdateUserFields(ctx, id, fields, now)
}

func TestPremiumIsCreditedOnRetryAfterFailedActivation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	store := &failingUserStore{MemoryRepo: env.repo}
	env.deps.Store = store
	env.deps.Gateway = payments.NewSandbox(models.PaymentPending)
	env.deps.WebhookSecret = testWebhookSecret
	svc := NewPaymentService(env.deps)

	t.Run("verify", func(t *testing.T) {
		u := env.seedUser(t, models.RoleOrganizer)
		res, err := svc.Upgrade(ctx, actorOf(u), upgradeInput("monthly"))
		require.NoError(t, err)
		ref := res.Payment.Reference

		store.fail = 1
		_, err = svc.Verify(ctx, actorOf(u), ref)
		require.Error(t, err)

		stored, err := env.repo.GetPaymentByReference(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, stored.Status)
		assert.True(t, stored.PremiumOwed())

		p, err := svc.Verify(ctx, actorOf(u), ref)
		require.NoError(t, err)
		assert.True(t, p.PremiumApplied)
		got, err := env.repo.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPremiumActive(testNow))
		assert.Equal(t, testNow.AddDate(0, 1, 0), *got.PremiumExpiresAt)

		// once credited, further checks leave the expiry alone
		_, err = svc.Verify(ctx, actorOf(u), ref)
		require.NoError(t, err)
		again, err := env.repo.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, *got.PremiumExpiresAt, *again.PremiumExpiresAt)
	})

	t.Run("webhook", func(t *testing.T) {
		u := env.seedUser(t, models.RoleOrganizer)
		res, err := svc.Upgrade(ctx, actorOf(u), upgradeInput("yearly"))
		require.NoError(t, err)
		body := []byte(fmt.Sprintf(`{"transaction_ref":%q,"status":"completed"}`, res.Payment.Reference))
		sig := payments.Sign(testWebhookSecret, body)

		store.fail = 1
		_, err = svc.Webhook(ctx, body, sig)
		require.Error(t, err)

		p, err := svc.Webhook(ctx, body, sig)
		require.NoError(t, err)
		assert.True(t, p.PremiumApplied)
		got, err := env.repo.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, testNow.AddDate(1, 0, 0), *got.PremiumExpiresAt)
	})
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deps.WebhookSecret = testWebhookSecret
	svc := NewPaymentService(env.deps)

	tests := []struct {
		name string
		body string
		want error
	}{
		{"malformed", `{"transaction_ref":`, models.ErrInvalidInput},
		{"missing ref", `{"status":"completed"}`, models.ErrInvalidInput},
		{"unknown status", `{"transaction_ref":"RPE_1_A","status":"refunded"}`, models.ErrInvalidInput},
		{"unknown ref", `{"transaction_ref":"RPE_1_A","status":"failed"}`, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			_, err := svc.Webhook(ctx, body, payments.Sign(testWebhookSecret, body))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestWebhookWithoutSecretIsRejected(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPaymentService(env.deps)
	body := []byte(`{"transaction_ref":"RPE_1_A","status":"completed"}`)

	_, err := svc.Webhook(context.Background(), body, payments.Sign("", body))
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))
}

func TestInitiateAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewPaymentService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	_, err := svc.Initiate(ctx, actorOf(u), &models.PaymentInput{Amount: 0, PaymentMethod: "mtn", PhoneNumber: "650000000"})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = svc.Initiate(ctx, actorOf(u), &models.PaymentInput{Amount: 5000, PaymentMethod: "wave", PhoneNumber: "650000000"})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	res, err := svc.Initiate(ctx, actorOf(u), &models.PaymentInput{Amount: 5000, PaymentMethod: "orange", PhoneNumber: "237 690 000 000", Description: "Ticket"})
	require.NoError(t, err)
	assert.Equal(t, models.PurposeGeneral, res.Payment.Purpose)
	assert.Equal(t, "237690000000", res.Payment.PhoneNumber)

	got, err := env.repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium, "general payments never grant premium")

	list, info, err := svc.History(ctx, actorOf(u), models.Pagination{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Payment.Reference, list[0].Reference)
	assert.Equal(t, int64(1), info.Total)

	list, _, err = svc.History(ctx, actorOf(env.seedUser(t, models.RoleVisitor)), models.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMethods(t *testing.T) {
	svc := NewPaymentService(newTestEnv(t).deps)
	methods := svc.Methods()
	require.Len(t, methods, 2)
	assert.Equal(t, models.MethodMTN, methods[0].ID)
	assert.Equal(t, models.MethodOrange, methods[1].ID)
}
