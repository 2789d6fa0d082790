package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/rondpoint/internal/models"
)

type UserService struct {
	userRepo models.UserRepo
	logger   *slog.Logger
	now      func() time.Time
}

func NewUserService(d Deps) *UserService {
	d = d.withDefaults()
	return &UserService{
		userRepo: d.Store,
		logger:   d.Logger,
		now:      d.Now,
	}
}

// Resolve maps a verified identity to its user record, provisioning the
// user on first sight. Two concurrent first requests race on the unique
// external id; the loser reads the winner's row.
func (us *UserService) Resolve(ctx context.Context, id *models.Identity) (*models.User, error) {
	const op = "services.UserService.Resolve"

	if id == nil || id.Subject == "" {
		return nil, models.ErrUnauthenticated
	}
	u, err := us.userRepo.GetUserByExternalID(ctx, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err = us.userRepo.CreateUser(ctx, models.NewUserFromIdentity(id, us.now()))
	if errors.Is(err, models.ErrConflict) {
		u, err = us.userRepo.GetUserByExternalID(ctx, id.Subject)
		if errors.Is(err, models.ErrNotFound) {
			// the email belongs to a row linked to another identity
			us.logger.Warn("identity email already linked", "op", op, "subject", id.Subject, "email", id.Email)
			return nil, fmt.Errorf("email is linked to another account: %w", models.ErrForbidden)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	us.logger.Info("user provisioned", "op", op, "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (us *UserService) Profile(ctx context.Context, actor *models.Actor) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return us.userRepo.GetUserByID(ctx, actor.UserID)
}

func (us *UserService) UpdateProfile(ctx context.Context, actor *models.Actor, update *models.ProfileUpdate) (*models.User, error) {
	const op = "services.UserService.UpdateProfile"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, models.NewFieldError("body", "no fields to update")
	}
	u, err := us.userRepo.UpdateUserFields(ctx, actor.UserID, fields, us.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	us.logger.Info("profile updated", "op", op, "user_id", actor.UserID)
	return u, nil
}

// CancelPremium stops renewal. Premium stays active until it expires.
func (us *UserService) CancelPremium(ctx context.Context, actor *models.Actor) (*models.User, error) {
	const op = "services.UserService.CancelPremium"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	u, err := us.userRepo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsPremiumActive(us.now()) {
		return nil, models.NewFieldError("premium", "no active premium subscription")
	}
	u, err = us.userRepo.UpdateUserFields(ctx, actor.UserID, map[string]interface{}{"premium_auto_renew": false}, us.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	us.logger.Info("premium auto-renew cancelled", "op", op, "user_id", actor.UserID)
	return u, nil
}
