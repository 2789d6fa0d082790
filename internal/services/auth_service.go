package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

// AuthClient is the part of the GoTrue client the proxy uses.
type AuthClient interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	RefreshToken(refreshToken string) (*types.TokenResponse, error)
}

type SignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Tokens is the session handed back to the client. It is empty after a
// signup that still awaits email confirmation.
type Tokens struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type,omitempty"`
	ExpiresIn    int          `json:"expires_in,omitempty"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	User         *models.User `json:"user,omitempty"`
}

type AuthService struct {
	client AuthClient
	users  *UserService
	logger *slog.Logger
}

func NewAuthService(client AuthClient, users *UserService, d Deps) *AuthService {
	d = d.withDefaults()
	return &AuthService{client: client, users: users, logger: d.Logger}
}

func (as *AuthService) Signup(ctx context.Context, in *SignupInput) (*Tokens, error) {
	const op = "services.AuthService.Signup"

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := models.ValidationError(models.Validate.Struct(in)); err != nil {
		return nil, err
	}
	if !helpers.IsPasswordStrong(in.Password) {
		return nil, models.NewFieldError("password", "must mix upper and lower case letters with a digit and one of @$!%*?&")
	}

	req := types.SignupRequest{Email: in.Email, Password: in.Password}
	if in.Name != "" {
		req.Data = map[string]interface{}{"full_name": in.Name}
	}
	res, err := as.client.Signup(req)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already registered") {
			return nil, fmt.Errorf("email already in use: %w", models.ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	authUser := res.User
	if authUser.ID == uuid.Nil {
		authUser = res.Session.User
	}
	u, err := as.users.Resolve(ctx, &models.Identity{Subject: authUser.ID.String(), Email: authUser.Email, Name: in.Name})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	as.logger.Info("user signed up", "op", op, "user_id", u.ID)

	t := sessionTokens(&res.Session)
	t.User = u
	return t, nil
}

func (as *AuthService) Login(ctx context.Context, in *LoginInput) (*Tokens, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := models.ValidationError(models.Validate.Struct(in)); err != nil {
		return nil, err
	}
	res, err := as.client.SignInWithEmailPassword(in.Email, in.Password)
	if err != nil {
		as.logger.Warn("login failed", "op", "services.AuthService.Login", "email", in.Email, "error", err)
		return nil, fmt.Errorf("invalid email or password: %w", models.ErrUnauthenticated)
	}
	return as.withUser(ctx, res)
}

func (as *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, models.NewFieldError("refresh_token", "is required")
	}
	res, err := as.client.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token rejected: %w", models.ErrUnauthenticated)
	}
	return as.withUser(ctx, res)
}

func (as *AuthService) withUser(ctx context.Context, res *types.TokenResponse) (*Tokens, error) {
	t := sessionTokens(&res.Session)
	su := res.Session.User
	u, err := as.users.Resolve(ctx, &models.Identity{Subject: su.ID.String(), Email: su.Email})
	if err != nil {
		return nil, err
	}
	t.User = u
	return t, nil
}

func sessionTokens(s *types.Session) *Tokens {
	return &Tokens{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
	}
}
