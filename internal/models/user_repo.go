package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type UserRepo interface {
	// CreateUser returns ErrConflict when the email or external id is taken.
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)
	UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*User, error)
	ListUsers(ctx context.Context, q *UserQuery) ([]User, int64, error)
	CountUsers(ctx context.Context, since, now time.Time) (*UserCounts, error)
}

func (su *SupabaseRepo) CreateUser(ctx context.Context, u *User) (*User, error) {
	raw, _, err := su.supabaseClient.From(UsersTable).
		Insert(u, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", supabaseError(err))
	}
	return firstUser(raw)
}

func (su *SupabaseRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("invalid UUID: %w", ErrNotFound)
	}
	return su.getUserBy("id", id.String())
}

func (su *SupabaseRepo) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	return su.getUserBy("external_id", externalID)
}

func (su *SupabaseRepo) getUserBy(column, value string) (*User, error) {
	raw, status, err := su.supabaseClient.From(UsersTable).
		Select("*", "", false).
		Eq(column, value).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d err=%w", status, supabaseError(err))
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, supabaseError(err))
	}
	return firstUser(raw)
}

func (su *SupabaseRepo) UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*User, error) {
	if err := checkUserFields(fields); err != nil {
		return nil, err
	}
	update := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		update[k] = v
	}
	update["updated_at"] = now.UTC()

	raw, _, err := su.supabaseClient.From(UsersTable).
		Update(update, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", supabaseError(err))
	}
	return firstUser(raw)
}

func (su *SupabaseRepo) ListUsers(ctx context.Context, q *UserQuery) ([]User, int64, error) {
	fb := su.supabaseClient.From(UsersTable).Select("*", "exact", false)
	if q.Role != "" {
		fb = fb.Eq("role", string(q.Role))
	}
	if q.IsPremium != nil {
		fb = fb.Eq("is_premium", strconv.FormatBool(*q.IsPremium))
	}
	if term := postgrestTerm(q.Search); term != "" {
		fb = fb.Or(fmt.Sprintf("name.ilike.*%[1]s*,email.ilike.*%[1]s*", term), "")
	}
	offset := q.Page.Offset()
	raw, count, err := fb.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Range(offset, offset+q.Page.Limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", supabaseError(err))
	}
	users := []User{}
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal users: %v", err)
	}
	return users, count, nil
}

func (su *SupabaseRepo) CountUsers(ctx context.Context, since, now time.Time) (*UserCounts, error) {
	head := func() *postgrest.FilterBuilder {
		return su.supabaseClient.From(UsersTable).Select("id", "exact", true)
	}
	c := &UserCounts{ByRole: make(map[Role]int64)}

	var err error
	if _, c.Total, err = head().Execute(); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if _, c.Premium, err = head().
		Eq("is_premium", "true").
		Or("premium_expires_at.is.null,premium_expires_at.gt."+formatTimestamp(now), "").
		Execute(); err != nil {
		return nil, fmt.Errorf("failed to count premium users: %w", err)
	}
	if _, c.CreatedSince, err = head().Gte("created_at", formatTimestamp(since)).Execute(); err != nil {
		return nil, fmt.Errorf("failed to count new users: %w", err)
	}
	for _, r := range []Role{RoleVisitor, RoleOrganizer, RoleAdmin} {
		_, n, err := head().Eq("role", string(r)).Execute()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s users: %w", r, err)
		}
		c.ByRole[r] = n
	}
	return c, nil
}

func firstUser(raw []byte) (*User, error) {
	// Supabase returns an array even for single results
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user rows: %v", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return &users[0], nil
}
