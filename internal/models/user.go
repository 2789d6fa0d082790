package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FreeEventQuota is how many events a non-premium organizer may hold.
const FreeEventQuota = 3

type User struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ExternalID       string     `db:"external_id" json:"external_id"`
	Email            string     `db:"email" json:"email"`
	Name             string     `db:"name" json:"name"`
	Role             Role       `db:"role" json:"role"`
	Bio              string     `db:"bio" json:"bio"`
	Website          string     `db:"website" json:"website"`
	ContactEmail     string     `db:"contact_email" json:"contact_email"`
	PhoneNumber      string     `db:"phone_number" json:"phone_number"`
	IsPremium        bool       `db:"is_premium" json:"is_premium"`
	PremiumExpiresAt *time.Time `db:"premium_expires_at" json:"premium_expires_at,omitempty"`
	PremiumPlan      string     `db:"premium_plan" json:"premium_plan,omitempty"`
	PremiumAutoRenew bool       `db:"premium_auto_renew" json:"premium_auto_renew"`
	EventCount       int        `db:"event_count" json:"event_count"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsPremiumActive applies lazy expiry: a past expiry wins over the stored flag.
func (u *User) IsPremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	return u.PremiumExpiresAt == nil || u.PremiumExpiresAt.After(now)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanCreateEvent is the quota check. It has no side effects; stores enforce
// the same predicate atomically when the event is inserted.
func CanCreateEvent(u *User, now time.Time) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	if u.IsPremiumActive(now) {
		return true
	}
	return u.EventCount < FreeEventQuota
}

// CanPublish reports whether the role may create events at all.
func CanPublish(r Role) bool {
	return r == RoleOrganizer || r == RoleAdmin
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID  uuid.UUID
	Role    Role
	Premium bool
	IP      string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

func (a *Actor) Owns(e *Event) bool {
	return a != nil && a.UserID == e.OrganizerID
}

func NewActor(u *User, now time.Time) *Actor {
	return &Actor{UserID: u.ID, Role: u.Role, Premium: u.IsPremiumActive(now)}
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// NewUserFromIdentity provisions a first-seen identity as an organizer.
func NewUserFromIdentity(id *Identity, now time.Time) *User {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(id.Email, "@", 2)[0]
	}
	return &User{
		ID:         uuid.New(),
		ExternalID: id.Subject,
		Email:      strings.ToLower(strings.TrimSpace(id.Email)),
		Name:       name,
		Role:       RoleOrganizer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ProfileUpdate is what a user may change on their own record.
type ProfileUpdate struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio          *string `json:"bio" validate:"omitempty,max=500"`
	Website      *string `json:"website" validate:"omitempty,httpurl"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	PhoneNumber  *string `json:"phone_number" validate:"omitempty,cm_phone"`
}

func (p *ProfileUpdate) Validate() error {
	if p.Name != nil {
		*p.Name = strings.TrimSpace(*p.Name)
		if *p.Name == "" {
			return NewFieldError("name", "is required")
		}
	}
	return ValidationError(Validate.Struct(p))
}

func (p *ProfileUpdate) Fields() map[string]interface{} {
	f := make(map[string]interface{})
	if p.Name != nil {
		f["name"] = *p.Name
	}
	if p.Bio != nil {
		f["bio"] = *p.Bio
	}
	if p.Website != nil {
		f["website"] = *p.Website
	}
	if p.ContactEmail != nil {
		f["contact_email"] = strings.ToLower(*p.ContactEmail)
	}
	if p.PhoneNumber != nil {
		f["phone_number"] = *p.PhoneNumber
	}
	return f
}

// AdminUserUpdate is the admin-only update of entitlement fields.
type AdminUserUpdate struct {
	Role             *string    `json:"role"`
	IsPremium        *bool      `json:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at"`
}

func (p *AdminUserUpdate) Fields() (map[string]interface{}, error) {
	f := make(map[string]interface{})
	if p.Role != nil {
		r, err := ParseRole(*p.Role)
		if err != nil {
			return nil, err
		}
		f["role"] = r
	}
	if p.IsPremium != nil {
		f["is_premium"] = *p.IsPremium
	}
	if p.PremiumExpiresAt != nil {
		f["premium_expires_at"] = p.PremiumExpiresAt.UTC()
	}
	if len(f) == 0 {
		return nil, NewFieldError("body", "no fields to update")
	}
	return f, nil
}

var userUpdatable = map[string]bool{
	"name":               true,
	"bio":                true,
	"website":            true,
	"contact_email":      true,
	"phone_number":       true,
	"role":               true,
	"is_premium":         true,
	"premium_expires_at": true,
	"premium_plan":       true,
	"premium_auto_renew": true,
}

func checkUserFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return NewFieldError("body", "no fields to update")
	}
	for k := range fields {
		if !userUpdatable[k] {
			return NewFieldError(k, "is not allowed for update")
		}
	}
	return nil
}

// UserQuery lists users for the admin console.
type UserQuery struct {
	Role      Role
	IsPremium *bool
	Search    string
	Page      Pagination
}

func (q *UserQuery) Validate() error {
	q.Search = strings.TrimSpace(q.Search)
	if len(q.Search) > maxSearchLen {
		return NewFieldError("search", "is too long")
	}
	if q.Role != "" {
		r, err := ParseRole(string(q.Role))
		if err != nil {
			return err
		}
		q.Role = r
	}
	return q.Page.Normalize()
}

// UserListParams is the query-string form of UserQuery.
type UserListParams struct {
	Role      string `form:"role"`
	IsPremium string `form:"isPremium"`
	Search    string `form:"search"`
	Page      string `form:"page"`
	Limit     string `form:"limit"`
}

func (p UserListParams) Query() (UserQuery, error) {
	q := UserQuery{Role: Role(strings.TrimSpace(p.Role)), Search: p.Search}
	if s := strings.TrimSpace(p.IsPremium); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, NewFieldError("isPremium", "must be true or false")
		}
		q.IsPremium = &b
	}
	var err error
	if q.Page.Page, err = parseIntParam("page", p.Page); err != nil {
		return q, err
	}
	if q.Page.Limit, err = parseIntParam("limit", p.Limit); err != nil {
		return q, err
	}
	return q, nil
}

// MatchUser evaluates q against one user for stores without query push-down.
// IsPremium compares the stored flag, expired or not.
func MatchUser(u *User, q *UserQuery) bool {
	if q.Role != "" && u.Role != q.Role {
		return false
	}
	if q.IsPremium != nil && u.IsPremium != *q.IsPremium {
		return false
	}
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !containsFold(u.Name, term) && !containsFold(u.Email, term) {
			return false
		}
	}
	return true
}

type UserCounts struct {
	Total        int64          `json:"total"`
	Premium      int64          `json:"premium"`
	CreatedSince int64          `json:"created_since"`
	ByRole       map[Role]int64 `json:"by_role"`
}
