package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

const (
	DefaultAnalyticsPeriod = 30
	MaxAnalyticsPeriod     = 365
	dashboardRecentEvents  = 5
	auditListLimit         = 100
)

// AdminService backs the moderation and back-office console.
type AdminService struct {
	effects
	store models.Store
	now   func() time.Time
}

func NewAdminService(d Deps) *AdminService {
	d = d.withDefaults()
	return &AdminService{
		effects: newEffects(d),
		store:   d.Store,
		now:     d.Now,
	}
}

// ListEvents is the moderation queue. An empty status means pending and
// "all" lifts the status filter.
func (as *AdminService) ListEvents(ctx context.Context, actor *models.Actor, params models.DiscoveryParams) (*models.EventPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(params.Status)
	q, err := params.Query()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		q.Filter.Status = models.StatusPending
	}
	if strings.TrimSpace(params.Sort) == "" {
		q.Sort = models.SortNewest
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	events, total, err := as.store.ListEvents(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("services.AdminService.ListEvents: %w", err)
	}
	return &models.EventPage{Events: events, Pagination: models.NewPageInfo(q.Page, total)}, nil
}

func (as *AdminService) Approve(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.Event, error) {
	return as.moderate(ctx, actor, id, models.StatusApproved, "")
}

func (as *AdminService) Reject(ctx context.Context, actor *models.Actor, id uuid.UUID, reason string) (*models.Event, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, models.NewFieldError("reason", "must be at most 500 characters")
	}
	return as.moderate(ctx, actor, id, models.StatusRejected, reason)
}

func (as *AdminService) moderate(ctx context.Context, actor *models.Actor, id uuid.UUID, to models.EventStatus, reason string) (*models.Event, error) {
	const op = "services.AdminService.moderate"

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	e, err := as.store.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := e.Status
	if err := models.CheckTransition(actor, from, to); err != nil {
		return nil, err
	}

	now := as.now()
	updated, err := as.store.SetEventStatus(ctx, id, from, to, now)
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	action, topic := models.AuditApprove, messaging.TopicEventApproved
	if to == models.StatusRejected {
		action, topic = models.AuditReject, messaging.TopicEventRejected
	}
	entry := models.NewAuditEntry(actor, updated, action, now)
	entry.FromStatus = from
	entry.ToStatus = to
	entry.Reason = reason
	as.recordAudit(ctx, op, entry)

	as.logger.Info("event moderated", "op", op, "event_id", id, "from", from, "to", to, "admin_id", actor.UserID)
	as.metrics.Moderated(string(action))
	as.eventWritten(ctx, op, topic, updated)
	return updated, nil
}

func (as *AdminService) Audit(ctx context.Context, actor *models.Actor, id uuid.UUID) ([]models.AuditEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := as.store.GetEventByID(ctx, id); err != nil {
		return nil, err
	}
	entries, err := as.audit.ListAudit(ctx, id, auditListLimit)
	if err != nil {
		return nil, fmt.Errorf("services.AdminService.Audit: %w", err)
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

type Dashboard struct {
	TotalUsers        int64              `json:"total_users"`
	PremiumUsers      int64              `json:"premium_users"`
	NewUsersThisMonth int64              `json:"new_users_this_month"`
	TotalEvents       int64              `json:"total_events"`
	PendingEvents     int64              `json:"pending_events"`
	Events            models.EventCounts `json:"events"`
	RecentEvents      []models.Event     `json:"recent_events"`
}

func (as *AdminService) Dashboard(ctx context.Context, actor *models.Actor) (*Dashboard, error) {
	const op = "services.AdminService.Dashboard"

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	now := as.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	users, err := as.store.CountUsers(ctx, monthStart, now)
	if err != nil {
		return nil, fmt.Errorf("%s: count users: %w", op, err)
	}
	events, err := as.store.CountEvents(ctx, models.EventCountFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: count events: %w", op, err)
	}
	recent, _, err := as.store.ListEvents(ctx, &models.EventQuery{
		Sort: models.SortNewest,
		Page: models.Pagination{Page: 1, Limit: dashboardRecentEvents},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: recent events: %w", op, err)
	}
	if recent == nil {
		recent = []models.Event{}
	}

	return &Dashboard{
		TotalUsers:        users.Total,
		PremiumUsers:      users.Premium,
		NewUsersThisMonth: users.CreatedSince,
		TotalEvents:       events.Total,
		PendingEvents:     events.Pending,
		Events:            *events,
		RecentEvents:      recent,
	}, nil
}

type Analytics struct {
	PeriodDays     int                   `json:"period_days"`
	Since          time.Time             `json:"since"`
	NewUsers       int64                 `json:"new_users"`
	NewEvents      int64                 `json:"new_events"`
	EventsByStatus models.EventCounts    `json:"events_by_status"`
	UsersByRole    map[models.Role]int64 `json:"users_by_role"`
}

// Analytics reports activity over the last period days. An empty period
// means DefaultAnalyticsPeriod.
func (as *AdminService) Analytics(ctx context.Context, actor *models.Actor, period string) (*Analytics, error) {
	const op = "services.AdminService.Analytics"

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	days := DefaultAnalyticsPeriod
	if s := strings.TrimSpace(period); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxAnalyticsPeriod {
			return nil, models.NewFieldError("period", fmt.Sprintf("must be a number of days between 1 and %d", MaxAnalyticsPeriod))
		}
		days = n
	}

	now := as.now()
	since := now.AddDate(0, 0, -days)
	users, err := as.store.CountUsers(ctx, since, now)
	if err != nil {
		return nil, fmt.Errorf("%s: count users: %w", op, err)
	}
	events, err := as.store.CountEvents(ctx, models.EventCountFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("%s: count events: %w", op, err)
	}
	byRole := users.ByRole
	if byRole == nil {
		byRole = map[models.Role]int64{}
	}

	return &Analytics{
		PeriodDays:     days,
		Since:          since,
		NewUsers:       users.CreatedSince,
		NewEvents:      events.Total,
		EventsByStatus: *events,
		UsersByRole:    byRole,
	}, nil
}

func (as *AdminService) ListUsers(ctx context.Context, actor *models.Actor, params models.UserListParams) ([]models.User, models.PageInfo, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, models.PageInfo{}, err
	}
	q, err := params.Query()
	if err != nil {
		return nil, models.PageInfo{}, err
	}
	if err := q.Validate(); err != nil {
		return nil, models.PageInfo{}, err
	}
	users, total, err := as.store.ListUsers(ctx, &q)
	if err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("services.AdminService.ListUsers: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPageInfo(q.Page, total), nil
}

func (as *AdminService) UpdateUser(ctx context.Context, actor *models.Actor, id uuid.UUID, update *models.AdminUserUpdate) (*models.User, error) {
	const op = "services.AdminService.UpdateUser"

	if err := as.checkTarget(actor, id); err != nil {
		return nil, err
	}
	fields, err := update.Fields()
	if err != nil {
		return nil, err
	}
	u, err := as.store.UpdateUserFields(ctx, id, fields, as.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	as.logger.Info("user updated by admin", "op", op, "user_id", id, "admin_id", actor.UserID)
	return u, nil
}

// SuspendUser demotes the user to visitor, which stops them publishing.
func (as *AdminService) SuspendUser(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.User, error) {
	const op = "services.AdminService.SuspendUser"

	if err := as.checkTarget(actor, id); err != nil {
		return nil, err
	}
	u, err := as.store.UpdateUserFields(ctx, id, map[string]interface{}{"role": models.RoleVisitor}, as.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	as.logger.Info("user suspended", "op", op, "user_id", id, "admin_id", actor.UserID)
	return u, nil
}

func (as *AdminService) checkTarget(actor *models.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return fmt.Errorf("admins cannot modify their own account: %w", models.ErrForbidden)
	}
	return nil
}

func (as *AdminService) ListContact(ctx context.Context, actor *models.Actor, status string, page models.Pagination) ([]models.ContactMessage, models.PageInfo, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, models.PageInfo{}, err
	}
	var st models.ContactStatus
	if s := strings.TrimSpace(status); s != "" && !strings.EqualFold(s, "all") {
		parsed, err := models.ParseContactStatus(s)
		if err != nil {
			return nil, models.PageInfo{}, err
		}
		st = parsed
	}
	if err := page.Normalize(); err != nil {
		return nil, models.PageInfo{}, err
	}
	msgs, total, err := as.store.ListContactMessages(ctx, st, page)
	if err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("services.AdminService.ListContact: %w", err)
	}
	if msgs == nil {
		msgs = []models.ContactMessage{}
	}
	return msgs, models.NewPageInfo(page, total), nil
}

func (as *AdminService) SetContactStatus(ctx context.Context, actor *models.Actor, id uuid.UUID, status string) (*models.ContactMessage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	st, err := models.ParseContactStatus(status)
	if err != nil {
		return nil, err
	}
	msg, err := as.store.SetContactStatus(ctx, id, st, as.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("services.AdminService.SetContactStatus: %w", err)
	}
	return msg, nil
}
