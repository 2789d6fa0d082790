package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo keeps every collection in process memory behind one mutex. It
// implements both Store and DocumentStore and serves local runs and tests.
type MemoryRepo struct {
	mu         sync.RWMutex
	events     map[uuid.UUID]*Event
	users      map[uuid.UUID]*User
	contacts   map[uuid.UUID]*ContactMessage
	audit      []AuditEntry
	views      []EventView
	payments   map[string]*Payment
	favourites map[uuid.UUID]*Favourite
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		events:     make(map[uuid.UUID]*Event),
		users:      make(map[uuid.UUID]*User),
		contacts:   make(map[uuid.UUID]*ContactMessage),
		payments:   make(map[string]*Payment),
		favourites: make(map[uuid.UUID]*Favourite),
	}
}

func cloneEvent(e *Event) *Event {
	c := *e
	c.Images = append([]string{}, e.Images...)
	c.Tags = append([]string{}, e.Tags...)
	if e.MaxAttendees != nil {
		n := *e.MaxAttendees
		c.MaxAttendees = &n
	}
	return &c
}

func cloneUser(u *User) *User {
	c := *u
	if u.PremiumExpiresAt != nil {
		t := *u.PremiumExpiresAt
		c.PremiumExpiresAt = &t
	}
	return &c
}

func (m *MemoryRepo) CreateEventWithQuota(ctx context.Context, e *Event, now time.Time) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.users[e.OrganizerID]
	if !ok {
		return nil, fmt.Errorf("organizer %w", ErrNotFound)
	}
	if !CanCreateEvent(owner, now) {
		return nil, ErrQuotaExceeded
	}
	if _, exists := m.events[e.ID]; exists {
		return nil, fmt.Errorf("event %s exists: %w", e.ID, ErrConflict)
	}
	owner.EventCount++
	owner.UpdatedAt = now
	stored := cloneEvent(e)
	m.events[e.ID] = stored
	return cloneEvent(stored), nil
}

func (m *MemoryRepo) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	return cloneEvent(e), nil
}

func (m *MemoryRepo) UpdateEventFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*Event, error) {
	if err := checkEventFields(fields); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	next := cloneEvent(e)
	if err := applyEventFields(next, fields); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	m.events[id] = next
	return cloneEvent(next), nil
}

// applyEventFields is the in-memory twin of an UPDATE ... SET on the events table.
func applyEventFields(e *Event, fields map[string]interface{}) error {
	for k, v := range fields {
		var ok bool
		switch k {
		case "title":
			e.Title, ok = v.(string)
		case "description":
			e.Description, ok = v.(string)
		case "date":
			e.Date, ok = v.(time.Time)
		case "location":
			e.Location, ok = v.(string)
		case "art_type":
			e.ArtType, ok = v.(ArtType)
		case "category":
			e.Category, ok = v.(Category)
		case "images":
			e.Images, ok = v.([]string)
		case "organizer":
			e.Organizer, ok = v.(Organizer)
		case "price":
			e.Price, ok = v.(float64)
		case "ticket_url":
			e.TicketURL, ok = v.(string)
		case "max_attendees":
			var n int
			if n, ok = v.(int); ok {
				e.MaxAttendees = &n
			}
		case "tags":
			e.Tags, ok = v.([]string)
		}
		if !ok {
			return NewFieldError(k, fmt.Sprintf("has unexpected type %T", v))
		}
	}
	return nil
}

func (m *MemoryRepo) SetEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus, now time.Time) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	if e.Status != from {
		return nil, fmt.Errorf("event is no longer %s: %w", from, ErrConflict)
	}
	e.Status = to
	if to != StatusApproved {
		e.Featured = false
	}
	e.UpdatedAt = now
	return cloneEvent(e), nil
}

func (m *MemoryRepo) SetEventFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	if e.Featured == featured {
		return cloneEvent(e), nil
	}
	if featured {
		if !e.IsPublic() {
			return nil, fmt.Errorf("only approved events can be featured: %w", ErrConflict)
		}
		n := 0
		for _, other := range m.events {
			if other.Featured {
				n++
			}
		}
		if n >= FeaturedCap {
			return nil, fmt.Errorf("at most %d events can be featured: %w", FeaturedCap, ErrConflict)
		}
	}
	e.Featured = featured
	e.UpdatedAt = now
	return cloneEvent(e), nil
}

func (m *MemoryRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event %w", ErrNotFound)
	}
	delete(m.events, id)
	if owner, ok := m.users[e.OrganizerID]; ok && owner.EventCount > 0 {
		owner.EventCount--
	}
	return nil
}

func (m *MemoryRepo) ListEvents(ctx context.Context, q *EventQuery) ([]Event, int64, error) {
	m.mu.RLock()
	matched := make([]Event, 0)
	for _, e := range m.events {
		if MatchEvent(e, &q.Filter) {
			matched = append(matched, *cloneEvent(e))
		}
	}
	m.mu.RUnlock()

	SortEvents(matched, q.Sort)
	return PageOf(matched, q.Page), int64(len(matched)), nil
}

func (m *MemoryRepo) CountEvents(ctx context.Context, f EventCountFilter) (*EventCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &EventCounts{}
	for _, e := range m.events {
		if f.OrganizerID != uuid.Nil && e.OrganizerID != f.OrganizerID {
			continue
		}
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		c.add(e)
	}
	return c, nil
}

func (m *MemoryRepo) CreateUser(ctx context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.users {
		if other.ID == u.ID || other.ExternalID == u.ExternalID || strings.EqualFold(other.Email, u.Email) {
			return nil, fmt.Errorf("user already exists: %w", ErrConflict)
		}
	}
	m.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (m *MemoryRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return cloneUser(u), nil
}

func (m *MemoryRepo) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %w", ErrNotFound)
}

func (m *MemoryRepo) UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*User, error) {
	if err := checkUserFields(fields); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	next := cloneUser(u)
	if err := applyUserFields(next, fields); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	m.users[id] = next
	return cloneUser(next), nil
}

func applyUserFields(u *User, fields map[string]interface{}) error {
	for k, v := range fields {
		ok := true
		switch k {
		case "name":
			u.Name, ok = v.(string)
		case "bio":
			u.Bio, ok = v.(string)
		case "website":
			u.Website, ok = v.(string)
		case "contact_email":
			u.ContactEmail, ok = v.(string)
		case "phone_number":
			u.PhoneNumber, ok = v.(string)
		case "role":
			u.Role, ok = v.(Role)
		case "is_premium":
			u.IsPremium, ok = v.(bool)
		case "premium_plan":
			u.PremiumPlan, ok = v.(string)
		case "premium_auto_renew":
			u.PremiumAutoRenew, ok = v.(bool)
		case "premium_expires_at":
			switch t := v.(type) {
			case time.Time:
				u.PremiumExpiresAt = &t
			case *time.Time:
				u.PremiumExpiresAt = t
			case nil:
				u.PremiumExpiresAt = nil
			default:
				ok = false
			}
		}
		if !ok {
			return NewFieldError(k, fmt.Sprintf("has unexpected type %T", v))
		}
	}
	return nil
}

func (m *MemoryRepo) ListUsers(ctx context.Context, q *UserQuery) ([]User, int64, error) {
	m.mu.RLock()
	matched := make([]User, 0)
	for _, u := range m.users {
		if MatchUser(u, q) {
			matched = append(matched, *cloneUser(u))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := int64(len(matched))
	start := q.Page.Offset()
	if start >= len(matched) {
		return []User{}, total, nil
	}
	end := start + q.Page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepo) CountUsers(ctx context.Context, since, now time.Time) (*UserCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &UserCounts{ByRole: map[Role]int64{RoleVisitor: 0, RoleOrganizer: 0, RoleAdmin: 0}}
	for _, u := range m.users {
		c.Total++
		if u.IsPremiumActive(now) {
			c.Premium++
		}
		if !u.CreatedAt.Before(since) {
			c.CreatedSince++
		}
		c.ByRole[u.Role]++
	}
	return c, nil
}

func (m *MemoryRepo) CreateContactMessage(ctx context.Context, msg *ContactMessage) (*ContactMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *msg
	m.contacts[msg.ID] = &stored
	out := stored
	return &out, nil
}

func (m *MemoryRepo) ListContactMessages(ctx context.Context, status ContactStatus, page Pagination) ([]ContactMessage, int64, error) {
	m.mu.RLock()
	matched := make([]ContactMessage, 0)
	for _, msg := range m.contacts {
		if status == "" || msg.Status == status {
			matched = append(matched, *msg)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return []ContactMessage{}, total, nil
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepo) SetContactStatus(ctx context.Context, id uuid.UUID, status ContactStatus, now time.Time) (*ContactMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact message %w", ErrNotFound)
	}
	msg.Status = status
	msg.UpdatedAt = now
	out := *msg
	return &out, nil
}

func (m *MemoryRepo) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *MemoryRepo) ListAudit(ctx context.Context, eventID uuid.UUID, limit int) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id := eventID.String()
	out := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].EventID == id {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

func (m *MemoryRepo) TrackEventView(ctx context.Context, view *EventView, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	view.Stamp(now)
	for _, v := range m.views {
		if v.EventID == view.EventID && v.SessionID == view.SessionID && v.Window.Equal(view.Window) {
			return nil
		}
	}
	if view.ID.IsZero() {
		view.ID = primitive.NewObjectID()
	}
	m.views = append(m.views, *view)
	return nil
}

func (m *MemoryRepo) GetEventViewStats(ctx context.Context, eventID uuid.UUID, now time.Time) (*EventViewStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id := eventID.String()
	stats := &EventViewStats{EventID: id}
	sessions := make(map[string]bool)
	day, week := StartOfDay(now), StartOfWeek(now)
	for _, v := range m.views {
		if v.EventID != id || !v.ExpiresAt.After(now) {
			continue
		}
		stats.TotalViews++
		sessions[v.SessionID] = true
		if !v.ViewedAt.Before(day) {
			stats.ViewsToday++
		}
		if !v.ViewedAt.Before(week) {
			stats.ViewsThisWeek++
		}
	}
	stats.UniqueViews = int64(len(sessions))
	return stats, nil
}

func (m *MemoryRepo) CreatePayment(ctx context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.Reference]; ok {
		return fmt.Errorf("payment %s already recorded: %w", p.Reference, ErrConflict)
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	stored := *p
	m.payments[p.Reference] = &stored
	return nil
}

func (m *MemoryRepo) GetPaymentByReference(ctx context.Context, ref string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[ref]
	if !ok {
		return nil, fmt.Errorf("payment %w", ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (m *MemoryRepo) TransitionPayment(ctx context.Context, ref string, to PaymentStatus, gatewayRef string, now time.Time) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return nil, fmt.Errorf("payment %w", ErrNotFound)
	}
	if p.Status != PaymentPending {
		return nil, fmt.Errorf("payment %s is already settled: %w", ref, ErrConflict)
	}
	p.Status = to
	p.UpdatedAt = now
	if gatewayRef != "" {
		p.GatewayRef = gatewayRef
	}
	if to == PaymentCompleted {
		t := now
		p.CompletedAt = &t
	}
	out := *p
	return &out, nil
}

func (m *MemoryRepo) SetPremiumApplied(ctx context.Context, ref string, applied bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	if !ok {
		return fmt.Errorf("payment %w", ErrNotFound)
	}
	if p.PremiumApplied == applied {
		return fmt.Errorf("payment %s premium marker unchanged: %w", ref, ErrConflict)
	}
	p.PremiumApplied = applied
	p.UpdatedAt = now
	return nil
}

func (m *MemoryRepo) ListPayments(ctx context.Context, userID uuid.UUID, page Pagination) ([]Payment, int64, error) {
	m.mu.RLock()
	matched := make([]Payment, 0)
	for _, p := range m.payments {
		if p.UserID == userID.String() {
			matched = append(matched, *p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Reference > matched[j].Reference
	})
	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return []Payment{}, total, nil
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepo) AddFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) (*Favourite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fav, ok := m.favourites[userID]
	if !ok {
		fav = &Favourite{
			ID:        primitive.NewObjectID(),
			UserID:    userID.String(),
			Items:     map[string]FavouriteItem{},
			CreatedAt: now,
		}
		m.favourites[userID] = fav
	}
	fav.Items[eventID.String()] = FavouriteItem{EventID: eventID.String(), AddedAt: now}
	fav.UpdatedAt = now
	return copyFavourite(fav), nil
}

func (m *MemoryRepo) RemoveFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fav, ok := m.favourites[userID]; ok {
		delete(fav.Items, eventID.String())
		fav.UpdatedAt = now
	}
	return nil
}

func (m *MemoryRepo) GetFavourites(ctx context.Context, userID uuid.UUID) (*Favourite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fav, ok := m.favourites[userID]
	if !ok {
		return &Favourite{UserID: userID.String(), Items: map[string]FavouriteItem{}}, nil
	}
	return copyFavourite(fav), nil
}

func copyFavourite(f *Favourite) *Favourite {
	c := *f
	c.Items = make(map[string]FavouriteItem, len(f.Items))
	for k, v := range f.Items {
		c.Items[k] = v
	}
	return &c
}
