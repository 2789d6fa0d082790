package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type EventRepo interface {
	// CreateEventWithQuota reserves a slot on the owner's counter and inserts e
	// in one atomic step. It returns ErrQuotaExceeded when the owner is at quota.
	CreateEventWithQuota(ctx context.Context, e *Event, now time.Time) (*Event, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateEventFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*Event, error)
	// SetEventStatus is a compare-and-set on status. It fails with ErrConflict
	// when the stored status is no longer from, and clears featured whenever
	// to is not approved.
	SetEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus, now time.Time) (*Event, error)
	// SetEventFeatured enforces FeaturedCap across all events.
	SetEventFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) (*Event, error)
	// DeleteEvent removes the event and decrements the owner's counter.
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	ListEvents(ctx context.Context, q *EventQuery) ([]Event, int64, error)
	CountEvents(ctx context.Context, f EventCountFilter) (*EventCounts, error)
}

const (
	rpcCreateEvent  = "create_event_with_quota"
	rpcDeleteEvent  = "delete_event"
	rpcFeatureEvent = "set_event_featured"
)

var errEmptyRpcResponse = errors.New("empty response from rpc")

func (su *SupabaseRepo) CreateEventWithQuota(ctx context.Context, e *Event, now time.Time) (*Event, error) {
	body := su.supabaseClient.Rpc(rpcCreateEvent, "", map[string]interface{}{
		"p_event": e,
		"p_now":   now.UTC(),
		"p_quota": FreeEventQuota,
	})
	var created Event
	if err := decodeRpc(body, &created); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &created, nil
}

func (su *SupabaseRepo) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	raw, _, err := su.supabaseClient.From(EventsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", supabaseError(err))
	}
	return firstEvent(raw)
}

func (su *SupabaseRepo) UpdateEventFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*Event, error) {
	if err := checkEventFields(fields); err != nil {
		return nil, err
	}
	update := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		update[k] = v
	}
	update["updated_at"] = now.UTC()

	raw, _, err := su.supabaseClient.From(EventsTable).
		Update(update, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", supabaseError(err))
	}
	return firstEvent(raw)
}

func (su *SupabaseRepo) SetEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus, now time.Time) (*Event, error) {
	update := map[string]interface{}{
		"status":     to,
		"updated_at": now.UTC(),
	}
	if to != StatusApproved {
		update["featured"] = false
	}
	raw, _, err := su.supabaseClient.From(EventsTable).
		Update(update, "representation", "").
		Eq("id", id.String()).
		Eq("status", string(from)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to set event status: %w", supabaseError(err))
	}
	e, err := firstEvent(raw)
	if errors.Is(err, ErrNotFound) {
		// either the event is gone or someone moved it first
		if _, getErr := su.GetEventByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("event is no longer %s: %w", from, ErrConflict)
	}
	return e, err
}

func (su *SupabaseRepo) SetEventFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) (*Event, error) {
	body := su.supabaseClient.Rpc(rpcFeatureEvent, "", map[string]interface{}{
		"p_id":       id,
		"p_featured": featured,
		"p_cap":      FeaturedCap,
		"p_now":      now.UTC(),
	})
	var e Event
	if err := decodeRpc(body, &e); err != nil {
		return nil, fmt.Errorf("failed to set featured: %w", err)
	}
	return &e, nil
}

func (su *SupabaseRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	body := su.supabaseClient.Rpc(rpcDeleteEvent, "", map[string]interface{}{"p_id": id})
	var ownerID uuid.UUID
	if err := decodeRpc(body, &ownerID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (su *SupabaseRepo) ListEvents(ctx context.Context, q *EventQuery) ([]Event, int64, error) {
	fb := su.supabaseClient.From(EventsTable).Select("*", "exact", false)
	fb = applyEventFilter(fb, &q.Filter)
	fb = applyEventOrder(fb, q.Sort)
	offset := q.Page.Offset()
	raw, count, err := fb.Range(offset, offset+q.Page.Limit-1, "").Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", supabaseError(err))
	}
	events := []Event{}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal events: %v", err)
	}
	return events, count, nil
}

func (su *SupabaseRepo) CountEvents(ctx context.Context, f EventCountFilter) (*EventCounts, error) {
	count := func(status EventStatus, featured bool) (int64, error) {
		fb := su.supabaseClient.From(EventsTable).Select("id", "exact", true)
		if f.OrganizerID != uuid.Nil {
			fb = fb.Eq("organizer_id", f.OrganizerID.String())
		}
		if f.Since != nil {
			fb = fb.Gte("created_at", formatTimestamp(*f.Since))
		}
		if status != "" {
			fb = fb.Eq("status", string(status))
		}
		if featured {
			fb = fb.Eq("featured", "true")
		}
		_, n, err := fb.Execute()
		return n, err
	}

	var (
		c   EventCounts
		err error
	)
	if c.Total, err = count("", false); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", supabaseError(err))
	}
	for _, dst := range []struct {
		status EventStatus
		n      *int64
	}{
		{StatusDraft, &c.Draft},
		{StatusPending, &c.Pending},
		{StatusApproved, &c.Approved},
		{StatusRejected, &c.Rejected},
	} {
		if *dst.n, err = count(dst.status, false); err != nil {
			return nil, fmt.Errorf("failed to count %s events: %w", dst.status, supabaseError(err))
		}
	}
	if c.Featured, err = count("", true); err != nil {
		return nil, fmt.Errorf("failed to count featured events: %w", supabaseError(err))
	}
	return &c, nil
}

// applyEventFilter pushes f down as PostgREST filters. PostgREST keys filters
// by column, so the two date bounds share a single and=() group.
func applyEventFilter(fb *postgrest.FilterBuilder, f *EventFilter) *postgrest.FilterBuilder {
	if term := postgrestTerm(f.SearchText); term != "" {
		pat := "*" + term + "*"
		fb = fb.Or(fmt.Sprintf("title.ilike.%[1]s,description.ilike.%[1]s,category.ilike.%[1]s,art_type.ilike.%[1]s", pat), "")
	}
	if f.ArtType != "" {
		fb = fb.Eq("art_type", string(f.ArtType))
	}
	if f.Category != "" {
		fb = fb.Eq("category", string(f.Category))
	}
	if loc := postgrestTerm(f.Location); loc != "" {
		fb = fb.Ilike("location", "*"+loc+"*")
	}

	lower := lowerDateBound(f)
	switch {
	case lower != nil && f.DateTo != nil:
		fb = fb.And(fmt.Sprintf("date.gte.%s,date.lte.%s", formatTimestamp(*lower), formatTimestamp(*f.DateTo)), "")
	case lower != nil:
		fb = fb.Gte("date", formatTimestamp(*lower))
	case f.DateTo != nil:
		fb = fb.Lte("date", formatTimestamp(*f.DateTo))
	}

	switch f.Price {
	case PriceFree:
		fb = fb.Eq("price", "0")
	case PricePaid:
		fb = fb.Gt("price", "0")
	}
	if f.Featured != nil {
		fb = fb.Eq("featured", strconv.FormatBool(*f.Featured))
	}
	if f.Status != "" {
		fb = fb.Eq("status", string(f.Status))
	}
	if f.OrganizerID != uuid.Nil {
		fb = fb.Eq("organizer_id", f.OrganizerID.String())
	}
	return fb
}

func applyEventOrder(fb *postgrest.FilterBuilder, order SortOrder) *postgrest.FilterBuilder {
	asc := &postgrest.OrderOpts{Ascending: true}
	desc := &postgrest.OrderOpts{Ascending: false}
	switch order {
	case SortNewest:
		return fb.Order("created_at", desc).Order("id", asc)
	case SortFeaturedFirst:
		fb = fb.Order("featured", desc).Order("date", asc)
	default:
		fb = fb.Order("date", asc)
	}
	return fb.Order("created_at", asc).Order("id", asc)
}

// lowerDateBound merges DateFrom with the upcoming-only cut-off.
func lowerDateBound(f *EventFilter) *time.Time {
	lower := f.DateFrom
	if f.UpcomingOnly && (lower == nil || f.Now.After(*lower)) {
		now := f.Now
		lower = &now
	}
	return lower
}

// postgrestTerm strips the characters that delimit PostgREST filter groups.
func postgrestTerm(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '"', '\\':
			return -1
		}
		return r
	}, s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func firstEvent(raw []byte) (*Event, error) {
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event rows: %v", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	return &events[0], nil
}

// decodeRpc interprets the raw body returned by an RPC call. The client
// swallows transport errors and returns "", and PostgREST reports SQL errors
// as a JSON object carrying a code.
func decodeRpc(body string, out interface{}) error {
	if body == "" {
		return errEmptyRpcResponse
	}
	var perr postgrest.ExecuteError
	if err := json.Unmarshal([]byte(body), &perr); err == nil && perr.Code != "" && perr.Message != "" {
		return rpcError(perr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("failed to unmarshal rpc response: %v", err)
	}
	return nil
}

// rpcError maps the exceptions raised by the SQL functions onto error kinds.
func rpcError(perr postgrest.ExecuteError) error {
	switch perr.Message {
	case "quota_exceeded":
		return ErrQuotaExceeded
	case "not_found":
		return ErrNotFound
	case "featured_cap":
		return fmt.Errorf("at most %d events can be featured: %w", FeaturedCap, ErrConflict)
	case "not_approved":
		return fmt.Errorf("only approved events can be featured: %w", ErrConflict)
	}
	return fmt.Errorf("(%s) %s", perr.Code, perr.Message)
}

// supabaseError maps PostgREST error codes that have a domain meaning.
func supabaseError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "(23505)"):
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	case strings.Contains(msg, "(PGRST116)"):
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return err
}
