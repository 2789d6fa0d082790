package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

type EventService struct {
	effects
	events models.EventRepo
	users  models.UserRepo
	views  models.EventViewsRepo
	images helpers.ImageUploader
	now    func() time.Time
}

func NewEventService(d Deps) *EventService {
	d = d.withDefaults()
	return &EventService{
		effects: newEffects(d),
		events:  d.Store,
		users:   d.Store,
		views:   d.Docs,
		images:  d.Images,
		now:     d.Now,
	}
}

// ViewContext describes who is looking at an event, for analytics.
type ViewContext struct {
	SessionID string
	IP        string
	UserAgent string
}

// Discover serves the public feed. Only approved events are ever returned and
// the feed is upcoming-only unless the caller bounds the dates.
func (es *EventService) Discover(ctx context.Context, params models.DiscoveryParams) (*models.EventPage, error) {
	q, err := params.Query()
	if err != nil {
		return nil, err
	}
	q.Filter.Status = models.StatusApproved
	if q.Filter.DateFrom == nil && q.Filter.DateTo == nil {
		q.Filter.UpcomingOnly = true
		q.Filter.Now = es.now()
	}
	if strings.TrimSpace(params.Sort) == "" {
		q.Sort = models.SortFeaturedFirst
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := "discover:" + q.CacheKey()
	var page models.EventPage
	if es.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	events, total, err := es.events.ListEvents(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("failed to discover events: %w", err)
	}
	page = models.EventPage{Events: events, Pagination: models.NewPageInfo(q.Page, total)}
	es.cacheSet(ctx, key, &page)
	return &page, nil
}

// Featured returns the featured strip: approved, featured, upcoming, by date.
func (es *EventService) Featured(ctx context.Context) ([]models.Event, error) {
	featured := true
	q := models.EventQuery{
		Filter: models.EventFilter{
			Status:       models.StatusApproved,
			Featured:     &featured,
			UpcomingOnly: true,
			Now:          es.now(),
		},
		Sort: models.SortDate,
		Page: models.Pagination{Page: 1, Limit: models.FeaturedLimit},
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := "featured:" + q.CacheKey()
	var events []models.Event
	if es.cacheGet(ctx, key, &events) {
		return events, nil
	}
	events, _, err := es.events.ListEvents(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured events: %w", err)
	}
	es.cacheSet(ctx, key, events)
	return events, nil
}

// GetEvent applies read visibility. Anonymous callers cannot tell a hidden
// event from a missing one; signed-in strangers get Forbidden.
func (es *EventService) GetEvent(ctx context.Context, actor *models.Actor, id uuid.UUID, view *ViewContext) (*models.Event, error) {
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.VisibleTo(actor) {
		if actor == nil {
			return nil, fmt.Errorf("event %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("event is not published: %w", models.ErrForbidden)
	}
	if e.IsPublic() && view != nil {
		es.trackView(ctx, actor, e, view)
	}
	return e, nil
}

func (es *EventService) trackView(ctx context.Context, actor *models.Actor, e *models.Event, view *ViewContext) {
	session := view.SessionID
	if session == "" {
		session = helpers.SessionFingerprint(view.IP, view.UserAgent)
	}
	v := &models.EventView{
		EventID:     e.ID.String(),
		OrganizerID: e.OrganizerID.String(),
		SessionID:   session,
		IPAddress:   view.IP,
		UserAgent:   view.UserAgent,
	}
	if actor != nil {
		uid := actor.UserID.String()
		v.UserID = &uid
	}
	if err := es.views.TrackEventView(ctx, v, es.now()); err != nil {
		es.logger.Warn("failed to track event view", "op", "services.EventService.GetEvent", "event_id", e.ID, "error", err)
	}
}

func (es *EventService) CreateEvent(ctx context.Context, actor *models.Actor, in *models.EventInput) (*models.Event, error) {
	const op = "services.EventService.CreateEvent"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !models.CanPublish(actor.Role) {
		return nil, fmt.Errorf("only organizers can create events: %w", models.ErrForbidden)
	}

	in.Normalize()
	images, err := es.images.ResolveImages(ctx, in.Images)
	if err != nil {
		return nil, err
	}
	in.Images = images
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := es.now()
	owner, err := es.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: load owner: %w", op, err)
	}
	if !models.CanCreateEvent(owner, now) {
		return nil, models.ErrQuotaExceeded
	}

	e := in.ToEvent(owner, now)
	e.Status = models.InitialStatus(owner.Role)
	created, err := es.events.CreateEventWithQuota(ctx, e, now)
	if err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	es.logger.Info("event created", "op", op, "event_id", created.ID, "organizer_id", owner.ID, "status", created.Status)
	es.metrics.EventCreated()
	es.eventWritten(ctx, op, messaging.TopicEventCreated, created)
	return created, nil
}

func (es *EventService) UpdateEvent(ctx context.Context, actor *models.Actor, id uuid.UUID, patch *models.EventPatch) (*models.Event, error) {
	const op = "services.EventService.UpdateEvent"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckEdit(actor, e); err != nil {
		return nil, err
	}

	patch.Normalize()
	if patch.Images != nil {
		images, err := es.images.ResolveImages(ctx, *patch.Images)
		if err != nil {
			return nil, err
		}
		patch.Images = &images
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, models.NewFieldError("body", "no fields to update")
	}

	updated, err := es.events.UpdateEventFields(ctx, id, fields, es.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	es.logger.Info("event updated", "op", op, "event_id", id, "actor_id", actor.UserID)
	es.invalidate(ctx, op)
	return updated, nil
}

func (es *EventService) DeleteEvent(ctx context.Context, actor *models.Actor, id uuid.UUID) error {
	const op = "services.EventService.DeleteEvent"

	if err := requireActor(actor); err != nil {
		return err
	}
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return err
	}
	if err := models.CheckDelete(actor, e); err != nil {
		return err
	}
	if err := es.events.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	es.logger.Info("event deleted", "op", op, "event_id", id, "actor_id", actor.UserID)
	es.eventWritten(ctx, op, messaging.TopicEventDeleted, e)
	return nil
}

// SetFeatured toggles featured. The featured cap is enforced by the store.
func (es *EventService) SetFeatured(ctx context.Context, actor *models.Actor, id uuid.UUID, featured bool) (*models.Event, error) {
	const op = "services.EventService.SetFeatured"

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckFeature(actor, e, featured); err != nil {
		return nil, err
	}
	updated, err := es.events.SetEventFeatured(ctx, id, featured, es.now())
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	action := models.AuditFeature
	if !featured {
		action = models.AuditUnfeature
	}
	if e.Featured != featured {
		es.recordAudit(ctx, op, models.NewAuditEntry(actor, updated, action, es.now()))
		es.metrics.Moderated(string(action))
	}
	es.invalidate(ctx, op)
	return updated, nil
}

// ToggleFeatured flips the featured flag of an event.
func (es *EventService) ToggleFeatured(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.Event, error) {
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return es.SetFeatured(ctx, actor, id, !e.Featured)
}

// Stats returns view analytics to admins and to the event's premium owner.
func (es *EventService) Stats(ctx context.Context, actor *models.Actor, id uuid.UUID) (*models.EventViewStats, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	e, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Owns(e) && actor.Premium) {
		return nil, fmt.Errorf("analytics require a premium subscription: %w", models.ErrForbidden)
	}
	stats, err := es.views.GetEventViewStats(ctx, id, es.now())
	if err != nil {
		return nil, fmt.Errorf("services.EventService.Stats: %w", err)
	}
	return stats, nil
}

// OrganizerEvents lists the caller's own events, newest first.
func (es *EventService) OrganizerEvents(ctx context.Context, actor *models.Actor, status string, page models.Pagination) (*models.EventPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := models.EventQuery{
		Filter: models.EventFilter{OrganizerID: actor.UserID},
		Sort:   models.SortNewest,
		Page:   page,
	}
	if s := strings.TrimSpace(status); s != "" && !strings.EqualFold(s, "all") {
		st, err := models.ParseEventStatus(s)
		if err != nil {
			return nil, err
		}
		q.Filter.Status = st
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	events, total, err := es.events.ListEvents(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("services.EventService.OrganizerEvents: %w", err)
	}
	return &models.EventPage{Events: events, Pagination: models.NewPageInfo(q.Page, total)}, nil
}

func (es *EventService) OrganizerStats(ctx context.Context, actor *models.Actor) (*models.EventCounts, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	counts, err := es.events.CountEvents(ctx, models.EventCountFilter{OrganizerID: actor.UserID})
	if err != nil {
		return nil, fmt.Errorf("services.EventService.OrganizerStats: %w", err)
	}
	return counts, nil
}
