package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventsTable   = "events"
	UsersTable    = "users"
	ContactTable  = "contact_messages"
	MaxTitleLen   = 200
	MaxDescLen    = 2000
	FeaturedCap   = 3
	FeaturedLimit = 6
)

type Organizer struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

type Event struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	Title            string      `db:"title" json:"title"`
	Description      string      `db:"description" json:"description"`
	Date             time.Time   `db:"date" json:"date"`
	Location         string      `db:"location" json:"location"`
	ArtType          ArtType     `db:"art_type" json:"art_type"`
	Category         Category    `db:"category" json:"category"`
	Images           []string    `db:"images" json:"images"`
	Organizer        Organizer   `db:"organizer" json:"organizer"`
	OrganizerID      uuid.UUID   `db:"organizer_id" json:"organizer_id"`
	Status           EventStatus `db:"status" json:"status"`
	Featured         bool        `db:"featured" json:"featured"`
	Price            float64     `db:"price" json:"price"`
	TicketURL        string      `db:"ticket_url" json:"ticket_url,omitempty"`
	MaxAttendees     *int        `db:"max_attendees" json:"max_attendees,omitempty"`
	CurrentAttendees int         `db:"current_attendees" json:"current_attendees"`
	Tags             []string    `db:"tags" json:"tags"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// IsPublic is the only visibility predicate; there is no separate approval flag.
func (e *Event) IsPublic() bool {
	return e.Status == StatusApproved
}

func (e *Event) IsFree() bool {
	return e.Price <= 0
}

// VisibleTo reports whether actor may read e. A nil actor is anonymous.
func (e *Event) VisibleTo(actor *Actor) bool {
	if e.IsPublic() {
		return true
	}
	return actor != nil && (actor.IsAdmin() || actor.UserID == e.OrganizerID)
}

// EventInput is the create payload.
type EventInput struct {
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description" validate:"required,max=2000"`
	Date         time.Time `json:"date" validate:"required"`
	Location     string    `json:"location" validate:"required,max=200"`
	ArtType      ArtType   `json:"art_type" validate:"required,art_type"`
	Category     Category  `json:"category" validate:"required,category"`
	Images       []string  `json:"images" validate:"omitempty,max=10,dive,httpurl"`
	Organizer    Organizer `json:"organizer"`
	Price        float64   `json:"price" validate:"gte=0"`
	TicketURL    string    `json:"ticket_url" validate:"omitempty,httpurl"`
	MaxAttendees *int      `json:"max_attendees" validate:"omitempty,min=1"`
	Tags         []string  `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// Normalize trims text, lowercases tags and canonicalizes enum spellings.
// Unknown enum values are left for Validate to reject.
func (in *EventInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.TicketURL = strings.TrimSpace(in.TicketURL)
	if a, err := ParseArtType(string(in.ArtType)); err == nil {
		in.ArtType = a
	}
	if c, err := ParseCategory(string(in.Category)); err == nil {
		in.Category = c
	}
	in.Tags = normalizeTags(in.Tags)
	in.Organizer.Name = strings.TrimSpace(in.Organizer.Name)
}

func (in *EventInput) Validate() error {
	return ValidationError(Validate.Struct(in))
}

// ToEvent builds a new event owned by owner. Status is left for the caller.
func (in *EventInput) ToEvent(owner *User, now time.Time) *Event {
	org := in.Organizer
	if org.Name == "" {
		org.Name = owner.Name
	}
	if org.Email == "" {
		org.Email = owner.ContactEmail
		if org.Email == "" {
			org.Email = owner.Email
		}
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return &Event{
		ID:           uuid.New(),
		Title:        in.Title,
		Description:  in.Description,
		Date:         in.Date.UTC(),
		Location:     in.Location,
		ArtType:      in.ArtType,
		Category:     in.Category,
		Images:       images,
		Organizer:    org,
		OrganizerID:  owner.ID,
		Price:        in.Price,
		TicketURL:    in.TicketURL,
		MaxAttendees: in.MaxAttendees,
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EventPatch is the partial update payload. Nil fields are left untouched.
type EventPatch struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,min=1,max=2000"`
	Date         *time.Time `json:"date"`
	Location     *string    `json:"location" validate:"omitempty,min=1,max=200"`
	ArtType      *ArtType   `json:"art_type" validate:"omitempty,art_type"`
	Category     *Category  `json:"category" validate:"omitempty,category"`
	Images       *[]string  `json:"images" validate:"omitempty,max=10,dive,httpurl"`
	Organizer    *Organizer `json:"organizer"`
	Price        *float64   `json:"price" validate:"omitempty,gte=0"`
	TicketURL    *string    `json:"ticket_url" validate:"omitempty,httpurl"`
	MaxAttendees *int       `json:"max_attendees" validate:"omitempty,min=1"`
	Tags         *[]string  `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

func (p *EventPatch) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(p.Title)
	trim(p.Description)
	trim(p.Location)
	trim(p.TicketURL)
	if p.ArtType != nil {
		if a, err := ParseArtType(string(*p.ArtType)); err == nil {
			*p.ArtType = a
		}
	}
	if p.Category != nil {
		if c, err := ParseCategory(string(*p.Category)); err == nil {
			*p.Category = c
		}
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

func (p *EventPatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return NewFieldError("title", "is required")
	}
	if p.Description != nil && *p.Description == "" {
		return NewFieldError("description", "is required")
	}
	if p.Location != nil && *p.Location == "" {
		return NewFieldError("location", "is required")
	}
	return ValidationError(Validate.Struct(p))
}

// Fields maps the set fields to their column names.
func (p *EventPatch) Fields() map[string]interface{} {
	f := make(map[string]interface{})
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.Date != nil {
		f["date"] = p.Date.UTC()
	}
	if p.Location != nil {
		f["location"] = *p.Location
	}
	if p.ArtType != nil {
		f["art_type"] = *p.ArtType
	}
	if p.Category != nil {
		f["category"] = *p.Category
	}
	if p.Images != nil {
		f["images"] = *p.Images
	}
	if p.Organizer != nil {
		f["organizer"] = *p.Organizer
	}
	if p.Price != nil {
		f["price"] = *p.Price
	}
	if p.TicketURL != nil {
		f["ticket_url"] = *p.TicketURL
	}
	if p.MaxAttendees != nil {
		f["max_attendees"] = *p.MaxAttendees
	}
	if p.Tags != nil {
		f["tags"] = *p.Tags
	}
	return f
}

// Apply copies the set fields onto e.
func (p *EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.ArtType != nil {
		e.ArtType = *p.ArtType
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Images != nil {
		e.Images = *p.Images
	}
	if p.Organizer != nil {
		e.Organizer = *p.Organizer
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.TicketURL != nil {
		e.TicketURL = *p.TicketURL
	}
	if p.MaxAttendees != nil {
		e.MaxAttendees = p.MaxAttendees
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
}

// eventUpdatable guards UpdateEventFields against writes to lifecycle columns.
var eventUpdatable = map[string]bool{
	"title":         true,
	"description":   true,
	"date":          true,
	"location":      true,
	"art_type":      true,
	"category":      true,
	"images":        true,
	"organizer":     true,
	"price":         true,
	"ticket_url":    true,
	"max_attendees": true,
	"tags":          true,
}

func checkEventFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return NewFieldError("body", "no fields to update")
	}
	for k := range fields {
		if !eventUpdatable[k] {
			return fmt.Errorf("field %q is not allowed for update", k)
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// EventCounts aggregates events by status.
type EventCounts struct {
	Total    int64 `json:"total"`
	Draft    int64 `json:"draft"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Featured int64 `json:"featured"`
}

func (c *EventCounts) add(e *Event) {
	c.Total++
	switch e.Status {
	case StatusDraft:
		c.Draft++
	case StatusPending:
		c.Pending++
	case StatusApproved:
		c.Approved++
	case StatusRejected:
		c.Rejected++
	}
	if e.Featured {
		c.Featured++
	}
}

// EventCountFilter scopes EventCounts to one organizer and/or a creation window.
type EventCountFilter struct {
	OrganizerID uuid.UUID
	Since       *time.Time
}
