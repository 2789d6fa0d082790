package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() EventInput {
	return EventInput{
		Title:       "  Vernissage Douala  ",
		Description: "Opening night",
		Date:        time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC),
		Location:    "Douala",
		ArtType:     "painting",
		Category:    "solo exhibition",
		Images:      []string{"https://img.example.com/a.jpg"},
		Tags:        []string{" Art ", "art", "Modern"},
	}
}

func TestEventInputNormalizeAndValidate(t *testing.T) {
	in := validInput()
	in.Normalize()

	assert.Equal(t, "Vernissage Douala", in.Title)
	assert.Equal(t, ArtPainting, in.ArtType)
	assert.Equal(t, CategorySoloExhibition, in.Category)
	assert.Equal(t, []string{"art", "modern"}, in.Tags)
	require.NoError(t, in.Validate())
}

func TestEventInputValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EventInput)
		field  string
	}{
		{"missing title", func(in *EventInput) { in.Title = "" }, "title"},
		{"long title", func(in *EventInput) { in.Title = string(make([]byte, MaxTitleLen+1)) }, "title"},
		{"unknown art type", func(in *EventInput) { in.ArtType = "Origami" }, "art_type"},
		{"unknown category", func(in *EventInput) { in.Category = "Party" }, "category"},
		{"negative price", func(in *EventInput) { in.Price = -1 }, "price"},
		{"bad image url", func(in *EventInput) { in.Images = []string{"ftp://x"} }, "images[0]"},
		{"bad ticket url", func(in *EventInput) { in.TicketURL = "tickets" }, "ticket_url"},
		{"missing date", func(in *EventInput) { in.Date = time.Time{} }, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Normalize()
			tt.mutate(&in)

			err := in.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestToEventFillsOrganizerFromOwner(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	owner := &User{ID: uuid.New(), Name: "Galerie MAM", Email: "mam@example.com"}
	in := validInput()
	in.Normalize()
	in.Tags = nil

	e := in.ToEvent(owner, now)

	assert.Equal(t, owner.ID, e.OrganizerID)
	assert.Equal(t, "Galerie MAM", e.Organizer.Name)
	assert.Equal(t, "mam@example.com", e.Organizer.Email)
	assert.Equal(t, []string{}, e.Tags)
	assert.Equal(t, now, e.CreatedAt)
	assert.False(t, e.Featured)
}

func TestEventPatchPartialUpdate(t *testing.T) {
	title := "New title"
	price := 5000.0
	tags := []string{"Photo", "photo"}
	p := EventPatch{Title: &title, Price: &price, Tags: &tags}
	p.Normalize()
	require.NoError(t, p.Validate())

	fields := p.Fields()
	assert.Len(t, fields, 3)
	assert.Equal(t, "New title", fields["title"])
	assert.Equal(t, 5000.0, fields["price"])
	assert.Equal(t, []string{"photo"}, fields["tags"])
	require.NoError(t, checkEventFields(fields))

	e := &Event{Title: "Old", Description: "kept", Price: 0}
	p.Apply(e)
	assert.Equal(t, "New title", e.Title)
	assert.Equal(t, "kept", e.Description)
	assert.Equal(t, 5000.0, e.Price)
}

func TestEventPatchRejectsBlankRequiredField(t *testing.T) {
	blank := "   "
	p := EventPatch{Location: &blank}
	p.Normalize()

	var fe *FieldError
	require.True(t, errors.As(p.Validate(), &fe))
	assert.Equal(t, "location", fe.Field)
}

func TestCheckEventFieldsGuardsLifecycleColumns(t *testing.T) {
	assert.Error(t, checkEventFields(map[string]interface{}{"status": "approved"}))
	assert.Error(t, checkEventFields(map[string]interface{}{"featured": true}))
	assert.Error(t, checkEventFields(map[string]interface{}{}))
	assert.NoError(t, checkEventFields(map[string]interface{}{"title": "x"}))
}

func TestEventVisibility(t *testing.T) {
	owner := uuid.New()
	e := &Event{OrganizerID: owner, Status: StatusPending}

	assert.False(t, e.VisibleTo(nil))
	assert.False(t, e.VisibleTo(&Actor{UserID: uuid.New(), Role: RoleOrganizer}))
	assert.True(t, e.VisibleTo(&Actor{UserID: owner, Role: RoleOrganizer}))
	assert.True(t, e.VisibleTo(&Actor{UserID: uuid.New(), Role: RoleAdmin}))

	e.Status = StatusApproved
	assert.True(t, e.VisibleTo(nil))
}
