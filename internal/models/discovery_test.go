package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryParamsQuery(t *testing.T) {
	q, err := DiscoveryParams{
		Search:   " jazz ",
		ArtType:  "digital art",
		Category: "ART FAIR",
		DateFrom: "2026-11-01",
		DateTo:   "2026-11-30",
		Price:    "Free",
		Featured: "true",
		Status:   "all",
		Sort:     "newest",
		Page:     "2",
		Limit:    "500",
	}.Query()
	require.NoError(t, err)
	require.NoError(t, q.Validate())

	f := q.Filter
	assert.Equal(t, "jazz", f.SearchText)
	assert.Equal(t, ArtDigital, f.ArtType)
	assert.Equal(t, CategoryArtFair, f.Category)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
	assert.Equal(t, time.Date(2026, 11, 30, 23, 59, 59, 999999999, time.UTC), *f.DateTo)
	assert.Equal(t, PriceFree, f.Price)
	require.NotNil(t, f.Featured)
	assert.True(t, *f.Featured)
	assert.Empty(t, f.Status)
	assert.Equal(t, SortNewest, q.Sort)
	assert.Equal(t, Pagination{Page: 2, Limit: MaxPageSize}, q.Page)
}

func TestDiscoveryParamsRejects(t *testing.T) {
	tests := []struct {
		name   string
		params DiscoveryParams
		field  string
	}{
		{"unknown art type", DiscoveryParams{ArtType: "Origami"}, "artType"},
		{"unknown category", DiscoveryParams{Category: "Rave"}, "category"},
		{"bad date", DiscoveryParams{DateFrom: "01/11/2026"}, "dateFrom"},
		{"bad price", DiscoveryParams{Price: "cheap"}, "price"},
		{"bad featured", DiscoveryParams{Featured: "maybe"}, "featured"},
		{"bad sort", DiscoveryParams{Sort: "popular"}, "sort"},
		{"zero page", DiscoveryParams{Page: "0"}, "page"},
		{"negative limit", DiscoveryParams{Limit: "-5"}, "limit"},
		{"non-numeric page", DiscoveryParams{Page: "two"}, "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.params.Query()
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.field, fe.Field)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestEventQueryValidate(t *testing.T) {
	from := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	q := EventQuery{Filter: EventFilter{DateFrom: &from, DateTo: &to}}
	var fe *FieldError
	require.True(t, errors.As(q.Validate(), &fe))
	assert.Equal(t, "dateFrom", fe.Field)

	q = EventQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, SortDate, q.Sort)
	assert.Equal(t, Pagination{Page: DefaultPage, Limit: DefaultPageSize}, q.Page)

	q = EventQuery{Filter: EventFilter{UpcomingOnly: true}}
	require.NoError(t, q.Validate())
	assert.False(t, q.Filter.Now.IsZero())

	long := make([]byte, maxSearchLen+1)
	for i := range long {
		long[i] = 'a'
	}
	q = EventQuery{Filter: EventFilter{SearchText: string(long)}}
	require.True(t, errors.As(q.Validate(), &fe))
	assert.Equal(t, "search", fe.Field)
}

func TestPaginationAndPageInfo(t *testing.T) {
	p := Pagination{Page: 3, Limit: 20}
	require.NoError(t, p.Normalize())
	assert.Equal(t, 40, p.Offset())

	info := NewPageInfo(p, 41)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, int64(41), info.Total)

	assert.Equal(t, 0, NewPageInfo(Pagination{Page: 1, Limit: 20}, 0).Pages)

	huge := Pagination{Page: 4611686018427387904, Limit: 20}
	require.NoError(t, huge.Normalize())
	assert.Equal(t, MaxOffset, huge.Offset(), "offset saturates instead of overflowing")
	assert.Equal(t, MaxOffset, Pagination{Page: math.MaxInt, Limit: MaxPageSize}.Offset())
}

func TestMatchEventIsConjunction(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	yes := true
	e := &Event{
		Title:       "Sculpting the city",
		Description: "Outdoor works",
		Date:        now.Add(48 * time.Hour),
		Location:    "Yaoundé, Bastos",
		ArtType:     ArtSculpture,
		Category:    CategoryGroupExhibition,
		Status:      StatusApproved,
		Featured:    true,
		Price:       0,
	}

	assert.True(t, MatchEvent(e, &EventFilter{}))
	assert.True(t, MatchEvent(e, &EventFilter{SearchText: "CITY", Location: "bastos", Price: PriceFree, Featured: &yes}))
	assert.True(t, MatchEvent(e, &EventFilter{SearchText: "group"}), "search covers category")
	assert.False(t, MatchEvent(e, &EventFilter{SearchText: "city", ArtType: ArtPainting}))
	assert.False(t, MatchEvent(e, &EventFilter{Price: PricePaid}))
	assert.False(t, MatchEvent(e, &EventFilter{Status: StatusPending}))
	assert.False(t, MatchEvent(e, &EventFilter{OrganizerID: uuid.New()}))

	later := now.Add(72 * time.Hour)
	assert.False(t, MatchEvent(e, &EventFilter{DateFrom: &later}))
	assert.True(t, MatchEvent(e, &EventFilter{DateTo: &later, UpcomingOnly: true, Now: now}))
	assert.False(t, MatchEvent(e, &EventFilter{UpcomingOnly: true, Now: later}))
}

func TestSortEventsIsDeterministic(t *testing.T) {
	day := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	a := Event{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Date: day, CreatedAt: created}
	b := Event{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), Date: day, CreatedAt: created}
	c := Event{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000c"), Date: day.Add(time.Hour), CreatedAt: created.Add(time.Hour), Featured: true}

	events := []Event{c, b, a}
	SortEvents(events, SortDate)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, ids(events))

	events = []Event{a, b, c}
	SortEvents(events, SortFeaturedFirst)
	assert.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, ids(events))

	events = []Event{a, b, c}
	SortEvents(events, SortNewest)
	assert.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, ids(events))
}

func TestPageOf(t *testing.T) {
	events := make([]Event, 5)
	for i := range events {
		events[i].ID = uuid.New()
	}
	assert.Len(t, PageOf(events, Pagination{Page: 1, Limit: 2}), 2)
	assert.Equal(t, events[4].ID, PageOf(events, Pagination{Page: 3, Limit: 2})[0].ID)
	assert.Empty(t, PageOf(events, Pagination{Page: 4, Limit: 2}))
	assert.Empty(t, PageOf(events, Pagination{Page: 4611686018427387904, Limit: 20}))
}

func TestCacheKey(t *testing.T) {
	a := EventQuery{Filter: EventFilter{ArtType: ArtPainting, UpcomingOnly: true}, Page: Pagination{Page: 1, Limit: 20}}
	b := a
	b.Filter.Now = time.Now()
	assert.Equal(t, a.CacheKey(), b.CacheKey(), "reference time is not part of the key")

	b.Page.Page = 2
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())

	c := a
	c.Filter.SearchText = "Jazz"
	d := a
	d.Filter.SearchText = "jazz"
	assert.Equal(t, c.CacheKey(), d.CacheKey())
}

func ids(events []Event) []uuid.UUID {
	out := make([]uuid.UUID, len(events))
	for i := range events {
		out[i] = events[i].ID
	}
	return out
}

func TestPageParams(t *testing.T) {
	p, err := PageParams{}.Pagination()
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: DefaultPage, Limit: DefaultPageSize}, p)

	p, err = PageParams{Page: "4", Limit: "1000"}.Pagination()
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 4, Limit: MaxPageSize}, p)

	_, err = PageParams{Limit: "ten"}.Pagination()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
