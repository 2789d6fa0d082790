package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxSearchLen    = 100

	MaxOffset = math.MaxInt32
)

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize fills defaults and clamps the limit. Zero means "not supplied".
func (p *Pagination) Normalize() error {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageSize
	}
	if p.Page < 1 {
		return NewFieldError("page", "must be at least 1")
	}
	if p.Limit < 1 {
		return NewFieldError("limit", "must be at least 1")
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return nil
}

// Offset saturates at MaxOffset so a huge page lands past the end of any
// result set instead of overflowing.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > MaxOffset/p.Limit {
		return MaxOffset
	}
	return (p.Page - 1) * p.Limit
}

type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPageInfo(p Pagination, total int64) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// EventPage is the discovery response body.
type EventPage struct {
	Events     []Event  `json:"events"`
	Pagination PageInfo `json:"pagination"`
}

// EventFilter holds the discovery criteria. Zero values mean "any".
type EventFilter struct {
	SearchText   string
	ArtType      ArtType
	Category     Category
	Location     string
	DateFrom     *time.Time
	DateTo       *time.Time
	Price        PriceFilter
	Featured     *bool
	Status       EventStatus
	OrganizerID  uuid.UUID
	UpcomingOnly bool
	// Now is the reference time for UpcomingOnly.
	Now time.Time
}

type EventQuery struct {
	Filter EventFilter
	Sort   SortOrder
	Page   Pagination
}

// Validate normalizes q in place and rejects contradictory or unknown criteria.
func (q *EventQuery) Validate() error {
	f := &q.Filter
	f.SearchText = strings.TrimSpace(f.SearchText)
	if len(f.SearchText) > maxSearchLen {
		return NewFieldError("search", fmt.Sprintf("must be at most %d characters", maxSearchLen))
	}
	f.Location = strings.TrimSpace(f.Location)
	if f.ArtType != "" && !f.ArtType.Valid() {
		return NewFieldError("artType", "unrecognized art type "+quote(string(f.ArtType)))
	}
	if f.Category != "" && !f.Category.Valid() {
		return NewFieldError("category", "unrecognized category "+quote(string(f.Category)))
	}
	if f.Status != "" {
		if _, err := ParseEventStatus(string(f.Status)); err != nil {
			return err
		}
	}
	if _, err := ParsePriceFilter(string(f.Price)); err != nil {
		return err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return NewFieldError("dateFrom", "must not be after dateTo")
	}
	if q.Sort == "" {
		q.Sort = SortDate
	}
	if _, err := ParseSortOrder(string(q.Sort)); err != nil {
		return err
	}
	if f.UpcomingOnly && f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return q.Page.Normalize()
}

// CacheKey identifies the query for caching. Now is left out on purpose so
// that repeated public calls share an entry; the cache TTL bounds the drift.
func (q *EventQuery) CacheKey() string {
	f := q.Filter
	parts := []string{
		"q=" + strings.ToLower(f.SearchText),
		"a=" + string(f.ArtType),
		"c=" + string(f.Category),
		"l=" + strings.ToLower(f.Location),
		"from=" + formatTime(f.DateFrom),
		"to=" + formatTime(f.DateTo),
		"p=" + string(f.Price),
		"f=" + formatBool(f.Featured),
		"s=" + string(f.Status),
		"o=" + orgKey(f.OrganizerID),
		"u=" + strconv.FormatBool(f.UpcomingOnly),
		"sort=" + string(q.Sort),
		"page=" + strconv.Itoa(q.Page.Page),
		"limit=" + strconv.Itoa(q.Page.Limit),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func orgKey(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// DiscoveryParams is the query-string form of a discovery request.
type DiscoveryParams struct {
	Search   string `form:"search"`
	ArtType  string `form:"artType"`
	Category string `form:"category"`
	Location string `form:"location"`
	DateFrom string `form:"dateFrom"`
	DateTo   string `form:"dateTo"`
	Price    string `form:"price"`
	Featured string `form:"featured"`
	Status   string `form:"status"`
	Sort     string `form:"sort"`
	Page     string `form:"page"`
	Limit    string `form:"limit"`
}

// Query parses the raw parameters. Status is parsed but callers decide whether
// to honour it.
func (p DiscoveryParams) Query() (EventQuery, error) {
	var q EventQuery
	f := &q.Filter
	f.SearchText = p.Search
	f.Location = p.Location

	if s := strings.TrimSpace(p.ArtType); s != "" {
		a, err := ParseArtType(s)
		if err != nil {
			return q, err
		}
		f.ArtType = a
	}
	if s := strings.TrimSpace(p.Category); s != "" {
		c, err := ParseCategory(s)
		if err != nil {
			return q, err
		}
		f.Category = c
	}
	if s := strings.TrimSpace(p.DateFrom); s != "" {
		t, err := parseDateParam("dateFrom", s, false)
		if err != nil {
			return q, err
		}
		f.DateFrom = &t
	}
	if s := strings.TrimSpace(p.DateTo); s != "" {
		t, err := parseDateParam("dateTo", s, true)
		if err != nil {
			return q, err
		}
		f.DateTo = &t
	}
	price, err := ParsePriceFilter(p.Price)
	if err != nil {
		return q, err
	}
	f.Price = price
	if s := strings.TrimSpace(p.Featured); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, NewFieldError("featured", "must be true or false")
		}
		f.Featured = &b
	}
	if s := strings.TrimSpace(p.Status); s != "" && !strings.EqualFold(s, "all") {
		st, err := ParseEventStatus(s)
		if err != nil {
			return q, err
		}
		f.Status = st
	}
	if s := strings.TrimSpace(p.Sort); s != "" {
		o, err := ParseSortOrder(s)
		if err != nil {
			return q, err
		}
		q.Sort = o
	}
	if q.Page.Page, err = parseIntParam("page", p.Page); err != nil {
		return q, err
	}
	if q.Page.Limit, err = parseIntParam("limit", p.Limit); err != nil {
		return q, err
	}
	return q, nil
}

func parseIntParam(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewFieldError(field, "must be an integer")
	}
	if n < 1 {
		return 0, NewFieldError(field, "must be at least 1")
	}
	return n, nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// parseDateParam accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func parseDateParam(field, s string, endOfDay bool) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, NewFieldError(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// MatchEvent evaluates f against a single event. Stores that cannot push the
// filter down use it directly.
func MatchEvent(e *Event, f *EventFilter) bool {
	if f.SearchText != "" {
		term := strings.ToLower(f.SearchText)
		if !containsFold(e.Title, term) && !containsFold(e.Description, term) &&
			!containsFold(string(e.Category), term) && !containsFold(string(e.ArtType), term) {
			return false
		}
	}
	if f.ArtType != "" && e.ArtType != f.ArtType {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Location != "" && !containsFold(e.Location, strings.ToLower(f.Location)) {
		return false
	}
	if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Date.After(*f.DateTo) {
		return false
	}
	if f.UpcomingOnly && e.Date.Before(f.Now) {
		return false
	}
	switch f.Price {
	case PriceFree:
		if !e.IsFree() {
			return false
		}
	case PricePaid:
		if e.IsFree() {
			return false
		}
	}
	if f.Featured != nil && e.Featured != *f.Featured {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.OrganizerID != uuid.Nil && e.OrganizerID != f.OrganizerID {
		return false
	}
	return true
}

func containsFold(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

// SortEvents orders events in place. Every order ends in created_at then id
// so the result is total.
func SortEvents(events []Event, order SortOrder) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		switch order {
		case SortFeaturedFirst:
			if a.Featured != b.Featured {
				return a.Featured
			}
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case SortNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID.String() < b.ID.String()
		default:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// PageOf slices an already filtered and sorted list.
func PageOf(events []Event, p Pagination) []Event {
	start := p.Offset()
	if start < 0 || start >= len(events) {
		return []Event{}
	}
	end := start + p.Limit
	if end > len(events) {
		end = len(events)
	}
	out := make([]Event, end-start)
	copy(out, events[start:end])
	return out
}

// PageParams is the query-string form of Pagination.
type PageParams struct {
	Page  string `form:"page"`
	Limit string `form:"limit"`
}

func (p PageParams) Pagination() (Pagination, error) {
	var (
		out Pagination
		err error
	)
	if out.Page, err = parseIntParam("page", p.Page); err != nil {
		return out, err
	}
	if out.Limit, err = parseIntParam("limit", p.Limit); err != nil {
		return out, err
	}
	return out, out.Normalize()
}
