package models

import (
	"strings"
)

type ArtType string

const (
	ArtPainting     ArtType = "Painting"
	ArtSculpture    ArtType = "Sculpture"
	ArtPhotography  ArtType = "Photography"
	ArtDigital      ArtType = "Digital Art"
	ArtInstallation ArtType = "Installation"
	ArtPrintmaking  ArtType = "Printmaking"
	ArtVideo        ArtType = "Video Art"
	ArtTextile      ArtType = "Textile Arts"
	ArtCeramics     ArtType = "Ceramics"
	ArtDrawing      ArtType = "Drawing"
	ArtMixedMedia   ArtType = "Mixed Media"
	ArtPerformance  ArtType = "Performance Art"
	ArtArchitecture ArtType = "Architecture"
)

var ArtTypes = []ArtType{
	ArtPainting, ArtSculpture, ArtPhotography, ArtDigital, ArtInstallation, ArtPrintmaking, ArtVideo,
	ArtTextile, ArtCeramics, ArtDrawing, ArtMixedMedia, ArtPerformance, ArtArchitecture,
}

type Category string

const (
	CategoryVernissage      Category = "Vernissage"
	CategorySoloExhibition  Category = "Solo Exhibition"
	CategoryGroupExhibition Category = "Group Exhibition"
	CategoryRetrospective   Category = "Retrospective"
	CategoryArtFair         Category = "Art Fair"
	CategoryBiennial        Category = "Biennial/Triennial"
	CategoryOpenStudios     Category = "Open Studios"
	CategoryArtistTalk      Category = "Artist Talk"
	CategoryPanelDiscussion Category = "Panel Discussion"
	CategoryWorkshop        Category = "Workshop"
	CategoryArtAuction      Category = "Art Auction"
	CategoryPerformance     Category = "Performance"
	CategoryScreening       Category = "Screening"
	CategoryGalleryWalk     Category = "Gallery Walk"
)

var Categories = []Category{
	CategoryVernissage, CategorySoloExhibition, CategoryGroupExhibition, CategoryRetrospective,
	CategoryArtFair, CategoryBiennial, CategoryOpenStudios, CategoryArtistTalk, CategoryPanelDiscussion,
	CategoryWorkshop, CategoryArtAuction, CategoryPerformance, CategoryScreening, CategoryGalleryWalk,
}

type Role string

const (
	RoleVisitor   Role = "visitor"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

type EventStatus string

const (
	StatusDraft    EventStatus = "draft"
	StatusPending  EventStatus = "pending"
	StatusApproved EventStatus = "approved"
	StatusRejected EventStatus = "rejected"
)

var EventStatuses = []EventStatus{StatusDraft, StatusPending, StatusApproved, StatusRejected}

// PriceFilter narrows discovery to free or paid events.
type PriceFilter string

const (
	PriceAny  PriceFilter = ""
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

type SortOrder string

const (
	SortDate          SortOrder = "date"
	SortFeaturedFirst SortOrder = "featured"
	SortNewest        SortOrder = "newest"
)

// normalizeEnum folds case and the spacing around "/" so that
// "biennial / triennial" and "Biennial/Triennial" compare equal.
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " / ", "/")
	return strings.Join(strings.Fields(s), " ")
}

func ParseArtType(s string) (ArtType, error) {
	n := normalizeEnum(s)
	for _, a := range ArtTypes {
		if normalizeEnum(string(a)) == n {
			return a, nil
		}
	}
	return "", &FieldError{Field: "artType", Reason: "unrecognized art type " + quote(s)}
}

func ParseCategory(s string) (Category, error) {
	n := normalizeEnum(s)
	for _, c := range Categories {
		if normalizeEnum(string(c)) == n {
			return c, nil
		}
	}
	return "", &FieldError{Field: "category", Reason: "unrecognized category " + quote(s)}
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleVisitor, RoleOrganizer, RoleAdmin:
		return r, nil
	}
	return "", &FieldError{Field: "role", Reason: "must be one of visitor, organizer, admin"}
}

func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EventStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", &FieldError{Field: "status", Reason: "must be one of draft, pending, approved, rejected"}
}

func ParsePriceFilter(s string) (PriceFilter, error) {
	switch p := PriceFilter(strings.ToLower(strings.TrimSpace(s))); p {
	case PriceAny, PriceFree, PricePaid:
		return p, nil
	}
	return "", &FieldError{Field: "price", Reason: `must be "free" or "paid"`}
}

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortDate, SortFeaturedFirst, SortNewest:
		return o, nil
	}
	return "", &FieldError{Field: "sort", Reason: "must be one of date, featured, newest"}
}

// Valid reports whether a is one of the canonical art types.
func (a ArtType) Valid() bool {
	for _, known := range ArtTypes {
		if a == known {
			return true
		}
	}
	return false
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}
