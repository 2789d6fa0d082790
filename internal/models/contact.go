package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContactStatus string

const (
	ContactUnread  ContactStatus = "unread"
	ContactRead    ContactStatus = "read"
	ContactReplied ContactStatus = "replied"
)

func ParseContactStatus(s string) (ContactStatus, error) {
	switch st := ContactStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ContactUnread, ContactRead, ContactReplied:
		return st, nil
	}
	return "", NewFieldError("status", "must be one of unread, read, replied")
}

type ContactMessage struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Email     string        `db:"email" json:"email"`
	Phone     string        `db:"phone" json:"phone,omitempty"`
	Subject   string        `db:"subject" json:"subject"`
	Category  string        `db:"category" json:"category"`
	Message   string        `db:"message" json:"message"`
	Status    ContactStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

type ContactInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,cm_phone"`
	Subject  string `json:"subject" validate:"required,max=200"`
	Category string `json:"category" validate:"required,oneof=technical events account billing partnership general"`
	Message  string `json:"message" validate:"required,max=5000"`
}

func (in *ContactInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	in.Subject = strings.TrimSpace(in.Subject)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Message = strings.TrimSpace(in.Message)
}

func (in *ContactInput) Validate() error {
	return ValidationError(Validate.Struct(in))
}

func (in *ContactInput) ToMessage(now time.Time) *ContactMessage {
	return &ContactMessage{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Subject:   in.Subject,
		Category:  in.Category,
		Message:   in.Message,
		Status:    ContactUnread,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type ContactRepo interface {
	CreateContactMessage(ctx context.Context, msg *ContactMessage) (*ContactMessage, error)
	// ListContactMessages filters by status when it is non-empty, newest first.
	ListContactMessages(ctx context.Context, status ContactStatus, page Pagination) ([]ContactMessage, int64, error)
	SetContactStatus(ctx context.Context, id uuid.UUID, status ContactStatus, now time.Time) (*ContactMessage, error)
}
