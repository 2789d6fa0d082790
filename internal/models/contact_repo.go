package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

func (su *SupabaseRepo) CreateContactMessage(ctx context.Context, msg *ContactMessage) (*ContactMessage, error) {
	raw, _, err := su.supabaseClient.From(ContactTable).
		Insert(msg, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to store contact message: %w", supabaseError(err))
	}
	return firstContact(raw)
}

func (su *SupabaseRepo) ListContactMessages(ctx context.Context, status ContactStatus, page Pagination) ([]ContactMessage, int64, error) {
	fb := su.supabaseClient.From(ContactTable).Select("*", "exact", false)
	if status != "" {
		fb = fb.Eq("status", string(status))
	}
	offset := page.Offset()
	raw, count, err := fb.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Range(offset, offset+page.Limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contact messages: %w", supabaseError(err))
	}
	msgs := []ContactMessage{}
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal contact messages: %v", err)
	}
	return msgs, count, nil
}

func (su *SupabaseRepo) SetContactStatus(ctx context.Context, id uuid.UUID, status ContactStatus, now time.Time) (*ContactMessage, error) {
	raw, _, err := su.supabaseClient.From(ContactTable).
		Update(map[string]interface{}{"status": status, "updated_at": now.UTC()}, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update contact message: %w", supabaseError(err))
	}
	return firstContact(raw)
}

func firstContact(raw []byte) (*ContactMessage, error) {
	var msgs []ContactMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact rows: %v", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("contact message %w", ErrNotFound)
	}
	return &msgs[0], nil
}
