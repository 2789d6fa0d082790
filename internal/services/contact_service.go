package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/rondpoint/internal/models"
)

type ContactService struct {
	contactRepo models.ContactRepo
	logger      *slog.Logger
	now         func() time.Time
}

func NewContactService(d Deps) *ContactService {
	d = d.withDefaults()
	return &ContactService{contactRepo: d.Store, logger: d.Logger, now: d.Now}
}

func (cs *ContactService) Submit(ctx context.Context, in *models.ContactInput) (*models.ContactMessage, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	msg, err := cs.contactRepo.CreateContactMessage(ctx, in.ToMessage(cs.now()))
	if err != nil {
		return nil, fmt.Errorf("services.ContactService.Submit: %w", err)
	}
	cs.logger.Info("contact message received", "op", "services.ContactService.Submit", "message_id", msg.ID, "category", msg.Category)
	return msg, nil
}
