package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

type FavouriteService struct {
	favouritesRepo models.FavouriteRepo
	eventRepo      models.EventRepo
	now            func() time.Time
}

func NewFavouriteService(d Deps) *FavouriteService {
	d = d.withDefaults()
	return &FavouriteService{
		favouritesRepo: d.Docs,
		eventRepo:      d.Store,
		now:            d.Now,
	}
}

// AddToFavourites saves an event the caller can see.
func (fs *FavouriteService) AddToFavourites(ctx context.Context, actor *models.Actor, eventID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if eventID == uuid.Nil {
		return models.NewFieldError("id", "invalid event id")
	}
	e, err := fs.eventRepo.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !e.VisibleTo(actor) {
		return fmt.Errorf("event %w", models.ErrNotFound)
	}
	if _, err := fs.favouritesRepo.AddFavourite(ctx, actor.UserID, eventID, fs.now()); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (fs *FavouriteService) RemoveFromFavourites(ctx context.Context, actor *models.Actor, eventID uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if eventID == uuid.Nil {
		return models.NewFieldError("id", "invalid event id")
	}
	if err := fs.favouritesRepo.RemoveFavourite(ctx, actor.UserID, eventID, fs.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove saved event: %w", err)
	}
	return nil
}

// GetFavourites resolves the saved ids into events. Events deleted since, or
// no longer visible to the caller, are skipped.
func (fs *FavouriteService) GetFavourites(ctx context.Context, actor *models.Actor) ([]models.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	fav, err := fs.favouritesRepo.GetFavourites(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved events: %w", err)
	}

	events := make([]models.Event, 0, len(fav.EventIDs()))
	for _, id := range fav.EventIDs() {
		e, err := fs.eventRepo.GetEventByID(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load saved event %s: %w", id, err)
		}
		if e.VisibleTo(actor) {
			events = append(events, *e)
		}
	}
	return events, nil
}
