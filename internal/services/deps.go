package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joshua-takyi/rondpoint/internal/cache"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/metrics"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
)

// Deps bundles the collaborators the services share. Optional ones fall
// back to no-op implementations.
type Deps struct {
	Store    models.Store
	Docs     models.DocumentStore
	Cache    cache.Discovery
	Notifier messaging.Notifier
	Images   helpers.ImageUploader
	Gateway  payments.Gateway
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time

	WebhookSecret string
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = messaging.Nop{}
	}
	if d.Images == nil {
		d.Images = helpers.NopUploader{}
	}
	if d.Gateway == nil {
		d.Gateway = payments.NewSandbox("")
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

type requestIDKey struct{}

// WithRequestID tags ctx so published messages carry the request id as
// their correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requireActor(actor *models.Actor) error {
	if actor == nil {
		return models.ErrUnauthenticated
	}
	return nil
}

func requireAdmin(actor *models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("admin access required: %w", models.ErrForbidden)
	}
	return nil
}
