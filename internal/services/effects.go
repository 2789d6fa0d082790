package services

import (
	"context"
	"log/slog"

	"github.com/joshua-takyi/rondpoint/internal/cache"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/metrics"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

// effects runs what follows a committed write: cache invalidation, broker
// messages and the moderation audit. None of them fail the request.
type effects struct {
	cache    cache.Discovery
	notifier messaging.Notifier
	audit    models.AuditRepo
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newEffects(d Deps) effects {
	return effects{
		cache:    d.Cache,
		notifier: d.Notifier,
		audit:    d.Docs,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

func (fx *effects) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	found, err := fx.cache.Get(ctx, key, dst)
	switch {
	case err != nil:
		fx.logger.Warn("discovery cache read failed", "key", key, "error", err)
		fx.metrics.CacheLookup("error")
	case found:
		fx.metrics.CacheLookup("hit")
	default:
		fx.metrics.CacheLookup("miss")
	}
	return err == nil && found
}

func (fx *effects) cacheSet(ctx context.Context, key string, value interface{}) {
	if err := fx.cache.Set(ctx, key, value); err != nil {
		fx.logger.Warn("discovery cache write failed", "key", key, "error", err)
	}
}

func (fx *effects) invalidate(ctx context.Context, op string) {
	if err := fx.cache.Invalidate(ctx); err != nil {
		fx.logger.Warn("discovery cache invalidation failed", "op", op, "error", err)
	}
}

func (fx *effects) publish(ctx context.Context, op string, topic messaging.Topic, data interface{}) {
	if err := fx.notifier.Publish(ctx, topic, requestID(ctx), data); err != nil {
		fx.logger.Warn("failed to publish message", "op", op, "topic", topic, "error", err)
	}
}

func (fx *effects) recordAudit(ctx context.Context, op string, entry *models.AuditEntry) {
	if fx.audit == nil {
		return
	}
	if err := fx.audit.AppendAudit(ctx, entry); err != nil {
		fx.logger.Error("failed to append moderation audit", "op", op, "event_id", entry.EventID, "action", entry.Action, "error", err)
	}
}

// eventWritten invalidates discovery pages and announces the change.
func (fx *effects) eventWritten(ctx context.Context, op string, topic messaging.Topic, e *models.Event) {
	fx.invalidate(ctx, op)
	fx.publish(ctx, op, topic, e)
}
