package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// NotificationRetention deletes read notifications older than the retention
// window. Unread notifications are never touched.
type NotificationRetention struct {
	store     repositories.Store
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationRetention(store repositories.Store, retentionDays int, logger *zap.Logger) *NotificationRetention {
	return &NotificationRetention{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.Named("retention"),
		now:       time.Now,
	}
}

// Run performs one sweep.
func (j *NotificationRetention) Run(ctx context.Context) {
	cutoff := j.now().Add(-j.retention)

	count, err := j.store.Notifications().DeleteReadBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge read notifications", zap.Error(err))
		return
	}
	observability.AddCleanupRows("notification", count)
	j.logger.Info("purged read notifications", zap.Int64("count", count), zap.Time("cutoff", cutoff))
}

// Schedule registers the job on c with a cron spec such as "@daily".
func (j *NotificationRetention) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		j.Run(ctx)
	})
}
