package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
)

func TestRetentionRunUsesCutoff(t *testing.T) {
	store := mocks.NewStoreMock()
	job := NewNotificationRetention(store, 30, zap.NewNop())
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	want := now.AddDate(0, 0, -30)
	store.NotificationRepo.On("DeleteReadBefore", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Equal(want)
	})).Return(int64(4), nil).Once()

	job.Run(context.Background())
	store.AssertExpectations(t)
}

func TestRetentionRunSwallowsErrors(t *testing.T) {
	store := mocks.NewStoreMock()
	job := NewNotificationRetention(store, 1, zap.NewNop())

	store.NotificationRepo.On("DeleteReadBefore", mock.Anything, mock.Anything).Return(int64(0), assert.AnError).Once()

	assert.NotPanics(t, func() { job.Run(context.Background()) })
	store.AssertExpectations(t)
}

func TestRetentionSchedule(t *testing.T) {
	job := NewNotificationRetention(mocks.NewStoreMock(), 30, zap.NewNop())
	c := cron.New()

	_, err := job.Schedule(c, "@daily")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = job.Schedule(c, "every tuesday")
	assert.Error(t, err)
}
