package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
	"github.com/rameshbgm/belgaum-today-sub000/internal/service"
)

type recorder struct {
	mu       sync.Mutex
	scopes   []service.Scope
	triggers []model.TriggerKind
}

func (r *recorder) Run(ctx context.Context, scope service.Scope, trigger model.TriggerKind) (*model.IngestionRun, error) {
	r.mu.Lock()
	r.scopes = append(r.scopes, scope)
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	return &model.IngestionRun{}, nil
}

type trendingRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *trendingRecorder) Run(ctx context.Context, categories []string) (*service.TrendingReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, categories)
	return &service.TrendingReport{}, nil
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(&recorder{}, &trendingRecorder{}, "not a cron", "0 * * * *", zap.NewNop())
	assert.Error(t, s.Start())
}

func TestSchedulerNextTimes(t *testing.T) {
	s := NewScheduler(&recorder{}, &trendingRecorder{}, "*/15 * * * *", "0 * * * *", zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	now := time.Now()
	next := s.GetNextFetchTime()
	assert.True(t, next.After(now))
	assert.LessOrEqual(t, next.Sub(now), 15*time.Minute)
	assert.Zero(t, next.Minute()%15)

	trending := s.GetNextTrendingTime()
	assert.True(t, trending.After(now))
	assert.Zero(t, trending.Minute())
}

func TestScheduledJobsUseScheduledTrigger(t *testing.T) {
	ing := &recorder{}
	tr := &trendingRecorder{}
	s := NewScheduler(ing, tr, "@every 1h", "@every 1h", zap.NewNop())

	s.runIngestion()
	s.runTrending()

	require.Len(t, ing.triggers, 1)
	assert.Equal(t, model.TriggerScheduled, ing.triggers[0])
	assert.True(t, ing.scopes[0].IsAll())
	require.Len(t, tr.calls, 1)
	assert.Nil(t, tr.calls[0])
}

func TestStopCancelsJobContext(t *testing.T) {
	s := NewScheduler(&recorder{}, &trendingRecorder{}, "@every 1h", "", zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop(context.Background())
	assert.Error(t, s.ctx.Err())
	assert.True(t, s.GetNextTrendingTime().IsZero())
}
