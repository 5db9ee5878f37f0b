package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/database/dbtest"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

func TestGetSystemStatus(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	s := NewStatusService(db)
	s.now = fixedClock
	empty, err := s.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty.LastRun)

	feed := createFeed(t, db, "desk", "local")
	createFeed(t, db, "sports", "sports")
	require.NoError(t, db.Model(&feed).Update("last_fetched_at", testNow).Error)
	createArticle(t, db, "One", "local", model.ArticlePublished, 0)
	createArticle(t, db, "Two", "local", model.ArticleDraft, 0)
	require.NoError(t, db.Create(&model.TrendingResult{Category: "local", ArticleID: 1, Rank: 1}).Error)
	require.NoError(t, db.Create(&model.TrendingResult{Category: "local", ArticleID: 2, Rank: 2}).Error)

	runs := NewRunLogger(db, zap.NewNop())
	run, err := runs.Start(ctx, model.TriggerManual, testNow)
	require.NoError(t, err)

	status, err := s.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TotalArticles)
	assert.Equal(t, int64(1), status.PublishedArticles)
	assert.Equal(t, int64(2), status.TotalFeeds)
	assert.Equal(t, int64(2), status.ActiveFeeds)
	assert.Equal(t, 1, status.DueFeeds)
	assert.Equal(t, int64(1), status.TrendingCategories)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, run.RunID, status.LastRun.RunID)
}
