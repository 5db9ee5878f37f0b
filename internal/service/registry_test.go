package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/database/dbtest"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

func at(t time.Time) *time.Time { return &t }

func feedIDs(feeds []model.Feed) []uint {
	ids := make([]uint, len(feeds))
	for i, f := range feeds {
		ids[i] = f.ID
	}
	return ids
}

func TestListDueBoundary(t *testing.T) {
	db := dbtest.Open(t)
	r := NewFeedRegistry(db, zap.NewNop())

	almost := model.Feed{Name: "almost", URL: "https://a.example.com/rss", Category: "local", FetchIntervalMinutes: 30, IsActive: true,
		LastFetchedAt: at(testNow.Add(-29 * time.Minute))}
	exact := model.Feed{Name: "exact", URL: "https://b.example.com/rss", Category: "local", FetchIntervalMinutes: 30, IsActive: true,
		LastFetchedAt: at(testNow.Add(-30 * time.Minute))}
	never := model.Feed{Name: "never", URL: "https://c.example.com/rss", Category: "local", FetchIntervalMinutes: 30, IsActive: true}
	inactive := model.Feed{Name: "inactive", URL: "https://d.example.com/rss", Category: "local", FetchIntervalMinutes: 30}
	for _, f := range []*model.Feed{&almost, &exact, &never, &inactive} {
		require.NoError(t, db.Create(f).Error)
	}
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	due, err := r.ListDue(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []uint{exact.ID, never.ID}, feedIDs(due))
}

func TestResolveExplicitScopeBypassesDueCheck(t *testing.T) {
	db := dbtest.Open(t)
	r := NewFeedRegistry(db, zap.NewNop())

	fresh := model.Feed{Name: "fresh", URL: "https://a.example.com/rss", Category: "sports", FetchIntervalMinutes: 30, IsActive: true,
		LastFetchedAt: at(testNow)}
	inactive := model.Feed{Name: "inactive", URL: "https://b.example.com/rss", Category: "sports", FetchIntervalMinutes: 30}
	require.NoError(t, db.Create(&fresh).Error)
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	ctx := context.Background()
	byID, err := r.Resolve(ctx, Scope{FeedIDs: []uint{fresh.ID, inactive.ID}}, testNow)
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	byCategory, err := r.Resolve(ctx, Scope{Categories: []string{"sports"}}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []uint{fresh.ID}, feedIDs(byCategory))

	all, err := r.Resolve(ctx, Scope{}, testNow)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMarkFetched(t *testing.T) {
	db := dbtest.Open(t)
	r := NewFeedRegistry(db, zap.NewNop())
	feed := model.Feed{Name: "f", URL: "https://a.example.com/rss", Category: "local", IsActive: true}
	require.NoError(t, db.Create(&feed).Error)

	require.NoError(t, r.MarkFetched(context.Background(), feed.ID, testNow))

	got, err := r.Get(context.Background(), feed.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastFetchedAt)
	assert.True(t, got.LastFetchedAt.Equal(testNow))
}

func TestCategoriesMergesFeedsAndArticles(t *testing.T) {
	db := dbtest.Open(t)
	r := NewFeedRegistry(db, zap.NewNop())

	require.NoError(t, db.Create(&model.Feed{Name: "a", URL: "https://a.example.com/rss", Category: "local", IsActive: true}).Error)
	off := model.Feed{Name: "b", URL: "https://b.example.com/rss", Category: "archive", IsActive: true}
	require.NoError(t, db.Create(&off).Error)
	require.NoError(t, db.Model(&off).Update("is_active", false).Error)
	require.NoError(t, db.Create(&model.Article{Title: "x", Slug: "x", Category: "business", Status: model.ArticlePublished, PublishedAt: testNow}).Error)
	require.NoError(t, db.Create(&model.Article{Title: "y", Slug: "y", Category: "drafts", Status: model.ArticleDraft, PublishedAt: testNow}).Error)

	cats, err := r.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"business", "local"}, cats)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	r := NewFeedRegistry(db, zap.NewNop())

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feeds:
  - name: Local Desk
    url: https://local.example.com/rss
    category: local
  - name: Sports Desk
    url: https://sports.example.com/rss
    category: sports
    fetch_interval_minutes: 60
    disabled: true
  - name: Broken
    url: ""
    category: local
`), 0o644))

	ctx := context.Background()
	n, err := r.Seed(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.Seed(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	feeds, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, model.DefaultFetchInterval, feeds[0].FetchIntervalMinutes)
	assert.True(t, feeds[0].IsActive)
	assert.Equal(t, 60, feeds[1].FetchIntervalMinutes)
	assert.False(t, feeds[1].IsActive)

	n, err = r.Seed(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
