package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

type StatusService struct {
	db  *gorm.DB
	now func() time.Time
}

type SystemStatus struct {
	// 文章统计
	TotalArticles     int64 `json:"total_articles"`
	PublishedArticles int64 `json:"published_articles"`

	// 订阅源统计
	TotalFeeds  int64 `json:"total_feeds"`
	ActiveFeeds int64 `json:"active_feeds"`
	DueFeeds    int   `json:"due_feeds"`

	// 热门排名
	TrendingCategories int64 `json:"trending_categories"`

	LastRun *model.IngestionRun `json:"last_run,omitempty"`

	// 定时任务信息
	NextFetchTime    time.Time `json:"next_fetch_time"`
	NextTrendingTime time.Time `json:"next_trending_time"`
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db, now: time.Now}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	status := &SystemStatus{}
	db := s.db.WithContext(ctx)

	// 统计文章
	if err := db.Model(&model.Article{}).Count(&status.TotalArticles).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Article{}).Where("status = ?", model.ArticlePublished).Count(&status.PublishedArticles).Error; err != nil {
		return nil, err
	}

	// 统计订阅源
	var feeds []model.Feed
	if err := db.Find(&feeds).Error; err != nil {
		return nil, err
	}
	now := s.now()
	status.TotalFeeds = int64(len(feeds))
	for _, f := range feeds {
		if f.IsActive {
			status.ActiveFeeds++
		}
		if f.IsDue(now) {
			status.DueFeeds++
		}
	}

	if err := db.Model(&model.TrendingResult{}).Distinct("category").Count(&status.TrendingCategories).Error; err != nil {
		return nil, err
	}

	var last model.IngestionRun
	err := db.Order("started_at DESC").First(&last).Error
	switch {
	case err == nil:
		status.LastRun = &last
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return status, nil
}
