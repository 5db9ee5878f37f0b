package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

// Scope 一次抓取的范围;两者都为空表示全部到期的订阅源
type Scope struct {
	FeedIDs    []uint   `json:"feedIds"`
	Categories []string `json:"categories"`
}

func (s Scope) IsAll() bool {
	return len(s.FeedIDs) == 0 && len(s.Categories) == 0
}

// FeedRegistry 订阅源的数据访问,不含业务逻辑
type FeedRegistry struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewFeedRegistry(db *gorm.DB, log *zap.Logger) *FeedRegistry {
	return &FeedRegistry{db: db, log: log.With(zap.String("component", "registry"))}
}

// List 获取全部订阅源
func (r *FeedRegistry) List(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	err := r.db.WithContext(ctx).Order("category, name").Find(&feeds).Error
	return feeds, err
}

// Get 按 ID 获取订阅源
func (r *FeedRegistry) Get(ctx context.Context, id uint) (*model.Feed, error) {
	var feed model.Feed
	if err := r.db.WithContext(ctx).First(&feed, id).Error; err != nil {
		return nil, err
	}
	return &feed, nil
}

// ListDue 获取 now 时刻到期的启用订阅源
func (r *FeedRegistry) ListDue(ctx context.Context, now time.Time) ([]model.Feed, error) {
	var active []model.Feed
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&active).Error; err != nil {
		return nil, err
	}

	due := make([]model.Feed, 0, len(active))
	for _, f := range active {
		if f.IsDue(now) {
			due = append(due, f)
		}
	}
	return due, nil
}

// ListByIDs 手动指定的订阅源总是执行,不检查启用状态和到期时间
func (r *FeedRegistry) ListByIDs(ctx context.Context, ids []uint) ([]model.Feed, error) {
	var feeds []model.Feed
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&feeds).Error
	return feeds, err
}

// ListByCategories 获取指定分类下的启用订阅源,不检查到期时间
func (r *FeedRegistry) ListByCategories(ctx context.Context, categories []string) ([]model.Feed, error) {
	var feeds []model.Feed
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND category IN ?", true, categories).
		Order("id").
		Find(&feeds).Error
	return feeds, err
}

// Resolve 根据范围解析出本次要抓取的订阅源
func (r *FeedRegistry) Resolve(ctx context.Context, scope Scope, now time.Time) ([]model.Feed, error) {
	switch {
	case len(scope.FeedIDs) > 0:
		return r.ListByIDs(ctx, scope.FeedIDs)
	case len(scope.Categories) > 0:
		return r.ListByCategories(ctx, scope.Categories)
	default:
		return r.ListDue(ctx, now)
	}
}

// MarkFetched 更新最后抓取时间
func (r *FeedRegistry) MarkFetched(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Feed{}).Where("id = ?", id).Update("last_fetched_at", at).Error
}

// Categories 已知分类:启用订阅源的分类与已发布文章的分类
func (r *FeedRegistry) Categories(ctx context.Context) ([]string, error) {
	var fromFeeds, fromArticles []string
	if err := r.db.WithContext(ctx).Model(&model.Feed{}).
		Where("is_active = ?", true).
		Distinct().Pluck("category", &fromFeeds).Error; err != nil {
		return nil, fmt.Errorf("feed categories: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&model.Article{}).
		Where("status = ?", model.ArticlePublished).
		Distinct().Pluck("category", &fromArticles).Error; err != nil {
		return nil, fmt.Errorf("article categories: %w", err)
	}
	return normalizeCategories(append(fromFeeds, fromArticles...)), nil
}

func normalizeCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

type seedFile struct {
	Feeds []struct {
		Name                 string `yaml:"name"`
		URL                  string `yaml:"url"`
		Category             string `yaml:"category"`
		FetchIntervalMinutes int    `yaml:"fetch_interval_minutes"`
		Disabled             bool   `yaml:"disabled"`
	} `yaml:"feeds"`
}

// Seed 从 YAML 文件导入订阅源,已存在的 URL 不会被修改
func (r *FeedRegistry) Seed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Info("feeds file not found, skip seeding", zap.String("path", path))
			return 0, nil
		}
		return 0, err
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	created := 0
	for _, f := range file.Feeds {
		if f.URL == "" || f.Category == "" {
			r.log.Warn("skip invalid seed feed", zap.String("name", f.Name), zap.String("url", f.URL))
			continue
		}
		interval := f.FetchIntervalMinutes
		if interval <= 0 {
			interval = model.DefaultFetchInterval
		}
		feed := model.Feed{
			Name:                 f.Name,
			URL:                  f.URL,
			Category:             f.Category,
			FetchIntervalMinutes: interval,
			IsActive:             !f.Disabled,
		}
		var existing int64
		if err := r.db.WithContext(ctx).Model(&model.Feed{}).Where("url = ?", f.URL).Count(&existing).Error; err != nil {
			return created, fmt.Errorf("seed %s: %w", f.URL, err)
		}
		if existing > 0 {
			continue
		}
		if err := r.db.WithContext(ctx).Create(&feed).Error; err != nil {
			return created, fmt.Errorf("seed %s: %w", f.URL, err)
		}
		created++
		// is_active 默认为 true,零值不会写入
		if f.Disabled {
			if err := r.db.WithContext(ctx).Model(&feed).Update("is_active", false).Error; err != nil {
				return created, fmt.Errorf("disable %s: %w", f.URL, err)
			}
		}
	}
	return created, nil
}
