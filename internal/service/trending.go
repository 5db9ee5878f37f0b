package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rameshbgm/belgaum-today-sub000/config"
	"github.com/rameshbgm/belgaum-today-sub000/internal/llm"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

const trendingConcurrency = 2

// CategoryReport 单个分类的排名结果
type CategoryReport struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Path     Path   `json:"path"`
	Error    string `json:"error,omitempty"`
}

// TrendingReport 一次热门分析的汇总
type TrendingReport struct {
	CategoriesProcessed int              `json:"categoriesProcessed"`
	TotalTrending       int              `json:"totalTrending"`
	Categories          []CategoryReport `json:"categories"`
}

// TrendingService 为每个分类生成热门排名并整体替换旧排名
type TrendingService struct {
	db       *gorm.DB
	registry *FeedRegistry
	analyzer *Analyzer
	calls    *CallLogger
	cfg      config.TrendingConfig
	limiter  *rate.Limiter
	log      *zap.Logger
	now      func() time.Time
}

func NewTrendingService(db *gorm.DB, registry *FeedRegistry, analyzer *Analyzer, calls *CallLogger, cfg config.TrendingConfig, log *zap.Logger) *TrendingService {
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = 10
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 30
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 48
	}
	limit := rate.Inf
	if cfg.MinCallInterval > 0 {
		limit = rate.Every(cfg.MinCallInterval)
	}
	return &TrendingService{
		db:       db,
		registry: registry,
		analyzer: analyzer,
		calls:    calls,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With(zap.String("component", "trending")),
		now:      time.Now,
	}
}

// Run 分析指定分类,为空时分析全部已知分类
func (s *TrendingService) Run(ctx context.Context, categories []string) (*TrendingReport, error) {
	categories = normalizeCategories(categories)
	if len(categories) == 0 {
		all, err := s.registry.Categories(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve categories: %w", err)
		}
		categories = all
	}

	instructions := llm.GetSetting(ctx, s.db, model.SettingTrendingPrompt)

	reports := make([]CategoryReport, len(categories))
	var g errgroup.Group
	g.SetLimit(trendingConcurrency)
	for i, category := range categories {
		g.Go(func() error {
			r, err := s.analyzeCategory(ctx, category, instructions)
			reports[i] = r
			return err
		})
	}
	err := g.Wait()

	report := &TrendingReport{Categories: reports}
	for _, r := range reports {
		if r.Error != "" {
			continue
		}
		report.CategoriesProcessed++
		report.TotalTrending += r.Count
	}
	s.log.Info("trending run finished",
		zap.Int("categories", report.CategoriesProcessed),
		zap.Int("total", report.TotalTrending))
	return report, err
}

func (s *TrendingService) analyzeCategory(ctx context.Context, category, instructions string) (CategoryReport, error) {
	report := CategoryReport{Category: category}

	candidates, err := s.Candidates(ctx, category)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("load candidates for %s: %w", category, err)
	}

	// 只对真正需要调用模型的分类限速
	if len(candidates) > s.cfg.TargetCount {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("rate limiter wait", zap.String("category", category), zap.Error(err))
		}
	}

	analysis := s.analyzer.Analyze(ctx, Request{
		Category:     category,
		Candidates:   candidates,
		Target:       s.cfg.TargetCount,
		Instructions: instructions,
	})
	report.Path = analysis.Path
	report.Count = len(analysis.Results)

	bg := context.WithoutCancel(ctx)
	if err := s.replace(bg, category, analysis.Results); err != nil {
		analysis.Call.Status = model.CallError
		if analysis.Call.ErrorMessage != "" {
			analysis.Call.ErrorMessage += "; "
		}
		analysis.Call.ErrorMessage += "persist: " + err.Error()
		s.record(bg, &analysis.Call)
		report.Error = err.Error()
		report.Count = 0
		return report, fmt.Errorf("persist trending for %s: %w", category, err)
	}
	s.record(bg, &analysis.Call)

	s.log.Info("category ranked",
		zap.String("category", category),
		zap.String("path", string(analysis.Path)),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", report.Count))
	return report, nil
}

func (s *TrendingService) record(ctx context.Context, call *model.AnalyzerCallLog) {
	if err := s.calls.Record(ctx, call); err != nil {
		s.log.Error("record analyzer call", zap.String("category", call.Category), zap.Error(err))
	}
}

// Candidates 分类下回溯窗口内最新发布的文章
func (s *TrendingService) Candidates(ctx context.Context, category string) ([]Candidate, error) {
	since := s.now().Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)

	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("category = ? AND status = ? AND published_at >= ?", category, model.ArticlePublished, since).
		Order("published_at DESC").
		Order("id DESC").
		Limit(s.cfg.PoolSize).
		Find(&articles).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(articles))
	for i, a := range articles {
		candidates[i] = Candidate{
			ID:          a.ID,
			Title:       a.Title,
			Excerpt:     a.Excerpt,
			Source:      a.SourceName,
			PublishedAt: a.PublishedAt,
		}
	}
	return candidates, nil
}

// replace 在一个事务中替换分类的排名,读者看不到新旧混合的结果
func (s *TrendingService) replace(ctx context.Context, category string, results []Ranked) error {
	analyzedAt := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category = ?", category).Delete(&model.TrendingResult{}).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		rows := make([]model.TrendingResult, len(results))
		for i, r := range results {
			rows[i] = model.TrendingResult{
				Category:   category,
				ArticleID:  r.ArticleID,
				Rank:       r.Rank,
				Score:      r.Score,
				Reasoning:  r.Reasoning,
				AnalyzedAt: analyzedAt,
			}
		}
		return tx.Create(&rows).Error
	})
}

// Current 当前持久化的排名
func (s *TrendingService) Current(ctx context.Context, category string) ([]model.TrendingResult, error) {
	var results []model.TrendingResult
	err := s.db.WithContext(ctx).
		Preload("Article").
		Where("category = ?", category).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).
		Find(&results).Error
	return results, err
}
