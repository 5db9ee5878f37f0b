package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/fetcher"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

const (
	maxTitleRunes     = 500
	maxInsertAttempts = 3
)

// FeedFetcher 抓取单个订阅源,不返回错误
type FeedFetcher interface {
	Fetch(ctx context.Context, feed model.Feed) fetcher.Result
}

// IngestionService 抓取订阅源并去重入库
type IngestionService struct {
	db          *gorm.DB
	registry    *FeedRegistry
	fetcher     FeedFetcher
	runs        *RunLogger
	log         *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewIngestionService(db *gorm.DB, registry *FeedRegistry, f FeedFetcher, runs *RunLogger, concurrency int, log *zap.Logger) *IngestionService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &IngestionService{
		db:          db,
		registry:    registry,
		fetcher:     f,
		runs:        runs,
		log:         log.With(zap.String("component", "ingestion")),
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run 执行一次抓取。只有存储不可用等内部错误才会返回 error,
// 单个订阅源或条目的失败记录在运行日志中。
func (s *IngestionService) Run(ctx context.Context, scope Scope, trigger model.TriggerKind) (*model.IngestionRun, error) {
	startedAt := s.now()

	feeds, err := s.registry.Resolve(ctx, scope, startedAt)
	if err != nil {
		return nil, fmt.Errorf("resolve feeds: %w", err)
	}

	run, err := s.runs.Start(ctx, trigger, startedAt)
	if err != nil {
		return nil, err
	}
	s.log.Info("ingestion run started",
		zap.String("run_id", run.RunID),
		zap.String("trigger", string(trigger)),
		zap.Int("feeds", len(feeds)))

	// 每个订阅源只写自己的槽位,Wait 之后再汇总
	slots := make([]*model.FeedIngestionLog, len(feeds))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, feed := range feeds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = s.ingestFeed(ctx, run.RunID, feed)
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]model.RunStatus, 0, len(slots))
	for _, fl := range slots {
		if fl == nil {
			continue
		}
		run.FeedsProcessed++
		run.ItemsFetched += fl.ItemsFetched
		run.ItemsNew += fl.ItemsNew
		run.ItemsSkipped += fl.ItemsSkipped
		run.ItemsErrored += fl.ItemsErrored
		statuses = append(statuses, fl.Status)
		run.FeedLogs = append(run.FeedLogs, *fl)
	}
	run.Status = model.AggregateStatus(statuses)
	if err := ctx.Err(); err != nil {
		skipped := len(feeds) - run.FeedsProcessed
		run.ErrorMessage = fmt.Sprintf("run interrupted: %v (%d feeds skipped)", err, skipped)
		if skipped > 0 && run.Status == model.RunSuccess {
			run.Status = model.RunPartial
		}
	}
	finishedAt := s.now()
	run.FinishedAt = &finishedAt
	run.DurationMs = finishedAt.Sub(startedAt).Milliseconds()

	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		return run, err
	}

	s.log.Info("ingestion run finished",
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)),
		zap.Int("feeds", run.FeedsProcessed),
		zap.Int("new", run.ItemsNew),
		zap.Int("skipped", run.ItemsSkipped),
		zap.Int("errors", run.ItemsErrored),
		zap.Int64("duration_ms", run.DurationMs))
	return run, nil
}

// ingestFeed 抓取并顺序处理单个订阅源的条目
func (s *IngestionService) ingestFeed(ctx context.Context, runID string, feed model.Feed) *model.FeedIngestionLog {
	start := time.Now()
	log := s.log.With(zap.Uint("feed_id", feed.ID), zap.String("feed", feed.Name))

	res := s.fetcher.Fetch(ctx, feed)
	fl := &model.FeedIngestionLog{
		RunID:        runID,
		FeedID:       feed.ID,
		FeedName:     feed.Name,
		FeedURL:      feed.URL,
		Strategy:     res.Strategy,
		ItemsFetched: len(res.Items),
	}

	outcomes := make([]model.ItemOutcome, 0, len(res.Items))
	for i, item := range res.Items {
		var o model.ItemOutcome
		if err := ctx.Err(); err != nil {
			o = errorOutcome(item, fmt.Sprintf("not processed: %v", err))
		} else {
			o = s.ingestItem(ctx, feed, item)
		}
		o.RunID = runID
		o.FeedID = feed.ID
		o.Position = i

		switch o.Action {
		case model.ActionNew:
			fl.ItemsNew++
		case model.ActionSkipped:
			fl.ItemsSkipped++
		default:
			fl.ItemsErrored++
			log.Debug("item failed", zap.String("link", o.Link), zap.String("reason", o.Reason))
		}
		outcomes = append(outcomes, o)
	}

	fl.Status = model.StatusFromCounts(fl.ItemsFetched, fl.ItemsErrored)
	if fetchErr := res.Err(); fetchErr != nil {
		fl.Status = model.RunError
		fl.ErrorMessage = fetchErr.Error()
		log.Warn("feed fetch failed", zap.Error(fetchErr))
	}

	// 即使失败也更新抓取时间,避免坏掉的订阅源每个周期都被重试
	bg := context.WithoutCancel(ctx)
	if err := s.registry.MarkFetched(bg, feed.ID, s.now()); err != nil {
		log.Error("mark feed fetched", zap.Error(err))
	}

	fl.DurationMs = time.Since(start).Milliseconds()
	if err := s.runs.RecordFeed(bg, fl, outcomes); err != nil {
		log.Error("record feed log", zap.Error(err))
	}
	fl.Outcomes = outcomes

	log.Info("feed processed",
		zap.String("strategy", fl.Strategy),
		zap.String("status", string(fl.Status)),
		zap.Int("fetched", fl.ItemsFetched),
		zap.Int("new", fl.ItemsNew),
		zap.Int("skipped", fl.ItemsSkipped),
		zap.Int("errors", fl.ItemsErrored))
	return fl
}

// ingestItem 校验、去重并插入单个条目
func (s *IngestionService) ingestItem(ctx context.Context, feed model.Feed, item fetcher.Item) model.ItemOutcome {
	title := fetcher.Truncate(strings.TrimSpace(item.Title), maxTitleRunes)
	link := strings.TrimSpace(item.Link)
	switch {
	case title == "":
		return errorOutcome(item, "validation failed: missing title")
	case link == "":
		return errorOutcome(item, "validation failed: missing link")
	}

	dup, err := s.isDuplicate(ctx, title, link)
	if err != nil {
		return errorOutcome(item, fmt.Sprintf("dedup check failed: %v", err))
	}
	if dup {
		return model.ItemOutcome{Title: title, Link: link, Action: model.ActionSkipped, Reason: model.ReasonDuplicate}
	}

	slug, err := uniqueSlug(ctx, s.db, title)
	if err != nil {
		return errorOutcome(item, err.Error())
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	feedID := feed.ID
	article := model.Article{
		FeedID:             &feedID,
		Title:              title,
		Slug:               slug,
		Excerpt:            item.Description,
		Content:            content,
		ImageURL:           item.ImageURL,
		Category:           feed.Category,
		SourceName:         item.SourceName,
		SourceURL:          &link,
		Status:             model.ArticlePublished,
		ReadingTimeMinutes: ReadingTime(fetcher.StripHTML(content)),
		PublishedAt:        item.PublishedAt,
	}
	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Create(&article).Error
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return errorOutcome(item, fmt.Sprintf("insert failed: %v", err))
		}

		// 唯一索引冲突:可能是另一个运行插入了同一篇文章,也可能只是 slug 相同
		dup, derr := s.isDuplicate(ctx, title, link)
		if derr != nil {
			return errorOutcome(item, fmt.Sprintf("dedup check failed: %v", derr))
		}
		if dup {
			return model.ItemOutcome{Title: title, Link: link, Action: model.ActionSkipped, Reason: model.ReasonDuplicate}
		}
		if attempt >= maxInsertAttempts {
			return errorOutcome(item, fmt.Sprintf("insert failed after %d attempts: %v", attempt, err))
		}
		article.ID = 0
		article.Slug = withSlugToken(Slugify(title))
	}

	return model.ItemOutcome{
		Title:     title,
		Link:      link,
		Action:    model.ActionNew,
		Reason:    model.ReasonInserted,
		ArticleID: &article.ID,
	}
}

// isDuplicate 按 source_url 或标题精确匹配
func (s *IngestionService) isDuplicate(ctx context.Context, title, link string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Article{}).
		Where("source_url = ?", link).
		Or("title = ?", title).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func errorOutcome(item fetcher.Item, reason string) model.ItemOutcome {
	return model.ItemOutcome{
		Title:  fetcher.Truncate(item.Title, maxTitleRunes),
		Link:   item.Link,
		Action: model.ActionError,
		Reason: reason,
	}
}
