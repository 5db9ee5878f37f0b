package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

var ErrRunNotFound = errors.New("ingestion run not found")

// RunLogger 记录抓取运行、每个订阅源的日志以及每个条目的处理结果
type RunLogger struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRunLogger(db *gorm.DB, log *zap.Logger) *RunLogger {
	return &RunLogger{db: db, log: log.With(zap.String("component", "runlog"))}
}

// Start 创建运行记录
func (l *RunLogger) Start(ctx context.Context, trigger model.TriggerKind, at time.Time) (*model.IngestionRun, error) {
	run := &model.IngestionRun{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Status:    model.RunRunning,
		StartedAt: at,
	}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}
	return run, nil
}

// RecordFeed 在一个事务中写入订阅源日志及其条目结果
func (l *RunLogger) RecordFeed(ctx context.Context, feedLog *model.FeedIngestionLog, outcomes []model.ItemOutcome) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Outcomes").Create(feedLog).Error; err != nil {
			return fmt.Errorf("create feed log: %w", err)
		}
		if len(outcomes) == 0 {
			return nil
		}
		for i := range outcomes {
			outcomes[i].FeedLogID = feedLog.ID
		}
		if err := tx.CreateInBatches(outcomes, 100).Error; err != nil {
			return fmt.Errorf("create item outcomes: %w", err)
		}
		return nil
	})
}

// Finish 写入汇总结果
func (l *RunLogger) Finish(ctx context.Context, run *model.IngestionRun) error {
	err := l.db.WithContext(ctx).Model(&model.IngestionRun{}).
		Where("run_id = ?", run.RunID).
		Updates(map[string]any{
			"feeds_processed": run.FeedsProcessed,
			"items_fetched":   run.ItemsFetched,
			"items_new":       run.ItemsNew,
			"items_skipped":   run.ItemsSkipped,
			"items_errored":   run.ItemsErrored,
			"status":          run.Status,
			"error_message":   run.ErrorMessage,
			"finished_at":     run.FinishedAt,
			"duration_ms":     run.DurationMs,
		}).Error
	if err != nil {
		return fmt.Errorf("finish ingestion run: %w", err)
	}
	return nil
}

// ListRuns 最近的运行记录
func (l *RunLogger) ListRuns(ctx context.Context, limit int) ([]model.IngestionRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []model.IngestionRun
	err := l.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRun 获取运行详情,包含订阅源日志与条目结果
func (l *RunLogger) GetRun(ctx context.Context, runID string) (*model.IngestionRun, error) {
	var run model.IngestionRun
	err := l.db.WithContext(ctx).
		Preload("FeedLogs", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("FeedLogs.Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("run_id = ?", runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
