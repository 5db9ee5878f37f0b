package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

// CallLogger 记录每次排名分析
type CallLogger struct {
	db *gorm.DB
}

func NewCallLogger(db *gorm.DB) *CallLogger {
	return &CallLogger{db: db}
}

func (c *CallLogger) Record(ctx context.Context, entry *model.AnalyzerCallLog) error {
	if err := c.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record analyzer call: %w", err)
	}
	return nil
}

// List 最近的调用日志,category 为空时不过滤
func (c *CallLogger) List(ctx context.Context, category string, limit int) ([]model.AnalyzerCallLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := c.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var logs []model.AnalyzerCallLog
	err := q.Find(&logs).Error
	return logs, err
}
