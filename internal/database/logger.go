package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const slowThreshold = 500 * time.Millisecond

// GormLogger 将 gorm 日志转发到 zap
type GormLogger struct {
	log   *zap.Logger
	level gormLogger.LogLevel
}

var _ gormLogger.Interface = (*GormLogger)(nil)

// NewGormLogger 按配置级别创建 gorm 日志适配器
func NewGormLogger(log *zap.Logger, level string) *GormLogger {
	return &GormLogger{
		log:   log.With(zap.String("agg_type", "gorm")),
		level: parseGormLevel(level),
	}
}

func parseGormLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormLogger.Silent
	case "error", "fatal", "panic", "dpanic":
		return gormLogger.Error
	case "debug", "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	nl := *l
	nl.level = level
	return &nl
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

// Trace 记录 SQL 执行情况:错误、慢查询或 Info 级别下的全部语句
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormLogger.Error && !errors.Is(err, gormLogger.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error(err.Error(),
			zap.String("source", utils.FileWithLineNum()),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case elapsed > slowThreshold && l.level >= gormLogger.Warn:
		sql, rows := fc()
		l.log.Warn(fmt.Sprintf("SLOW SQL >= %v", slowThreshold),
			zap.String("source", utils.FileWithLineNum()),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	case l.level == gormLogger.Info:
		sql, rows := fc()
		l.log.Debug("sql",
			zap.String("source", utils.FileWithLineNum()),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	}
}
