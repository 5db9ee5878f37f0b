package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
	"github.com/rameshbgm/belgaum-today-sub000/internal/service"
)

// IngestRunner 执行一次抓取
type IngestRunner interface {
	Run(ctx context.Context, scope service.Scope, trigger model.TriggerKind) (*model.IngestionRun, error)
}

// TrendingRunner 执行一次热门分析
type TrendingRunner interface {
	Run(ctx context.Context, categories []string) (*service.TrendingReport, error)
}

type Scheduler struct {
	cron            *cron.Cron
	ingestion       IngestRunner
	trending        TrendingRunner
	ingestSpec      string
	trendingSpec    string
	log             *zap.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	fetchEntryID    cron.EntryID
	trendingEntryID cron.EntryID
}

func NewScheduler(ingestion IngestRunner, trending TrendingRunner, ingestSpec, trendingSpec string, log *zap.Logger) *Scheduler {
	log = log.With(zap.String("component", "scheduler"))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// 上一次还没结束时跳过本次,避免同一任务并发执行
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
		ingestion:    ingestion,
		trending:     trending,
		ingestSpec:   ingestSpec,
		trendingSpec: trendingSpec,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Scheduler) Start() error {
	var err error

	// RSS抓取任务
	s.fetchEntryID, err = s.cron.AddFunc(s.ingestSpec, s.runIngestion)
	if err != nil {
		return fmt.Errorf("ingestion schedule %q: %w", s.ingestSpec, err)
	}

	// 热门分析任务
	if s.trendingSpec != "" {
		s.trendingEntryID, err = s.cron.AddFunc(s.trendingSpec, s.runTrending)
		if err != nil {
			return fmt.Errorf("trending schedule %q: %w", s.trendingSpec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("ingestion", s.ingestSpec), zap.String("trending", s.trendingSpec))
	return nil
}

func (s *Scheduler) runIngestion() {
	s.log.Info("scheduled ingestion")
	if _, err := s.ingestion.Run(s.ctx, service.Scope{}, model.TriggerScheduled); err != nil {
		s.log.Error("scheduled ingestion failed", zap.Error(err))
	}
}

func (s *Scheduler) runTrending() {
	s.log.Info("scheduled trending analysis")
	if _, err := s.trending.Run(s.ctx, nil); err != nil {
		s.log.Error("scheduled trending failed", zap.Error(err))
	}
}

// GetNextFetchTime 获取下次抓取时间
func (s *Scheduler) GetNextFetchTime() time.Time {
	return s.cron.Entry(s.fetchEntryID).Next
}

// GetNextTrendingTime 获取下次热门分析时间
func (s *Scheduler) GetNextTrendingTime() time.Time {
	return s.cron.Entry(s.trendingEntryID).Next
}

// Stop 停止调度并等待正在执行的任务,超过 ctx 期限时取消任务
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
	}
	s.cancel()
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
