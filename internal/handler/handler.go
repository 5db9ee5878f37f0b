package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
	"github.com/rameshbgm/belgaum-today-sub000/internal/service"
)

// Ingester 执行一次抓取
type Ingester interface {
	Run(ctx context.Context, scope service.Scope, trigger model.TriggerKind) (*model.IngestionRun, error)
}

// Ranker 执行热门分析并读取当前排名
type Ranker interface {
	Run(ctx context.Context, categories []string) (*service.TrendingReport, error)
	Current(ctx context.Context, category string) ([]model.TrendingResult, error)
}

// Schedule 定时任务的下次执行时间
type Schedule interface {
	GetNextFetchTime() time.Time
	GetNextTrendingTime() time.Time
}

type Deps struct {
	Registry  *service.FeedRegistry
	Runs      *service.RunLogger
	Calls     *service.CallLogger
	Status    *service.StatusService
	Ingestion Ingester
	Trending  Ranker
	Secret    string
	Log       *zap.Logger
}

type Handler struct {
	registry  *service.FeedRegistry
	runs      *service.RunLogger
	calls     *service.CallLogger
	status    *service.StatusService
	ingestion Ingester
	trending  Ranker
	secret    string
	log       *zap.Logger
	scheduler Schedule
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		registry:  d.Registry,
		runs:      d.Runs,
		calls:     d.Calls,
		status:    d.Status,
		ingestion: d.Ingestion,
		trending:  d.Trending,
		secret:    d.Secret,
		log:       d.Log.With(zap.String("component", "handler")),
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(s Schedule) {
	h.scheduler = s
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 触发接口,需要共享密钥
		trigger := api.Group("", h.requireSecret)
		trigger.POST("/ingest", h.Ingest)
		trigger.POST("/feeds/:id/fetch", h.FetchFeed)
		trigger.POST("/trending", h.RunTrending)

		// 只读接口
		api.GET("/feeds", h.ListFeeds)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
		api.GET("/trending/:category", h.GetTrending)
		api.GET("/analyzer-logs", h.ListAnalyzerLogs)
		api.GET("/status", h.GetStatus)
	}
}

// requireSecret 校验 X-Cron-Secret 或 Bearer 令牌;未配置密钥时拒绝所有触发
func (h *Handler) requireSecret(c *gin.Context) {
	provided := c.GetHeader("X-Cron-Secret")
	if provided == "" {
		auth := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			provided = strings.TrimSpace(token)
		}
	}

	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		h.log.Warn("unauthorized trigger", zap.String("path", c.FullPath()), zap.String("ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// bindOptionalJSON 请求体可以为空
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return limit
}

// ===== 抓取 =====

type ingestRequest struct {
	FeedIDs    []uint   `json:"feedIds"`
	Categories []string `json:"categories"`
}

type ingestResponse struct {
	RunID          string          `json:"runId"`
	Status         model.RunStatus `json:"status"`
	FeedsProcessed int             `json:"feedsProcessed"`
	ItemsFetched   int             `json:"itemsFetched"`
	NewArticles    int             `json:"newArticles"`
	Skipped        int             `json:"skipped"`
	Errors         int             `json:"errors"`
	DurationMs     int64           `json:"durationMs"`
}

func (h *Handler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trigger := model.TriggerKind(c.DefaultQuery("trigger", string(model.TriggerManual)))
	if trigger != model.TriggerManual && trigger != model.TriggerScheduled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trigger must be manual or scheduled"})
		return
	}

	h.runIngestion(c, service.Scope{FeedIDs: req.FeedIDs, Categories: req.Categories}, trigger)
}

func (h *Handler) FetchFeed(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feed id"})
		return
	}

	feed, err := h.registry.Get(c.Request.Context(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.runIngestion(c, service.Scope{FeedIDs: []uint{feed.ID}}, model.TriggerManual)
}

func (h *Handler) runIngestion(c *gin.Context, scope service.Scope, trigger model.TriggerKind) {
	// 客户端断开不影响已开始的运行
	run, err := h.ingestion.Run(context.WithoutCancel(c.Request.Context()), scope, trigger)
	if err != nil {
		h.log.Error("ingestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ingestResponse{
		RunID:          run.RunID,
		Status:         run.Status,
		FeedsProcessed: run.FeedsProcessed,
		ItemsFetched:   run.ItemsFetched,
		NewArticles:    run.ItemsNew,
		Skipped:        run.ItemsSkipped,
		Errors:         run.ItemsErrored,
		DurationMs:     run.DurationMs,
	})
}

// ===== 热门 =====

type trendingRequest struct {
	Categories []string `json:"categories"`
}

func (h *Handler) RunTrending(c *gin.Context) {
	var req trendingRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.trending.Run(context.WithoutCancel(c.Request.Context()), req.Categories)
	if err != nil {
		h.log.Error("trending run failed", zap.Error(err))
		body := gin.H{"error": "trending failed", "detail": err.Error()}
		if report != nil {
			body["report"] = report
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetTrending(c *gin.Context) {
	category := c.Param("category")
	results, err := h.trending.Current(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "results": results})
}

func (h *Handler) ListAnalyzerLogs(c *gin.Context) {
	logs, err := h.calls.List(c.Request.Context(), c.Query("category"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ===== 订阅源与运行记录 =====

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feeds)
}

func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListRuns(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// ===== 系统状态 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextFetchTime = h.scheduler.GetNextFetchTime()
		status.NextTrendingTime = h.scheduler.GetNextTrendingTime()
	}

	c.JSON(http.StatusOK, status)
}
