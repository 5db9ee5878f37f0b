package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/fetcher"
	"github.com/rameshbgm/belgaum-today-sub000/internal/llm"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

const (
	ShortcutReasoning = "included — below threshold"
	FallbackReasoning = "selected by recency (fallback)"

	summaryRunes = 2000
	excerptRunes = 200
)

// Path 一次分析实际走的路径
type Path string

const (
	PathEmpty    Path = "empty"
	PathShortcut Path = "shortcut"
	PathModel    Path = "model"
	PathFallback Path = "fallback"
)

// Candidate 参与排名的文章
type Candidate struct {
	ID          uint
	Title       string
	Excerpt     string
	Source      string
	PublishedAt time.Time
}

// Ranked 排名结果,Rank 从 1 开始连续
type Ranked struct {
	ArticleID uint    `json:"articleId"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Analysis 排名结果、路径以及待保存的调用日志
type Analysis struct {
	Results []Ranked
	Path    Path
	Call    model.AnalyzerCallLog
}

// ModelSource 每次分析前解析当前模型
type ModelSource interface {
	Resolve(ctx context.Context) (llm.Model, error)
}

// Request 单个分类的分析请求
type Request struct {
	Category   string
	Candidates []Candidate
	Target     int
	// Instructions 覆盖默认的系统指令模板,支持 {category} 和 {count}
	Instructions string
}

type Analyzer struct {
	models      ModelSource
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewAnalyzer(models ModelSource, timeout time.Duration, maxAttempts int, log *zap.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Analyzer{
		models:      models,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoff:     500 * time.Millisecond,
		log:         log.With(zap.String("component", "analyzer")),
		now:         time.Now,
	}
}

// Analyze 总是返回一个排名,模型不可用时退回按时间排序
func (a *Analyzer) Analyze(ctx context.Context, req Request) Analysis {
	start := a.now()
	n := len(req.Candidates)
	target := req.Target
	if target <= 0 {
		target = n
	}

	out := Analysis{Call: model.AnalyzerCallLog{
		Provider:   "none",
		Category:   req.Category,
		InputCount: n,
		Status:     model.CallSuccess,
		CreatedAt:  start,
	}}

	switch {
	case n == 0:
		out.Path = PathEmpty
		out.Call.Model = "no-candidates"
	case n <= target:
		out.Path = PathShortcut
		out.Call.Model = "below-threshold"
		out.Results = Shortcut(req.Candidates)
	default:
		results, err := a.rank(ctx, req, target, &out.Call)
		if err != nil {
			a.log.Warn("model ranking failed, using fallback",
				zap.String("category", req.Category),
				zap.Error(err))
			out.Path = PathFallback
			out.Call.Status = model.CallFallback
			out.Call.ErrorMessage = err.Error()
			out.Results = Fallback(req.Candidates, target)
		} else {
			out.Path = PathModel
			out.Results = results
		}
	}

	out.Call.OutputCount = len(out.Results)
	out.Call.DurationMs = a.now().Sub(start).Milliseconds()
	return out
}

// rank 调用模型并校验输出
func (a *Analyzer) rank(ctx context.Context, req Request, target int, call *model.AnalyzerCallLog) ([]Ranked, error) {
	m, err := a.models.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	call.Provider = m.Provider()
	call.Model = m.ModelName()

	system := SystemPrompt(req.Instructions, req.Category, target)
	user, err := UserPayload(req.Candidates)
	if err != nil {
		return nil, err
	}
	call.PromptTokens = EstimateTokens(system) + EstimateTokens(user)
	call.RequestSummary = fetcher.Truncate(user, summaryRunes)

	raw, err := a.generate(ctx, m, system, user)
	if err != nil {
		return nil, err
	}
	call.ResponseSummary = fetcher.Truncate(raw, summaryRunes)

	parsed := ParseRankings(raw)
	if parsed.Err != nil {
		return nil, parsed.Err
	}
	if parsed.Rejected > 0 {
		a.log.Debug("discarded malformed ranking entries", zap.Int("rejected", parsed.Rejected))
	}

	results := Validate(parsed.Entries, req.Candidates, target)
	if len(results) == 0 {
		return nil, errors.New("validation left no results")
	}
	return results, nil
}

// generate 在总超时内重试模型调用
func (a *Analyzer) generate(ctx context.Context, m llm.Model, system, user string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		raw, err := m.Generate(cctx, system, user)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if errors.Is(err, llm.ErrNotConfigured) || cctx.Err() != nil || attempt == a.maxAttempts {
			break
		}

		a.log.Debug("model call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-cctx.Done():
		case <-time.After(time.Duration(attempt) * a.backoff):
		}
	}
	if cctx.Err() != nil && !errors.Is(lastErr, cctx.Err()) {
		lastErr = fmt.Errorf("%w: %v", cctx.Err(), lastErr)
	}
	return "", fmt.Errorf("model call: %w", lastErr)
}

const defaultInstructions = `You are the news editor of Belgaum Today, a regional news site.
From the candidate articles in the "{category}" category, pick the {count} stories most likely to be trending with readers right now.
Prefer recent, locally relevant and widely impactful stories. Avoid near-duplicate stories.
Respond with ONLY a JSON array, no prose, in this shape:
[{"articleId": <id from the input>, "rank": <1 = most trending>, "score": <0-100>, "reasoning": "<one short sentence>"}]
Use only articleId values present in the input.`

// SystemPrompt 生成系统指令,template 为空时使用默认模板
func SystemPrompt(template, category string, count int) string {
	if strings.TrimSpace(template) == "" {
		template = defaultInstructions
	}
	return strings.NewReplacer("{category}", category, "{count}", strconv.Itoa(count)).Replace(template)
}

type candidatePayload struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"publishedAt"`
}

// UserPayload 候选文章列表的 JSON
func UserPayload(candidates []Candidate) (string, error) {
	items := make([]candidatePayload, len(candidates))
	for i, c := range candidates {
		items[i] = candidatePayload{
			ID:          c.ID,
			Title:       c.Title,
			Excerpt:     fetcher.Truncate(c.Excerpt, excerptRunes),
			Source:      c.Source,
			PublishedAt: c.PublishedAt.UTC().Format(time.RFC3339),
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}
	return string(data), nil
}

// EstimateTokens 粗略估算,约 4 个字符一个 token
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// RankEntry 模型返回的单个元素,尚未校验
type RankEntry struct {
	ArticleID uint
	Rank      float64
	Score     float64
	Reasoning string
}

// ParseResult 解析结果:Err 非空表示整体无法解析,Rejected 为形状不符被丢弃的元素数
type ParseResult struct {
	Entries  []RankEntry
	Rejected int
	Err      error
}

// flexibleID 兼容数字和字符串形式的 id
type flexibleID uint

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || v != math.Trunc(v) {
		return fmt.Errorf("invalid article id %s", data)
	}
	*f = flexibleID(v)
	return nil
}

type rawEntry struct {
	ArticleID *flexibleID `json:"articleId"`
	Rank      float64     `json:"rank"`
	Score     float64     `json:"score"`
	Reasoning string      `json:"reasoning"`
}

// ParseRankings 从模型输出中取出排名数组
func ParseRankings(raw string) ParseResult {
	body := StripCodeFence(raw)
	// 模型偶尔在数组前后附带说明文字
	if i, j := strings.Index(body, "["), strings.LastIndex(body, "]"); i >= 0 && j > i {
		body = body[i : j+1]
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return ParseResult{Err: fmt.Errorf("decode ranking array: %w", err)}
	}

	var res ParseResult
	for _, e := range elems {
		var r rawEntry
		if err := json.Unmarshal(e, &r); err != nil || r.ArticleID == nil {
			res.Rejected++
			continue
		}
		res.Entries = append(res.Entries, RankEntry{
			ArticleID: uint(*r.ArticleID),
			Rank:      r.Rank,
			Score:     r.Score,
			Reasoning: strings.TrimSpace(r.Reasoning),
		})
	}
	return res
}

// StripCodeFence 去掉 ```json ... ``` 包裹
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Validate 丢弃未知和重复的 id,按模型给出的名次排序,截断后重新编号为 1..k
func Validate(entries []RankEntry, candidates []Candidate, target int) []Ranked {
	known := make(map[uint]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	valid := make([]RankEntry, 0, len(entries))
	for _, e := range entries {
		if known[e.ArticleID] {
			valid = append(valid, e)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return rankKey(valid[i].Rank) < rankKey(valid[j].Rank)
	})

	seen := make(map[uint]bool, len(valid))
	out := make([]Ranked, 0, min(target, len(valid)))
	for _, e := range valid {
		if len(out) == target {
			break
		}
		if seen[e.ArticleID] {
			continue
		}
		seen[e.ArticleID] = true
		out = append(out, Ranked{
			ArticleID: e.ArticleID,
			Rank:      len(out) + 1,
			Score:     clampScore(e.Score),
			Reasoning: e.Reasoning,
		})
	}
	return out
}

// 非正数名次排在最后
func rankKey(r float64) float64 {
	if r <= 0 || math.IsNaN(r) {
		return math.Inf(1)
	}
	return r
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 100:
		return 100
	}
	return math.Round(s*100) / 100
}

// Shortcut 候选数不超过目标数时按输入顺序全部入选
func Shortcut(candidates []Candidate) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{
			ArticleID: c.ID,
			Rank:      i + 1,
			Score:     descendingScore(i, len(candidates)),
			Reasoning: ShortcutReasoning,
		}
	}
	return out
}

// Fallback 按发布时间倒序取前 target 篇,时间相同按 id 排序
func Fallback(candidates []Candidate, target int) []Ranked {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	k := min(target, len(sorted))
	out := make([]Ranked, k)
	for i := 0; i < k; i++ {
		out[i] = Ranked{
			ArticleID: sorted[i].ID,
			Rank:      i + 1,
			Score:     descendingScore(i, k),
			Reasoning: FallbackReasoning,
		}
	}
	return out
}

// descendingScore 不做舍入,候选再多也保持严格递减
func descendingScore(i, n int) float64 {
	return 100 * float64(n-i) / float64(n)
}
