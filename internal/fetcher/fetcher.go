// Package fetcher 负责抓取订阅源并将条目归一化为统一结构,与源格式无关。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

// ErrEmptyFeed 文档可以访问但没有条目
var ErrEmptyFeed = errors.New("feed has no items")

// Item 归一化后的条目,入库前没有身份
type Item struct {
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
	ImageURL    string
	SourceName  string
}

// Attempt 一次投递策略尝试的结果
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// Result 单个订阅源的抓取结果,Items 为空时由调用方决定如何记录
type Result struct {
	Items    []Item
	Strategy string
	Attempts []Attempt
}

// Err 返回导致没有条目的原因;订阅源本身为空时返回 nil
func (r Result) Err() error {
	if len(r.Items) > 0 {
		return nil
	}
	var errs []error
	for _, a := range r.Attempts {
		if errors.Is(a.Err, ErrEmptyFeed) {
			return nil
		}
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Strategy, a.Err))
		}
	}
	return errors.Join(errs...)
}

type Fetcher struct {
	strategies []Strategy
	timeout    time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// New 按顺序尝试 strategies,每次尝试单独计时
func New(strategies []Strategy, timeout time.Duration, log *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Fetcher{
		strategies: strategies,
		timeout:    timeout,
		log:        log.With(zap.String("component", "fetcher")),
		now:        time.Now,
	}
}

// Fetch 依次尝试投递策略,第一个返回非空结果的策略生效。不会返回错误。
func (f *Fetcher) Fetch(ctx context.Context, feed model.Feed) Result {
	var res Result
	for _, s := range f.strategies {
		if err := ctx.Err(); err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: err})
			break
		}

		start := time.Now()
		items, err := f.attempt(ctx, s, feed)
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: err, Duration: time.Since(start)})
		if err != nil {
			f.log.Debug("strategy failed",
				zap.String("feed", feed.URL),
				zap.String("strategy", s.Name),
				zap.Error(err),
			)
			continue
		}

		res.Items = items
		res.Strategy = s.Name
		return res
	}
	return res
}

func (f *Fetcher) attempt(ctx context.Context, s Strategy, feed model.Feed) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("strategy panic: %v", r)
		}
	}()

	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	doc, err := s.Fetch(actx, feed.URL)
	if err != nil {
		return nil, err
	}

	items = normalizeFeed(doc, feed, f.now())
	if len(items) == 0 {
		return nil, ErrEmptyFeed
	}
	return items, nil
}
