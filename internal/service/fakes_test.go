package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rameshbgm/belgaum-today-sub000/internal/fetcher"
	"github.com/rameshbgm/belgaum-today-sub000/internal/llm"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

var testNow = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeFetcher 按订阅源 URL 返回预设结果
type fakeFetcher struct {
	results map[string]fetcher.Result
	onFetch func(feed model.Feed)
	calls   atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, feed model.Feed) fetcher.Result {
	f.calls.Add(1)
	if f.onFetch != nil {
		f.onFetch(feed)
	}
	return f.results[feed.URL]
}

type fakeModel struct {
	generate func(ctx context.Context, system, user string) (string, error)
	calls    atomic.Int32
}

func (m *fakeModel) Provider() string  { return "fake" }
func (m *fakeModel) ModelName() string { return "fake-1" }

func (m *fakeModel) Generate(ctx context.Context, system, user string) (string, error) {
	m.calls.Add(1)
	return m.generate(ctx, system, user)
}

type fakeModels struct {
	model llm.Model
	err   error
}

func (f fakeModels) Resolve(ctx context.Context) (llm.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func replyWith(raw string) *fakeModel {
	return &fakeModel{generate: func(ctx context.Context, system, user string) (string, error) {
		return raw, nil
	}}
}

func hangingModel() *fakeModel {
	return &fakeModel{generate: func(ctx context.Context, system, user string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
}

func items(links ...string) []fetcher.Item {
	out := make([]fetcher.Item, len(links))
	for i, link := range links {
		out[i] = fetcher.Item{
			Title:       "Story " + link,
			Link:        link,
			Description: "Short excerpt for " + link,
			PublishedAt: testNow.Add(-time.Duration(i) * time.Minute),
			SourceName:  "Test Desk",
		}
	}
	return out
}
