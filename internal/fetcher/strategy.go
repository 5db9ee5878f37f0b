package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rameshbgm/belgaum-today-sub000/config"
)

const maxBodyBytes = 10 << 20

// Strategy 一种获取订阅源文档的投递方式(直连、代理等)
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

// 内置策略名称
const (
	StrategyDirect   = "direct"
	StrategyRSS2JSON = "rss2json"
	StrategyRawProxy = "raw_proxy"
)

// HTTPStrategy 通过 buildURL 计算请求地址,并自动识别返回的文档格式
func HTTPStrategy(name string, client *http.Client, userAgent string, buildURL func(feedURL string) string) Strategy {
	return Strategy{
		Name: name,
		Fetch: func(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
			body, err := get(ctx, client, userAgent, buildURL(feedURL))
			if err != nil {
				return nil, err
			}
			return Decode(body)
		},
	}
}

// StrategiesFromConfig 按配置顺序构建策略列表
func StrategiesFromConfig(cfg config.IngestionConfig, client *http.Client) ([]Strategy, error) {
	if client == nil {
		client = &http.Client{}
	}
	names := cfg.Strategies
	if len(names) == 0 {
		names = []string{StrategyDirect}
	}

	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case StrategyDirect:
			strategies = append(strategies, HTTPStrategy(name, client, cfg.UserAgent, func(u string) string { return u }))
		case StrategyRSS2JSON:
			strategies = append(strategies, HTTPStrategy(name, client, cfg.UserAgent, proxyURL(cfg.RSS2JSONEndpoint)))
		case StrategyRawProxy:
			strategies = append(strategies, HTTPStrategy(name, client, cfg.UserAgent, proxyURL(cfg.RawProxyEndpoint)))
		default:
			return nil, fmt.Errorf("unknown fetch strategy %q", name)
		}
	}
	return strategies, nil
}

// proxyURL 将订阅源地址转义后填入 %s 模板
func proxyURL(template string) func(string) string {
	return func(feedURL string) string {
		return fmt.Sprintf(template, url.QueryEscape(feedURL))
	}
}

func get(ctx context.Context, client *http.Client, userAgent, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/json, text/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Decode 识别文档格式:JSON 包装的条目列表,或 RSS/Atom/JSON Feed
func Decode(body []byte) (*gofeed.Feed, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '{' && !isJSONFeed(trimmed) {
		return decodeJSONWrapped(trimmed)
	}

	// gofeed.Parser 带有解析状态,不能跨 goroutine 复用
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func isJSONFeed(body []byte) bool {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return strings.HasPrefix(probe.Version, "https://jsonfeed.org/")
}

type jsonWrapped struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Feed    struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"feed"`
	Items []jsonItem `json:"items"`
}

type jsonItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	GUID        string `json:"guid"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Thumbnail   string `json:"thumbnail"`
	Enclosure   struct {
		Link      string `json:"link"`
		Type      string `json:"type"`
		Thumbnail string `json:"thumbnail"`
	} `json:"enclosure"`
}

func decodeJSONWrapped(body []byte) (*gofeed.Feed, error) {
	var doc jsonWrapped
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode json feed: %w", err)
	}
	if doc.Status != "" && doc.Status != "ok" {
		return nil, fmt.Errorf("json feed status %q: %s", doc.Status, doc.Message)
	}

	feed := &gofeed.Feed{
		Title:    doc.Feed.Title,
		Link:     doc.Feed.Link,
		FeedType: "json-wrapped",
		Items:    make([]*gofeed.Item, 0, len(doc.Items)),
	}
	for _, it := range doc.Items {
		item := &gofeed.Item{
			Title:           it.Title,
			Link:            it.Link,
			GUID:            it.GUID,
			Description:     it.Description,
			Content:         it.Content,
			Published:       it.PubDate,
			PublishedParsed: parseDate(it.PubDate),
		}
		if thumb := firstNonEmpty(it.Thumbnail, it.Enclosure.Thumbnail); thumb != "" {
			item.Image = &gofeed.Image{URL: thumb}
		}
		if it.Enclosure.Link != "" {
			item.Enclosures = []*gofeed.Enclosure{{URL: it.Enclosure.Link, Type: it.Enclosure.Type}}
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
