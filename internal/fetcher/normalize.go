package fetcher

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

const excerptRunes = 300

func normalizeFeed(doc *gofeed.Feed, feed model.Feed, now time.Time) []Item {
	if doc == nil {
		return nil
	}
	items := make([]Item, 0, len(doc.Items))
	for _, it := range doc.Items {
		if it == nil {
			continue
		}
		items = append(items, normalizeItem(it, doc.Title, feed, now))
	}
	return items
}

func normalizeItem(it *gofeed.Item, channelTitle string, feed model.Feed, now time.Time) Item {
	link := strings.TrimSpace(it.Link)
	if link == "" && strings.HasPrefix(it.GUID, "http") {
		link = strings.TrimSpace(it.GUID)
	}

	// 缺少发布时间时回退到更新时间,再回退到当前时间
	published := now
	if it.PublishedParsed != nil {
		published = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		published = *it.UpdatedParsed
	}

	description := StripHTML(it.Description)
	content := StripHTML(it.Content)
	if content == "" {
		content = description
	}
	if description == "" {
		description = content
	}

	return Item{
		Title:       StripHTML(it.Title),
		Link:        link,
		Description: Truncate(description, excerptRunes),
		Content:     content,
		PublishedAt: published,
		ImageURL:    extractImage(it),
		SourceName:  sourceName(feed.Name, channelTitle, link),
	}
}

func sourceName(feedName, channelTitle, link string) string {
	if name := firstNonEmpty(feedName, channelTitle); name != "" {
		return name
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return ""
}

// extractImage 依次查找图片类附件、media 扩展、条目图片,最后是正文中的第一张图
func extractImage(it *gofeed.Item) string {
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if media, ok := it.Extensions["media"]; ok {
		for _, key := range []string{"thumbnail", "content"} {
			for _, ext := range media[key] {
				u := ext.Attrs["url"]
				if u == "" {
					continue
				}
				if key == "content" && ext.Attrs["medium"] != "image" && !strings.HasPrefix(ext.Attrs["type"], "image/") {
					continue
				}
				return u
			}
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	if it.ITunesExt != nil && it.ITunesExt.Image != "" {
		return it.ITunesExt.Image
	}
	if src := firstImage(it.Content); src != "" {
		return src
	}
	return firstImage(it.Description)
}

func parseHTML(s string) *goquery.Document {
	if !strings.Contains(s, "<") && !strings.Contains(s, "&") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return nil
	}
	return doc
}

func firstImage(s string) string {
	doc := parseHTML(s)
	if doc == nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// StripHTML 去除标签和实体,合并空白
func StripHTML(s string) string {
	text := s
	if doc := parseHTML(s); doc != nil {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate 按字符截断,超出时追加省略号
func Truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return strings.TrimSpace(string(runes[:maxRunes-3])) + "..."
}
