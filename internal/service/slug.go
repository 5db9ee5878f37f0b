package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

const (
	maxSlugRunes   = 80
	wordsPerMinute = 200
)

var lower = cases.Lower(language.Und)

// Slugify 标题转为 URL 片段,保留各语言的字母与数字
func Slugify(title string) string {
	s := lower.String(norm.NFKC.String(title))

	var b strings.Builder
	dash := true
	n := 0
	for _, r := range s {
		if n >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || (unicode.Is(unicode.M, r) && !dash) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
			n++
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "article"
	}
	return slug
}

// ReadingTime 按每分钟 200 词估算阅读时间,至少 1 分钟
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// uniqueSlug 检查冲突,冲突时追加随机后缀
func uniqueSlug(ctx context.Context, db *gorm.DB, title string) (string, error) {
	base := Slugify(title)
	candidate := base
	for i := 0; i < 3; i++ {
		var count int64
		if err := db.WithContext(ctx).Model(&model.Article{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = withSlugToken(base)
	}
	return candidate, nil
}

// withSlugToken 追加 8 位随机后缀
func withSlugToken(slug string) string {
	return slug + "-" + uuid.NewString()[:8]
}
