package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rameshbgm/belgaum-today-sub000/internal/database/dbtest"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Rain lashes Belagavi!", "rain-lashes-belagavi"},
		{"  Hello,   World  ", "hello-world"},
		{"ＦＵＬＬ　ＷＩＤＴＨ", "full-width"},
		{"ಬೆಳಗಾವಿ ಸುದ್ದಿ", "ಬೆಳಗಾವಿ-ಸುದ್ದಿ"},
		{"!!!", "article"},
		{"", "article"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.title), tt.title)
	}

	long := Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, utf8.RuneCountInString(long), maxSlugRunes)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime(""))
	assert.Equal(t, 1, ReadingTime("just a few words"))
	assert.Equal(t, 1, ReadingTime(strings.Repeat("w ", 200)))
	assert.Equal(t, 2, ReadingTime(strings.Repeat("w ", 201)))
}

func TestUniqueSlugAppendsToken(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	slug, err := uniqueSlug(ctx, db, "Market update")
	require.NoError(t, err)
	assert.Equal(t, "market-update", slug)

	require.NoError(t, db.Create(&model.Article{Title: "Market update", Slug: slug, Category: "business"}).Error)

	next, err := uniqueSlug(ctx, db, "Market update!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(next, "market-update-"))
	assert.Len(t, next, len("market-update-")+8)
}
