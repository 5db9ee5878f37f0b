package database_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/internal/database/dbtest"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

func TestMigrateCreatesTables(t *testing.T) {
	db := dbtest.Open(t)
	for _, m := range model.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestDuplicateSlugIsTranslated(t *testing.T) {
	db := dbtest.Open(t)
	a := model.Article{Title: "a", Slug: "same", Category: "news"}
	require.NoError(t, db.Create(&a).Error)

	b := model.Article{Title: "b", Slug: "same", Category: "news"}
	err := db.Create(&b).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}
