package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rameshbgm/belgaum-today-sub000/config"
	"github.com/rameshbgm/belgaum-today-sub000/internal/database/dbtest"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Settings{Provider: "openai", Model: "gpt-4o-mini"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = New(Settings{Provider: "anthropic", Model: "claude"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = New(Settings{Provider: ""})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = New(Settings{Provider: "mystery", Model: "m"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = New(Settings{Provider: "openai", APIKey: "k"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNewOpenAICompatible(t *testing.T) {
	m, err := New(Settings{Provider: "deepseek", APIKey: "k", Model: "deepseek-chat", BaseURL: "https://api.deepseek.com"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", m.Provider())
	assert.Equal(t, "deepseek-chat", m.ModelName())
}

func TestResolverPrefersDatabaseSettings(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Create(&model.Setting{Key: model.SettingLLMModel, Value: "gpt-4.1"}).Error)
	require.NoError(t, db.Create(&model.Setting{Key: model.SettingLLMAPIKey, Value: ""}).Error)

	r := NewResolver(db, config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "file-key"})
	s, err := r.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4.1", s.Model)
	assert.Equal(t, "file-key", s.APIKey, "empty db values do not override")

	var got Settings
	r.build = func(s Settings) (Model, error) {
		got = s
		return nil, ErrNotConfigured
	}
	_, err = r.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, "gpt-4.1", got.Model)
}

func TestGetSetting(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Create(&model.Setting{Key: model.SettingTrendingPrompt, Value: "custom"}).Error)

	assert.Equal(t, "custom", GetSetting(context.Background(), db, model.SettingTrendingPrompt))
	assert.Equal(t, "", GetSetting(context.Background(), db, "missing"))
}
