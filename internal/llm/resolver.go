package llm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rameshbgm/belgaum-today-sub000/config"
	"github.com/rameshbgm/belgaum-today-sub000/internal/model"
)

// Resolver 每次分析前读取配置,数据库中的设置优先于配置文件
type Resolver struct {
	db       *gorm.DB
	defaults config.LLMConfig
	build    func(Settings) (Model, error)
}

func NewResolver(db *gorm.DB, defaults config.LLMConfig) *Resolver {
	return &Resolver{db: db, defaults: defaults, build: New}
}

// Settings 合并配置文件与 settings 表
func (r *Resolver) Settings(ctx context.Context) (Settings, error) {
	s := Settings{
		Provider:    r.defaults.Provider,
		BaseURL:     r.defaults.BaseURL,
		APIKey:      r.defaults.APIKey,
		Model:       r.defaults.Model,
		Temperature: r.defaults.Temperature,
		MaxTokens:   r.defaults.MaxTokens,
	}

	var items []model.Setting
	if err := r.db.WithContext(ctx).
		Where(map[string]any{"key": []string{model.SettingLLMProvider, model.SettingLLMBaseURL, model.SettingLLMAPIKey, model.SettingLLMModel}}).
		Find(&items).Error; err != nil {
		return s, fmt.Errorf("load llm settings: %w", err)
	}

	for _, item := range items {
		if item.Value == "" {
			continue
		}
		switch item.Key {
		case model.SettingLLMProvider:
			s.Provider = item.Value
		case model.SettingLLMBaseURL:
			s.BaseURL = item.Value
		case model.SettingLLMAPIKey:
			s.APIKey = item.Value
		case model.SettingLLMModel:
			s.Model = item.Value
		}
	}
	return s, nil
}

// Resolve 返回当前可用的模型;缺少凭证时返回 ErrNotConfigured
func (r *Resolver) Resolve(ctx context.Context) (Model, error) {
	s, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return r.build(s)
}

// GetSetting 获取单个设置值
func GetSetting(ctx context.Context, db *gorm.DB, key string) string {
	var item model.Setting
	if err := db.WithContext(ctx).Where(&model.Setting{Key: key}).Limit(1).Find(&item).Error; err != nil {
		return ""
	}
	return item.Value
}
