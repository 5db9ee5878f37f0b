package model

import "time"

// Setting 运行时可修改的键值配置
type Setting struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"size:100;uniqueIndex;not null"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// 预定义配置键
const (
	SettingLLMProvider    = "llm_provider"
	SettingLLMBaseURL     = "llm_base_url"
	SettingLLMAPIKey      = "llm_api_key"
	SettingLLMModel       = "llm_model"
	SettingTrendingPrompt = "prompt_trending"
)

// All 返回需要迁移的全部模型
func All() []any {
	return []any{
		&Feed{}, &Article{}, &Setting{},
		&IngestionRun{}, &FeedIngestionLog{}, &ItemOutcome{},
		&TrendingResult{}, &AnalyzerCallLog{},
	}
}
