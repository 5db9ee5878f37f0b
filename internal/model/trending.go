package model

import "time"

type TrendingResult struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	Category   string    `gorm:"size:100;index;not null" json:"category"`
	ArticleID  uint      `gorm:"index;not null" json:"article_id"`
	Rank       int       `json:"rank"`
	Score      float64   `json:"score"`
	Reasoning  string    `gorm:"type:text" json:"reasoning"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Article *Article `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
}

type CallStatus string

const (
	CallSuccess  CallStatus = "success"
	CallError    CallStatus = "error"
	CallFallback CallStatus = "fallback"
)

type AnalyzerCallLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"size:50" json:"provider"`
	Model           string     `gorm:"size:100" json:"model"`
	Category        string     `gorm:"size:100;index" json:"category"`
	Status          CallStatus `gorm:"size:20;index" json:"status"`
	InputCount      int        `json:"input_count"`
	OutputCount     int        `json:"output_count"`
	PromptTokens    int        `json:"prompt_tokens"`
	DurationMs      int64      `json:"duration_ms"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
	RequestSummary  string     `gorm:"type:text" json:"request_summary"`
	ResponseSummary string     `gorm:"type:text" json:"response_summary"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}
