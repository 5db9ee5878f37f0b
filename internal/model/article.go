package model

import "time"

type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
	ArticleArchived  ArticleStatus = "archived"
)

type Article struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	FeedID             *uint         `gorm:"index" json:"feed_id,omitempty"`
	Title              string        `gorm:"size:500;index;not null" json:"title"`
	Slug               string        `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Excerpt            string        `gorm:"type:text" json:"excerpt"`
	Content            string        `gorm:"type:text" json:"content"`
	ImageURL           string        `gorm:"size:1000" json:"image_url,omitempty"`
	Category           string        `gorm:"size:100;index;not null" json:"category"`
	SourceName         string        `gorm:"size:255" json:"source_name"`
	SourceURL          *string       `gorm:"size:500;uniqueIndex" json:"source_url,omitempty"`
	Status             ArticleStatus `gorm:"size:20;index;default:draft" json:"status"`
	IsFeatured         bool          `gorm:"default:false" json:"is_featured"`
	IsAIGenerated      bool          `gorm:"default:false" json:"is_ai_generated"`
	RequiresReview     bool          `gorm:"default:false" json:"requires_review"`
	ViewCount          int64         `gorm:"default:0" json:"view_count"`
	ReadingTimeMinutes int           `json:"reading_time_minutes"`
	PublishedAt        time.Time     `gorm:"index" json:"published_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
