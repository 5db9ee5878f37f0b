package model

import "time"

// DefaultFetchInterval 未配置间隔时使用的抓取间隔(分钟)
const DefaultFetchInterval = 30

type Feed struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Name                 string     `gorm:"size:255;not null" json:"name"`
	URL                  string     `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Category             string     `gorm:"size:100;index;not null" json:"category"`
	FetchIntervalMinutes int        `gorm:"default:30" json:"fetch_interval_minutes"`
	IsActive             bool       `gorm:"default:true" json:"is_active"`
	LastFetchedAt        *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Interval 抓取间隔,未配置时使用默认值
func (f *Feed) Interval() time.Duration {
	minutes := f.FetchIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultFetchInterval
	}
	return time.Duration(minutes) * time.Minute
}

// IsDue 判断订阅源在 now 时刻是否需要抓取
func (f *Feed) IsDue(now time.Time) bool {
	if !f.IsActive {
		return false
	}
	if f.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*f.LastFetchedAt) >= f.Interval()
}
