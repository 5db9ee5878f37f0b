package model

import "time"

type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// StatusFromCounts 根据条目计数得出单个订阅源的状态
func StatusFromCounts(fetched, errored int) RunStatus {
	switch {
	case errored == 0:
		return RunSuccess
	case errored < fetched:
		return RunPartial
	default:
		return RunError
	}
}

// AggregateStatus 汇总各订阅源状态
// 没有订阅源或全部成功为 success,全部失败为 error,其余为 partial
func AggregateStatus(statuses []RunStatus) RunStatus {
	if len(statuses) == 0 {
		return RunSuccess
	}
	success, failed := 0, 0
	for _, s := range statuses {
		switch s {
		case RunSuccess:
			success++
		case RunError:
			failed++
		}
	}
	switch {
	case success == len(statuses):
		return RunSuccess
	case failed == len(statuses):
		return RunError
	default:
		return RunPartial
	}
}

type IngestionRun struct {
	ID             uint        `gorm:"primaryKey" json:"-"`
	RunID          string      `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Trigger        TriggerKind `gorm:"size:20" json:"trigger"`
	FeedsProcessed int         `json:"feeds_processed"`
	ItemsFetched   int         `json:"items_fetched"`
	ItemsNew       int         `json:"items_new"`
	ItemsSkipped   int         `json:"items_skipped"`
	ItemsErrored   int         `json:"items_errored"`
	Status         RunStatus   `gorm:"size:20;index" json:"status"`
	ErrorMessage   string      `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt      time.Time   `gorm:"index" json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	DurationMs     int64       `json:"duration_ms"`

	FeedLogs []FeedIngestionLog `gorm:"foreignKey:RunID;references:RunID" json:"feed_logs,omitempty"`
}

type FeedIngestionLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RunID        string    `gorm:"size:36;index;not null" json:"run_id"`
	FeedID       uint      `gorm:"index" json:"feed_id"`
	FeedName     string    `gorm:"size:255" json:"feed_name"`
	FeedURL      string    `gorm:"size:500" json:"feed_url"`
	Strategy     string    `gorm:"size:50" json:"strategy,omitempty"`
	ItemsFetched int       `json:"items_fetched"`
	ItemsNew     int       `json:"items_new"`
	ItemsSkipped int       `json:"items_skipped"`
	ItemsErrored int       `json:"items_errored"`
	Status       RunStatus `gorm:"size:20" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`

	Outcomes []ItemOutcome `gorm:"foreignKey:FeedLogID" json:"outcomes,omitempty"`
}

type ItemAction string

const (
	ActionNew     ItemAction = "new"
	ActionSkipped ItemAction = "skipped"
	ActionError   ItemAction = "error"
)

// 预定义原因
const (
	ReasonInserted  = "inserted"
	ReasonDuplicate = "duplicate"
)

// ItemOutcome 只追加,写入后不再修改
type ItemOutcome struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RunID     string     `gorm:"size:36;index;not null" json:"run_id"`
	FeedLogID uint       `gorm:"index" json:"feed_log_id"`
	FeedID    uint       `gorm:"index" json:"feed_id"`
	Position  int        `json:"position"`
	Title     string     `gorm:"size:500" json:"title"`
	Link      string     `gorm:"size:500" json:"link"`
	Action    ItemAction `gorm:"size:20;index" json:"action"`
	Reason    string     `gorm:"type:text" json:"reason"`
	ArticleID *uint      `json:"article_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
