package domain

import "time"

// DigestKind 定时推送的类型
type DigestKind string

const (
	DigestDaily  DigestKind = "daily"
	DigestWeekly DigestKind = "weekly"
)

// Spec 每种推送固定使用的搜索参数
func (k DigestKind) Spec() (SearchSpec, bool) {
	switch k {
	case DigestDaily:
		return SearchSpec{Timeframe: TimeframeDay, MinStars: 30, Count: 5}, true
	case DigestWeekly:
		return SearchSpec{Timeframe: TimeframeWeek, MinStars: 50, Count: 10}, true
	}
	return SearchSpec{}, false
}

// DigestRecord 一次定时推送的投递记录
type DigestRecord struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Kind      DigestKind `json:"kind" gorm:"type:varchar(16);index"`
	SentAt    time.Time  `json:"sent_at" gorm:"index"`
	RepoCount int        `json:"repo_count"`
	Degraded  bool       `json:"degraded"`
	Delivered bool       `json:"delivered"`
	Error     string     `json:"error,omitempty" gorm:"type:text"`
}
