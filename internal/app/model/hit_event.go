package model

import "time"

// HitEvent records one request answered by the live redirect surface.
type HitEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Domain     string    `json:"domain" gorm:"size:253;index"`
	Path       string    `json:"path" gorm:"type:text"`
	IP         string    `json:"ip" gorm:"size:64"`
	UserAgent  string    `json:"user_agent" gorm:"type:text"`
	Crawler    string    `json:"crawler" gorm:"size:16"`
	Decision   string    `json:"decision" gorm:"size:16"`
	StatusCode int       `json:"status_code"`
	TargetURL  string    `json:"target_url" gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

const (
	HitStreamName     = "HITS"
	HitStreamSubject  = "redirects.hits"
	HitConsumerName   = "hit-logger"
	HitStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
