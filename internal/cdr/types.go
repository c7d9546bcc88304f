package cdr

import (
	"context"
	"time"
)

// Record is one finished call's detail record.
type Record struct {
	ID          string    `json:"id"`
	SessionRef  string    `json:"session_ref"`
	AppRef      string    `json:"app_ref"`
	AccessKeyID string    `json:"access_key_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Cause       string    `json:"cause"`
}

// Duration is the wall-clock call length.
func (r Record) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Store persists call detail records.
type Store interface {
	Save(ctx context.Context, record Record) error
	Recent(ctx context.Context, accessKeyID string, limit int) ([]Record, error)
	Close() error
}
