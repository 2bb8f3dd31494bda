package usage

import (
	"context"
	"time"
)

// Log records one AI endpoint call.
type Log struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RequestID string    `json:"request_id"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// OperationCount aggregates calls per operation.
type OperationCount struct {
	Operation string `json:"operation"`
	Total     int64  `json:"total"`
	Failed    int64  `json:"failed"`
}

type Store interface {
	LogUsage(ctx context.Context, log *Log) error
	GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*Log, error)
	CountByOperation(ctx context.Context, userID string, from, to time.Time) ([]OperationCount, error)
}
