package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LogUsage(ctx context.Context, log *Log) error {
	query := `
		INSERT INTO ai_usage_logs (user_id, request_id, provider, operation, success, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.UserID, log.RequestID, log.Provider, log.Operation, log.Success, log.LatencyMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*Log, error) {
	query := `
		SELECT id, user_id, request_id, provider, operation, success, latency_ms, created_at
		FROM ai_usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		err := rows.Scan(
			&l.ID, &l.UserID, &l.RequestID, &l.Provider, &l.Operation,
			&l.Success, &l.LatencyMs, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) CountByOperation(ctx context.Context, userID string, from, to time.Time) ([]OperationCount, error) {
	query := `
		SELECT operation, COUNT(*), COUNT(*) FILTER (WHERE NOT success)
		FROM ai_usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		GROUP BY operation
		ORDER BY operation
	`
	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage: %w", err)
	}
	defer rows.Close()

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OperationCount, error) {
		var c OperationCount
		err := row.Scan(&c.Operation, &c.Total, &c.Failed)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan usage counts: %w", err)
	}
	return counts, nil
}
