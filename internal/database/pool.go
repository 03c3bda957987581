package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	queryAttempts = 3
	queryBackoff  = 100 * time.Millisecond
)

// Health is the database section of /health
type Health struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	Error        string        `json:"error,omitempty"`
}

func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// RegisterMetrics exposes connection pool stats as go_sql_* gauges
func (db *DB) RegisterMetrics(reg prometheus.Registerer) error {
	err := reg.Register(collectors.NewDBStatsCollector(db.DB, "ticketshow"))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}

func (db *DB) HealthCheck(ctx context.Context) Health {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := db.PingContext(pingCtx)
	stats := db.Stats()

	health := Health{
		Status:       "healthy",
		ResponseTime: time.Since(start),
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
	}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
		return health
	}

	// 90% of the pool in use
	if stats.MaxOpenConnections > 0 && stats.InUse*10 >= stats.MaxOpenConnections*9 {
		slog.Warn("Connection pool nearly exhausted",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections, "wait_count", stats.WaitCount)
	}
	return health
}

// QueryWithRetry repeats a query on connection-level failures and
// serialization conflicts. Only for statements that are safe to repeat.
func (db *DB) QueryWithRetry(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var lastErr error
	for attempt := 1; attempt <= queryAttempts; attempt++ {
		rows, err := db.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !isRetryableError(err) || attempt == queryAttempts {
			break
		}

		slog.Warn("Database query failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * queryBackoff):
		}
	}
	return nil, fmt.Errorf("query failed: %w", lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection_exception
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01": // serialization_failure, deadlock_detected
			return true
		case pqErr.Code == "57P01": // admin_shutdown
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
