// Package aggregate provides read-only statistics over the session table:
// totals over named windows, calendar day buckets, and per-day statistics.
package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/common/validation"
	"learning-tracker/internal/models"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 100 * time.Millisecond
)

// Aggregator runs read-only queries against the session table. Reads retry
// persistence failures with exponential backoff; the mutating store never
// does.
type Aggregator struct {
	db            *sql.DB
	cache         *Cache
	log           logger.Logger
	now           func() time.Time
	retryAttempts int
	retryDelay    time.Duration
}

func New(db *sql.DB, cache *Cache, log logger.Logger) *Aggregator {
	return &Aggregator{
		db:            db,
		cache:         cache,
		log:           log.WithFields(map[string]interface{}{"component": "aggregator"}),
		now:           time.Now,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// withRetry attempts a read-only query with exponential backoff, capped at
// retryAttempts. Only persistence failures are retried.
func (a *Aggregator) withRetry(ctx context.Context, operation string, fn func() error) error {
	delay := a.retryDelay
	var err error
	for attempt := 1; attempt <= a.retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		stdErr := errors.Normalize(err)
		if stdErr.Kind != errors.KindPersistence {
			return err
		}
		if attempt < a.retryAttempts {
			a.log.Warn("read query failed, retrying", map[string]interface{}{
				"operation":   operation,
				"attempt":     attempt,
				"maxAttempts": a.retryAttempts,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.NewRequestTimeoutError(operation)
			}
			delay *= 2
		}
	}
	return err
}

// rangeStart translates a named window into its inclusive lower bound.
// "today" starts at UTC midnight; "week" and "month" are trailing windows.
func rangeStart(rng string, now time.Time) time.Time {
	now = now.UTC()
	switch rng {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	default: // "all"
		return time.Time{}
	}
}

// CalculateTotals sums completed-session durations and session counts over
// the named window. Empty result sets yield zeros, never nulls.
func (a *Aggregator) CalculateTotals(ctx context.Context, userID, rng string) (*models.Totals, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := validation.DateRange(rng); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("agg:totals:%s:%s", userID, rng)
	var cached models.Totals
	if a.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	since := rangeStart(rng, a.now())
	totals := &models.Totals{Range: rng}

	err := a.withRetry(ctx, "calculate totals", func() error {
		var first, last sql.NullTime
		scanErr := a.db.QueryRowContext(ctx,
			`SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE status = 'completed'),
				COUNT(*) FILTER (WHERE status = 'active'),
				COALESCE(SUM(duration_seconds) FILTER (WHERE status = 'completed'), 0),
				COALESCE(AVG(duration_seconds) FILTER (WHERE status = 'completed'), 0),
				MIN(start_time),
				MAX(start_time)
			 FROM learning_sessions
			 WHERE user_id = $1 AND start_time >= $2`,
			userID, since).Scan(
			&totals.TotalSessions,
			&totals.CompletedSessions,
			&totals.ActiveSessions,
			&totals.TotalSeconds,
			&totals.AverageSeconds,
			&first,
			&last,
		)
		if scanErr != nil {
			return errors.NewPersistenceError("calculate totals", scanErr)
		}
		if first.Valid {
			t := first.Time
			totals.FirstSession = &t
		}
		if last.Valid {
			t := last.Time
			totals.LastSession = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.cache.Set(ctx, cacheKey, totals)
	return totals, nil
}

// GetCalendarData groups sessions by the calendar date of their start time
// over the trailing monthsBack months, one aggregate per date with activity.
func (a *Aggregator) GetCalendarData(ctx context.Context, userID string, monthsBack int) (map[string]models.CalendarDayAggregate, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := validation.MonthsBack(monthsBack); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("agg:calendar:%s:%d", userID, monthsBack)
	cached := make(map[string]models.CalendarDayAggregate)
	if a.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	since := a.now().UTC().AddDate(0, -monthsBack, 0)
	result := make(map[string]models.CalendarDayAggregate)

	err := a.withRetry(ctx, "calendar data", func() error {
		rows, queryErr := a.db.QueryContext(ctx,
			`SELECT
				(start_time AT TIME ZONE 'UTC')::date AS day,
				COUNT(*),
				COUNT(*) FILTER (WHERE status = 'completed'),
				COALESCE(SUM(duration_seconds) FILTER (WHERE status = 'completed'), 0)
			 FROM learning_sessions
			 WHERE user_id = $1 AND start_time >= $2
			 GROUP BY day
			 ORDER BY day`,
			userID, since)
		if queryErr != nil {
			return errors.NewPersistenceError("calendar data", queryErr)
		}
		defer rows.Close()

		scanned := make(map[string]models.CalendarDayAggregate)
		for rows.Next() {
			var day time.Time
			var agg models.CalendarDayAggregate
			if scanErr := rows.Scan(&day, &agg.SessionCount, &agg.CompletedSessionCount, &agg.TotalSeconds); scanErr != nil {
				return errors.NewPersistenceError("calendar data", scanErr)
			}
			agg.Date = day.Format("2006-01-02")
			agg.TotalMinutes = agg.TotalSeconds / 60
			agg.Intensity = models.IntensityBucket(agg.TotalMinutes)
			scanned[agg.Date] = agg
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return errors.NewPersistenceError("calendar data", rowsErr)
		}
		result = scanned
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.cache.Set(ctx, cacheKey, result)
	return result, nil
}

// GetSessionStatistics reports per-day counts and min/max/average completed
// durations, optionally bounded by an inclusive timestamp range. Both bounds
// are independently optional.
func (a *Aggregator) GetSessionStatistics(ctx context.Context, userID string, startDate, endDate *time.Time) ([]models.DayStatistics, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}

	query := `SELECT
		(start_time AT TIME ZONE 'UTC')::date AS day,
		COUNT(*),
		COALESCE(MIN(duration_seconds) FILTER (WHERE status = 'completed'), 0),
		COALESCE(MAX(duration_seconds) FILTER (WHERE status = 'completed'), 0),
		COALESCE(AVG(duration_seconds) FILTER (WHERE status = 'completed'), 0)
	 FROM learning_sessions
	 WHERE user_id = $1`
	args := []interface{}{userID}

	if startDate != nil {
		args = append(args, startDate.UTC())
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if endDate != nil {
		args = append(args, endDate.UTC())
		query += fmt.Sprintf(" AND start_time <= $%d", len(args))
	}
	query += " GROUP BY day ORDER BY day"

	var stats []models.DayStatistics
	err := a.withRetry(ctx, "session statistics", func() error {
		rows, queryErr := a.db.QueryContext(ctx, query, args...)
		if queryErr != nil {
			return errors.NewPersistenceError("session statistics", queryErr)
		}
		defer rows.Close()

		scanned := make([]models.DayStatistics, 0)
		for rows.Next() {
			var day time.Time
			var row models.DayStatistics
			if scanErr := rows.Scan(&day, &row.SessionCount, &row.MinDurationSeconds, &row.MaxDurationSeconds, &row.AverageDurationSeconds); scanErr != nil {
				return errors.NewPersistenceError("session statistics", scanErr)
			}
			row.Date = day.Format("2006-01-02")
			scanned = append(scanned, row)
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return errors.NewPersistenceError("session statistics", rowsErr)
		}
		stats = scanned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
