package repository

import (
	"context"
	"database/sql"
	"errors"
)

const incrementDailyUsage = `
INSERT INTO daily_usage (ip, usage_date, count)
VALUES (?, ?, 1)
ON CONFLICT (ip, usage_date) DO UPDATE
SET count = daily_usage.count + 1
WHERE daily_usage.count < ?
RETURNING count
`

type IncrementDailyUsageParams struct {
	IP        string
	UsageDate string
	Limit     int
}

// IncrementDailyUsage creates or increments the counter for (ip, date) in a
// single statement, only while the stored count is below Limit. It returns
// sql.ErrNoRows when the limit is already reached; the row is left unchanged.
func (q *Queries) IncrementDailyUsage(ctx context.Context, arg IncrementDailyUsageParams) (int, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(incrementDailyUsage), arg.IP, arg.UsageDate, arg.Limit)
	var count int
	err := row.Scan(&count)
	return count, err
}

const getDailyUsage = `
SELECT count FROM daily_usage WHERE ip = ? AND usage_date = ?
`

// GetDailyUsage returns the counter for (ip, date), or 0 when no row exists.
func (q *Queries) GetDailyUsage(ctx context.Context, ip, usageDate string) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, q.rebind(getDailyUsage), ip, usageDate).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

const deleteDailyUsageBefore = `
DELETE FROM daily_usage WHERE usage_date < ?
`

// DeleteDailyUsageBefore removes counters for days strictly before usageDate.
func (q *Queries) DeleteDailyUsageBefore(ctx context.Context, usageDate string) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.rebind(deleteDailyUsageBefore), usageDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
