package db

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type QueueItemFilter struct {
	DeviceID string
	Status   QueueStatus
	Limit    uint64
}

func (f QueueItemFilter) query() squirrel.SelectBuilder {
	limit := f.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	b := psql.Select(queueItemColumns).
		From("queue_items").
		OrderBy("created_at DESC", "id").
		Limit(limit)
	if f.DeviceID != "" {
		b = b.Where(squirrel.Eq{"device_id": f.DeviceID})
	}
	if f.Status != "" {
		b = b.Where(squirrel.Eq{"status": string(f.Status)})
	}
	return b
}

// ListQueueItems returns the newest items matching the filter.
func (q *Queries) ListQueueItems(ctx context.Context, f QueueItemFilter) ([]QueueItem, error) {
	sql, args, err := f.query().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
