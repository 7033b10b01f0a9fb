package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/haul/pkg/utils/language"
)

const queueItemColumns = `id, device_id, url, language, status, last_error, created_at, updated_at`

func scanQueueItem(row pgx.Row) (*QueueItem, error) {
	var i QueueItem
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.URL,
		&i.Language,
		&i.Status,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const createQueueItem = `
INSERT INTO queue_items (id, device_id, url, language, status)
VALUES ($1, $2, $3, $4, 'PENDING')
ON CONFLICT (device_id, url) DO NOTHING
RETURNING ` + queueItemColumns

type CreateQueueItemParams struct {
	ID       uuid.UUID
	DeviceID string
	URL      string
	Language language.Tag
}

// CreateQueueItem inserts a PENDING item. A second capture of the same
// (device, url) pair returns ErrAlreadyExists instead of a row.
func (q *Queries) CreateQueueItem(ctx context.Context, arg *CreateQueueItemParams) (*QueueItem, error) {
	row := q.db.QueryRow(ctx, createQueueItem, arg.ID, arg.DeviceID, arg.URL, arg.Language)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || IsUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return item, nil
}

const getQueueItemByDeviceURL = `
SELECT ` + queueItemColumns + `
FROM queue_items
WHERE device_id = $1 AND url = $2
`

func (q *Queries) GetQueueItemByDeviceURL(ctx context.Context, deviceID, url string) (*QueueItem, error) {
	item, err := scanQueueItem(q.db.QueryRow(ctx, getQueueItemByDeviceURL, deviceID, url))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

const getQueueItem = `
SELECT ` + queueItemColumns + `
FROM queue_items
WHERE id = $1
`

func (q *Queries) GetQueueItem(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	item, err := scanQueueItem(q.db.QueryRow(ctx, getQueueItem, id))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

const getQueueItemWithDevice = `
SELECT q.id, q.device_id, q.url, q.language, q.status, q.last_error, q.created_at, q.updated_at,
       d.id, d.created_at
FROM queue_items q
JOIN devices d ON d.id = q.device_id
WHERE q.id = $1
`

func (q *Queries) GetQueueItemWithDevice(ctx context.Context, id uuid.UUID) (*QueueItemWithDevice, error) {
	var i QueueItemWithDevice
	err := q.db.QueryRow(ctx, getQueueItemWithDevice, id).Scan(
		&i.ID,
		&i.DeviceID,
		&i.URL,
		&i.Language,
		&i.Status,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Device.ID,
		&i.Device.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

const updateQueueItemStatus = `
UPDATE queue_items
SET status = $3, last_error = $4, updated_at = now()
WHERE id = $1 AND status = $2
`

type UpdateQueueItemStatusParams struct {
	ID        uuid.UUID
	From      QueueStatus
	To        QueueStatus
	LastError *string
}

// UpdateQueueItemStatus is a compare-and-set on the status column. It returns
// ErrStaleStatus when the row is no longer in arg.From.
func (q *Queries) UpdateQueueItemStatus(ctx context.Context, arg *UpdateQueueItemStatusParams) error {
	tag, err := q.db.Exec(ctx, updateQueueItemStatus, arg.ID, arg.From, arg.To, arg.LastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queue item %s %s->%s: %w", arg.ID, arg.From, arg.To, ErrStaleStatus)
	}
	return nil
}

const countStuckQueueItems = `
SELECT count(*) FROM queue_items
WHERE status = 'PROCESSING' AND updated_at < $1
`

// CountStuckQueueItems counts items that have been PROCESSING since before the cutoff.
func (q *Queries) CountStuckQueueItems(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countStuckQueueItems, cutoff).Scan(&n)
	return n, err
}
