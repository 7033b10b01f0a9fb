package db

import (
	"context"
)

const upsertDevice = `
INSERT INTO devices (id)
VALUES ($1)
ON CONFLICT (id) DO NOTHING
`

// UpsertDevice creates the device row if it is missing. Existing rows are left untouched.
func (q *Queries) UpsertDevice(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, upsertDevice, id)
	return err
}

const getDevice = `
SELECT id, created_at FROM devices WHERE id = $1
`

func (q *Queries) GetDevice(ctx context.Context, id string) (*Device, error) {
	row := q.db.QueryRow(ctx, getDevice, id)
	var d Device
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}
