package db

import (
	"context"

	"github.com/google/uuid"
)

const categoryColumns = `id, device_id, name, description, created_at`

const upsertCategory = `
INSERT INTO categories (id, device_id, name, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (device_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING ` + categoryColumns

type UpsertCategoryParams struct {
	ID          uuid.UUID
	DeviceID    string
	Name        string
	Description string
}

// UpsertCategory returns the device's category with the given name, creating
// it when missing. An existing row keeps its id and description.
func (q *Queries) UpsertCategory(ctx context.Context, arg *UpsertCategoryParams) (*Category, error) {
	var c Category
	err := q.db.QueryRow(ctx, upsertCategory, arg.ID, arg.DeviceID, arg.Name, arg.Description).Scan(
		&c.ID,
		&c.DeviceID,
		&c.Name,
		&c.Description,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const listCategoriesByDevice = `
SELECT ` + categoryColumns + `
FROM categories
WHERE device_id = $1
ORDER BY name
`

func (q *Queries) ListCategoriesByDevice(ctx context.Context, deviceID string) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategoriesByDevice, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const getCategoryForDevice = `
SELECT ` + categoryColumns + `
FROM categories
WHERE id = $1 AND device_id = $2
`

func (q *Queries) GetCategoryForDevice(ctx context.Context, id uuid.UUID, deviceID string) (*Category, error) {
	var c Category
	err := q.db.QueryRow(ctx, getCategoryForDevice, id, deviceID).Scan(
		&c.ID, &c.DeviceID, &c.Name, &c.Description, &c.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

const upsertProduct = `
INSERT INTO products (id, category_id, name, description, icon, mentioned_content, tiktok_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    description = EXCLUDED.description,
    icon = EXCLUDED.icon,
    mentioned_content = EXCLUDED.mentioned_content,
    tiktok_url = EXCLUDED.tiktok_url,
    updated_at = now()
`

type UpsertProductParams struct {
	ID               uuid.UUID
	CategoryID       uuid.UUID
	Name             string
	Description      string
	Icon             *string
	MentionedContent string
	TiktokURL        string
}

func (q *Queries) UpsertProduct(ctx context.Context, arg *UpsertProductParams) error {
	_, err := q.db.Exec(ctx, upsertProduct,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Icon,
		arg.MentionedContent,
		arg.TiktokURL,
	)
	return err
}

const listProductsByCategory = `
SELECT id, category_id, name, description, icon, mentioned_content, tiktok_url, created_at, updated_at
FROM products
WHERE category_id = $1
ORDER BY created_at, name
`

func (q *Queries) ListProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID,
			&p.CategoryID,
			&p.Name,
			&p.Description,
			&p.Icon,
			&p.MentionedContent,
			&p.TiktokURL,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
