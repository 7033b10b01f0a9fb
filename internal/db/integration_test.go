//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"thirdcoast.systems/haul/pkg/utils/language"
)

func startPostgres(t *testing.T) *DatabaseConnection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "haul",
				"POSTGRES_PASSWORD": "haul",
				"POSTGRES_DB":       "haul",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://haul:haul@%s:%s/haul?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	dbc, err := NewDatabaseConnection(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(dbc.Close)

	_, err = dbc.Migrate(ctx, MigrateTarget{})
	require.NoError(t, err)
	return dbc
}

func TestIntegration_Pipeline(t *testing.T) {
	dbc := startPostgres(t)
	store := dbc.Store()
	ctx := context.Background()
	q := store.Queries()

	t.Run("device upsert is idempotent", func(t *testing.T) {
		require.NoError(t, q.UpsertDevice(ctx, "dev-1"))
		first, err := q.GetDevice(ctx, "dev-1")
		require.NoError(t, err)
		require.NoError(t, q.UpsertDevice(ctx, "dev-1"))
		again, err := q.GetDevice(ctx, "dev-1")
		require.NoError(t, err)
		require.Equal(t, first.CreatedAt, again.CreatedAt)
	})

	var item *QueueItem
	t.Run("queue item unique per device and url", func(t *testing.T) {
		var err error
		item, err = q.CreateQueueItem(ctx, &CreateQueueItemParams{
			ID: uuid.New(), DeviceID: "dev-1", URL: "https://video/1", Language: language.Und,
		})
		require.NoError(t, err)
		require.Equal(t, QueueStatusPending, item.Status)

		_, err = q.CreateQueueItem(ctx, &CreateQueueItemParams{
			ID: uuid.New(), DeviceID: "dev-1", URL: "https://video/1",
		})
		require.ErrorIs(t, err, ErrAlreadyExists)

		existing, err := q.GetQueueItemByDeviceURL(ctx, "dev-1", "https://video/1")
		require.NoError(t, err)
		require.Equal(t, item.ID, existing.ID)
	})

	t.Run("status compare-and-set", func(t *testing.T) {
		require.NoError(t, q.UpdateQueueItemStatus(ctx, &UpdateQueueItemStatusParams{
			ID: item.ID, From: QueueStatusPending, To: QueueStatusProcessing,
		}))
		err := q.UpdateQueueItemStatus(ctx, &UpdateQueueItemStatusParams{
			ID: item.ID, From: QueueStatusPending, To: QueueStatusProcessing,
		})
		require.ErrorIs(t, err, ErrStaleStatus)

		stuck, err := q.CountStuckQueueItems(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, stuck)
	})

	t.Run("catalog transaction is atomic and idempotent", func(t *testing.T) {
		catID := uuid.New()
		prodID := uuid.New()
		persist := func() error {
			return store.RunInTx(ctx, func(tx *Queries) error {
				cat, err := tx.UpsertCategory(ctx, &UpsertCategoryParams{ID: catID, DeviceID: "dev-1", Name: "skincare"})
				if err != nil {
					return err
				}
				return tx.UpsertProduct(ctx, &UpsertProductParams{
					ID: prodID, CategoryID: cat.ID, Name: "Snail Mucin", TiktokURL: "https://video/1",
				})
			})
		}
		require.NoError(t, persist())
		require.NoError(t, persist())

		products, err := q.ListProductsByCategory(ctx, catID)
		require.NoError(t, err)
		require.Len(t, products, 1)

		boom := errors.New("boom")
		err = store.RunInTx(ctx, func(tx *Queries) error {
			if _, err := tx.UpsertCategory(ctx, &UpsertCategoryParams{ID: uuid.New(), DeviceID: "dev-1", Name: "makeup"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		categories, err := q.ListCategoriesByDevice(ctx, "dev-1")
		require.NoError(t, err)
		require.Len(t, categories, 1, "rolled back category must not be visible")

		_, err = q.GetCategoryForDevice(ctx, catID, "dev-2")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("renamed category does not block its old name", func(t *testing.T) {
		require.NoError(t, q.UpsertDevice(ctx, "dev-3"))
		first, err := q.UpsertCategory(ctx, &UpsertCategoryParams{ID: uuid.New(), DeviceID: "dev-3", Name: "skincare"})
		require.NoError(t, err)
		_, err = dbc.Exec(ctx, `UPDATE categories SET name = 'Beauty' WHERE id = $1`, first.ID)
		require.NoError(t, err)

		// each extraction run offers a fresh id; the name decides the row
		recreated, err := q.UpsertCategory(ctx, &UpsertCategoryParams{ID: uuid.New(), DeviceID: "dev-3", Name: "skincare"})
		require.NoError(t, err)
		require.NotEqual(t, first.ID, recreated.ID)

		again, err := q.UpsertCategory(ctx, &UpsertCategoryParams{ID: uuid.New(), DeviceID: "dev-3", Name: "skincare"})
		require.NoError(t, err)
		require.Equal(t, recreated.ID, again.ID)

		categories, err := q.ListCategoriesByDevice(ctx, "dev-3")
		require.NoError(t, err)
		require.Len(t, categories, 2)
	})

	t.Run("list filter", func(t *testing.T) {
		items, err := q.ListQueueItems(ctx, QueueItemFilter{DeviceID: "dev-1", Status: QueueStatusProcessing})
		require.NoError(t, err)
		require.Len(t, items, 1)

		items, err = q.ListQueueItems(ctx, QueueItemFilter{Status: QueueStatusCompleted})
		require.NoError(t, err)
		require.Empty(t, items)
	})
}
