// package catalog_api serves a device's extracted categories and products.
// Every route here sits behind common.RequireDevice.
package catalog_api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
	"thirdcoast.systems/haul/internal/db"
)

func HandleListCategories(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		deviceID, err := common.DeviceID(c)
		if err != nil {
			return err
		}

		categories, err := store.Queries().ListCategoriesByDevice(c.Request().Context(), deviceID)
		if err != nil {
			slog.Error("list categories", "device_id", deviceID, "error", err)
			return common.ErrInternal("failed to list categories")
		}
		if categories == nil {
			categories = []db.Category{}
		}
		return c.JSON(http.StatusOK, map[string]any{"categories": categories})
	}
}

// HandleListProducts returns the products of one category. A category owned
// by another device answers 404, same as a missing one.
func HandleListProducts(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		deviceID, err := common.DeviceID(c)
		if err != nil {
			return err
		}
		categoryID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		q := store.Queries()
		category, err := q.GetCategoryForDevice(ctx, categoryID, deviceID)
		if errors.Is(err, db.ErrNotFound) {
			return common.ErrNotFound("category not found")
		}
		if err != nil {
			slog.Error("get category", "id", categoryID, "error", err)
			return common.ErrInternal("failed to load category")
		}

		products, err := q.ListProductsByCategory(ctx, category.ID)
		if err != nil {
			slog.Error("list products", "category_id", category.ID, "error", err)
			return common.ErrInternal("failed to list products")
		}
		if products == nil {
			products = []db.Product{}
		}
		return c.JSON(http.StatusOK, map[string]any{"category": category, "products": products})
	}
}
