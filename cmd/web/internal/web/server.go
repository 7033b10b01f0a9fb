package web

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"thirdcoast.systems/haul/cmd/web/handlers/api/capture_api"
	"thirdcoast.systems/haul/cmd/web/handlers/api/catalog_api"
	"thirdcoast.systems/haul/cmd/web/handlers/api/status_api"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/ingest"
)

type Webserver struct {
	*echo.Echo
	store  *db.Store
	broker *broker.Broker
	ingest *ingest.Service
}

func NewWebserver(store *db.Store, b *broker.Broker) (*Webserver, error) {
	e := echo.New()
	e.HTTPErrorHandler = common.JSONErrorHandler

	webserver := &Webserver{
		Echo:   e,
		store:  store,
		broker: b,
		ingest: ingest.NewService(store, b),
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}
	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}
	return webserver, nil
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("64K"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig()))
	return nil
}

func (s *Webserver) registerRoutes() error {
	apiGroup := s.Group("/api")

	apiGroup.POST("/captures", capture_api.HandleCreate(s.ingest))

	apiGroup.GET("/health", status_api.HandleHealth(map[string]status_api.Pinger{
		"database": s.store,
		"redis":    s.broker,
	}))
	apiGroup.GET("/queue/status", status_api.HandleQueueStatus(s.broker))
	apiGroup.POST("/queue/pause", status_api.HandlePause(s.broker))
	apiGroup.POST("/queue/resume", status_api.HandleResume(s.broker))
	apiGroup.GET("/queue/items", status_api.HandleListItems(s.store, s.broker))
	apiGroup.GET("/queue/items/:id", status_api.HandleGetItem(s.store, s.broker))

	apiGroup.GET("/categories", catalog_api.HandleListCategories(s.store), common.RequireDevice)
	apiGroup.GET("/categories/:id/products", catalog_api.HandleListProducts(s.store), common.RequireDevice)

	return nil
}
