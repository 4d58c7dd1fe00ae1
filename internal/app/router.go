package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"taxi/internal/handler"
	"taxi/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler *handler.BookingHandler
	DriverHandler  *handler.DriverHandler
	StreamHandler  *handler.StreamHandler
	GeoHandler     *handler.GeoHandler
	ResponseStore  middleware.ResponseStore
	NewRelicApp    *newrelic.Application
	Logger         logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestIDMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.ResponseStore, deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.Create)
			bookings.GET("", deps.BookingHandler.GetAll)
			bookings.GET("/:id", deps.BookingHandler.Get)
			bookings.PATCH("/:id", deps.BookingHandler.Update)
			bookings.POST("/:id/cancel", deps.BookingHandler.Cancel)
			bookings.POST("/:id/complete", deps.BookingHandler.Complete)
			bookings.POST("/:id/assign", deps.BookingHandler.Assign)
			bookings.POST("/:id/auto-assign", deps.BookingHandler.AutoAssign)
		}

		v1.GET("/customers/:id/bookings", deps.BookingHandler.ListByCustomer)

		drivers := v1.Group("/drivers")
		{
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.POST("/preload", deps.DriverHandler.Preload)
			drivers.GET("/locations", deps.DriverHandler.Locations)
			drivers.GET("/nearby", deps.DriverHandler.Nearby)
			drivers.GET("/nearby/ws", deps.StreamHandler.Nearby)
			drivers.GET("/:id/bookings", deps.BookingHandler.ListByDriver)
		}

		geo := v1.Group("/geo")
		{
			geo.GET("/resolve", deps.GeoHandler.Resolve)
			geo.GET("/search", deps.GeoHandler.Search)
			geo.GET("/route", deps.GeoHandler.Route)
		}
	}

	return router
}
