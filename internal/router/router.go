// Package router wires the HTTP routes to their handlers and applies
// the middleware chain: JWT authentication then rate limiting on
// everything under /v1, and response caching on the availability read.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/poligrain/inventory-reservation/internal/config"
	"github.com/poligrain/inventory-reservation/internal/handler"
	"github.com/poligrain/inventory-reservation/internal/middleware"
	"github.com/poligrain/inventory-reservation/internal/service"
)

// Deps carries everything route registration needs.
type Deps struct {
	Reservations *handler.ReservationHandler
	Availability *handler.AvailabilityHandler
	Orders       *handler.OrderHandler
	Sweep        *handler.SweepHandler
	JWTSecret    string
	Redis        *redis.Client // nil disables rate limiting and caching
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
}

// Register registers all routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	// Operational endpoints stay outside the versioned API: no auth, no
	// rate limit.
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	// Auth runs first: the limiter keys buckets on the authenticated
	// identity, which only JWTAuth puts into the context.
	v1.Use(middleware.JWTAuth(d.JWTSecret))
	v1.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	inv := v1.Group("/inventory")

	// Reservation lifecycle.
	inv.POST("/reserve", d.Reservations.Create)
	inv.POST("/reserve/bulk", d.Reservations.CreateBulk)
	inv.POST("/reserve/:reservationId/confirm", d.Reservations.Confirm)
	inv.POST("/reserve/:reservationId/extend", d.Reservations.Extend)
	inv.DELETE("/reserve/:reservationId", d.Reservations.Release)

	// Per-user views.  Ownership versus ADMIN access is enforced in the
	// service layer, not here, because users may always act on their own
	// reservations.
	inv.GET("/reserve/user/:userId", d.Reservations.ListByUser)
	inv.DELETE("/reserve/user/:userId", d.Reservations.ReleaseAll)

	// Availability is the hot read; cache it briefly.
	inv.GET("/availability/:productId", d.Availability.Get,
		middleware.NewRedisCache(d.Cache, d.Redis))

	// Manual sweep trigger for operators; the background loop covers
	// normal operation.
	inv.POST("/sweep", d.Sweep.Trigger, middleware.RequireRole(service.RoleAdmin))

	v1.POST("/orders", d.Orders.Place)
}
