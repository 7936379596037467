package api

import (
	"log"
	stdhttp "net/http"
	"time"

	intconfig "pilgrimage/internal/config"
	h "pilgrimage/internal/http/handlers"
	"pilgrimage/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators the router wires into routes.
type Deps struct {
	API   *h.API
	Redis *redis.Client
}

func NewRouter(env intconfig.Env, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	parse := func(raw string) (int64, string, error) {
		claims, err := d.API.Auth.ParseToken(raw)
		return claims.UserID, claims.Role, err
	}
	optional := middleware.AuthOptional(parse)
	required := middleware.AuthRequired(parse)
	staff := middleware.RequireRoles("organizer", "admin")

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", d.API.DBCheck)
		api.GET("/routes", h.Routes)
		api.GET("/metrics", gin.WrapH(promhttp.Handler()))

		// Auth
		auth := api.Group("/auth")
		auth.POST("/login", d.API.Login)
		auth.POST("/register", d.API.Register)

		// Trips
		trips := api.Group("/trips")
		trips.GET("", d.API.ListTrips)
		trips.GET("/:id", d.API.GetTrip)
		trips.GET("/:id/availability", d.API.TripAvailability)
		trips.POST("", required, staff, d.API.CreateTrip)
		trips.PUT("/:id/capacity", required, staff, d.API.UpdateTripCapacity)
		trips.DELETE("/:id", required, staff, d.API.DeactivateTrip)
		trips.GET("/:id/bookings", required, staff, d.API.TripBookings)
		trips.GET("/:id/capacity-audit", required, middleware.RequireRoles("admin"), d.API.CapacityAudit)

		// Bookings
		bookings := api.Group("/bookings")
		bookings.POST("", optional, middleware.RateLimit(d.Redis, "bookings", env.BookingRateLimit, time.Minute), d.API.CreateBooking)
		bookings.GET("/:id", required, d.API.GetBooking)
		bookings.PUT("/:id/status", required, d.API.UpdateBookingStatus)
		bookings.GET("/:id/invoice", required, d.API.BookingInvoice)

		api.GET("/me/bookings", required, d.API.MyBookings)
		api.GET("/organizer/bookings", required, staff, d.API.OrganizerBookings)
	}

	h.SetRouter(r)
	return r
}
