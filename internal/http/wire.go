package api

import (
	"context"

	"pilgrimage/internal/cache"
	intconfig "pilgrimage/internal/config"
	h "pilgrimage/internal/http/handlers"
	"pilgrimage/internal/services"

	"github.com/redis/go-redis/v9"
)

// NewAPI builds every service on one store backend.
func NewAPI(env intconfig.Env, stores services.Stores, rdb *redis.Client, ping func(context.Context) error) *h.API {
	ledger := services.NewCapacityLedger(
		stores.Trips,
		cache.NewAvailability(rdb, env.AvailabilityCacheTTL),
		env.LedgerCallTimeout,
		env.ReleaseRetryTimeout,
	)
	lifecycle := services.NewBookingLifecycle(ledger, stores.Bookings, services.NewGuestResolver(stores.Users))
	return &h.API{
		Lifecycle: lifecycle,
		Trips:     services.TripService{Trips: stores.Trips, Ledger: ledger},
		Auth:      services.NewAuthService(stores.Users, env.JWTSecret, env.JWTTTL),
		Docs:      services.DocsService{Lifecycle: lifecycle},
		Ping:      ping,
	}
}
