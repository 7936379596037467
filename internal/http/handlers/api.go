package handlers

import (
	"context"

	"pilgrimage/internal/services"
)

// API holds the services the handlers call.
type API struct {
	Lifecycle *services.BookingLifecycle
	Trips     services.TripService
	Auth      services.AuthService
	Docs      services.DocsService
	// Ping checks the backing store for /db-check. Nil means an in-memory store.
	Ping func(ctx context.Context) error
}
