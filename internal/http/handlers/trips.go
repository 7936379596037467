package handlers

import (
	"net/http"

	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/trips?organizer_id=&include_inactive=1
func (a *API) ListTrips(c *gin.Context) {
	page := pageFromQuery(c)
	trips, err := a.Trips.ListTrips(c.Request.Context(), models.TripFilter{
		OrganizerID: int64Query(c, "organizer_id"),
		ActiveOnly:  c.Query("include_inactive") != "1",
		Limit:       page.Limit(),
		Offset:      page.Offset(),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips, "page": page.Page, "page_size": page.Limit()})
}

// GET /api/trips/:id
func (a *API) GetTrip(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	trip, err := a.Trips.GetTrip(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// GET /api/trips/:id/availability
func (a *API) TripAvailability(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	seats, err := a.Lifecycle.AvailableSeats(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": id, "available_seats": seats})
}

// POST /api/trips
func (a *API) CreateTrip(c *gin.Context) {
	var in models.TripInput
	if !BindJSONOrError(c, &in) {
		return
	}
	trip, err := a.Trips.CreateTrip(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// DELETE /api/trips/:id closes the trip for new bookings.
type capacityRequest struct {
	MaxPilgrims int `json:"max_pilgrims"`
}

func (a *API) UpdateTripCapacity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req capacityRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	view, err := a.Trips.UpdateCapacity(c.Request.Context(), middleware.Actor(c), id, req.MaxPilgrims)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) DeactivateTrip(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.Trips.Deactivate(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trip deactivated", "trip_id": id})
}

// GET /api/trips/:id/bookings
func (a *API) TripBookings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.Trips.CanManage(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	a.listBookings(c, models.BookingFilter{TripID: id})
}

// GET /api/trips/:id/capacity-audit
func (a *API) CapacityAudit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	audit, err := a.Lifecycle.CapacityAudit(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}
