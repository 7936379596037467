package handlers

import (
	"net/http"
	"strings"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// POST /api/bookings. Anonymous callers book as guests identified by contact_email.
func (a *API) CreateBooking(c *gin.Context) {
	var in models.CreateBookingInput
	if !BindJSONOrError(c, &in) {
		return
	}
	in.UserID = int64(middleware.Actor(c).UserID)
	booking, err := a.Lifecycle.CreateBooking(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/bookings/:id
func (a *API) GetBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	booking, err := a.Lifecycle.GetBookingAs(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PUT /api/bookings/:id/status
func (a *API) UpdateBookingStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	to, err := models.ParseBookingStatus(req.Status)
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "status", Err: err})
		return
	}
	booking, err := a.Lifecycle.TransitionAs(c.Request.Context(), middleware.Actor(c), id, to)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking":  booking,
		"category": booking.Status.Category(),
	})
}

// GET /api/me/bookings
func (a *API) MyBookings(c *gin.Context) {
	actor := middleware.Actor(c)
	a.listBookings(c, models.BookingFilter{UserID: int64(actor.UserID)})
}

// GET /api/organizer/bookings. Admins may pass organizer_id.
func (a *API) OrganizerBookings(c *gin.Context) {
	actor := middleware.Actor(c)
	orgID := int64(actor.UserID)
	if actor.IsAdmin() {
		if q := int64Query(c, "organizer_id"); q > 0 {
			orgID = q
		}
	}
	a.listBookings(c, models.BookingFilter{OrganizerID: orgID})
}

func (a *API) listBookings(c *gin.Context, f models.BookingFilter) {
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, err := models.ParseBookingStatus(raw)
		if err != nil {
			RespondDomainError(c, domain.ValidationError{Field: "status", Err: err})
			return
		}
		f.Status = st
	}
	page := pageFromQuery(c)
	f.Limit, f.Offset = page.Limit(), page.Offset()
	list, err := a.Lifecycle.ListBookings(c.Request.Context(), f)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "page": page.Page, "page_size": page.Limit()})
}
