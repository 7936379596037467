package handlers

import (
	"net/http"

	"pilgrimage/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/bookings/:id/invoice returns the booking invoice inline.
func (a *API) BookingInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := a.Lifecycle.GetBookingAs(c.Request.Context(), middleware.Actor(c), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	pdfBytes, filename, err := a.Docs.GenerateInvoice(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
