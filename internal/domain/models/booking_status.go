package models

import (
	"fmt"
	"strings"
)

// BookingStatus is the stored state of a booking.
type BookingStatus string

const (
	// Pre-trip
	StatusPending           BookingStatus = "pending"
	StatusConfirmed         BookingStatus = "confirmed"
	StatusPaid              BookingStatus = "paid"
	StatusDocumentsPending  BookingStatus = "documents_pending"
	StatusDocumentsVerified BookingStatus = "documents_verified"

	// Trip management
	StatusPreparing  BookingStatus = "preparing"
	StatusReady      BookingStatus = "ready"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"

	// Cancelled / issues
	StatusCancelledByPilgrim   BookingStatus = "cancelled_by_pilgrim"
	StatusCancelledByOrganizer BookingStatus = "cancelled_by_organizer"
	StatusRefunded             BookingStatus = "refunded"
	StatusNoShow               BookingStatus = "no_show"
)

// StatusCategory groups statuses for display and reporting.
type StatusCategory string

const (
	CategoryPreTrip   StatusCategory = "pre_trip"
	CategoryTrip      StatusCategory = "trip_management"
	CategoryCancelled StatusCategory = "cancelled"
)

type statusInfo struct {
	category StatusCategory
	terminal bool
	holds    bool
}

// Completed is terminal but keeps its seats; the four cancellation/issue
// statuses are terminal and release them.
var statusTable = map[BookingStatus]statusInfo{
	StatusPending:              {CategoryPreTrip, false, true},
	StatusConfirmed:            {CategoryPreTrip, false, true},
	StatusPaid:                 {CategoryPreTrip, false, true},
	StatusDocumentsPending:     {CategoryPreTrip, false, true},
	StatusDocumentsVerified:    {CategoryPreTrip, false, true},
	StatusPreparing:            {CategoryTrip, false, true},
	StatusReady:                {CategoryTrip, false, true},
	StatusInProgress:           {CategoryTrip, false, true},
	StatusCompleted:            {CategoryTrip, true, true},
	StatusCancelledByPilgrim:   {CategoryCancelled, true, false},
	StatusCancelledByOrganizer: {CategoryCancelled, true, false},
	StatusRefunded:             {CategoryCancelled, true, false},
	StatusNoShow:               {CategoryCancelled, true, false},
}

// AllStatuses lists statuses in display order.
var AllStatuses = []BookingStatus{
	StatusPending, StatusConfirmed, StatusPaid, StatusDocumentsPending, StatusDocumentsVerified,
	StatusPreparing, StatusReady, StatusInProgress, StatusCompleted,
	StatusCancelledByPilgrim, StatusCancelledByOrganizer, StatusRefunded, StatusNoShow,
}

// ParseBookingStatus accepts snake_case, camelCase and spaced spellings.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := strings.TrimSpace(raw)
	if strings.ToUpper(s) == s {
		s = strings.ToLower(s)
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	st := BookingStatus(b.String())
	if !st.Valid() {
		return "", fmt.Errorf("unknown booking status %q", raw)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// IsTerminal reports whether no further transitions are accepted.
func (s BookingStatus) IsTerminal() bool {
	return statusTable[s].terminal
}

// HoldsSeats reports whether a booking in this status counts against the trip ceiling.
func (s BookingStatus) HoldsSeats() bool {
	return statusTable[s].holds
}

func (s BookingStatus) Category() StatusCategory {
	return statusTable[s].category
}

// SeatCommittedStatuses returns every status whose bookings hold seats.
func SeatCommittedStatuses() []BookingStatus {
	out := make([]BookingStatus, 0, len(AllStatuses))
	for _, s := range AllStatuses {
		if s.HoldsSeats() {
			out = append(out, s)
		}
	}
	return out
}

// ReleasesSeats reports whether moving from -> to must free the booking's seats.
func ReleasesSeats(from, to BookingStatus) bool {
	return from.HoldsSeats() && !to.HoldsSeats()
}
