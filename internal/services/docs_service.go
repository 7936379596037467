package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders booking documents as PDF.
type DocsService struct {
	Lifecycle *BookingLifecycle
	Currency  string
	Loader    func(ctx context.Context, bookingID int64) (bookingDocData, error)
}

type bookingDocData struct {
	Booking models.Booking
	Trip    models.Trip
}

// GenerateInvoice returns the invoice PDF and its file name.
func (s DocsService) GenerateInvoice(ctx context.Context, bookingID int64) ([]byte, string, error) {
	data, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEventf(ctx, "docs", "generate_invoice", "booking_id=%d", bookingID)
	return buildInvoicePDF(data, utils.FirstNonEmpty(s.Currency, utils.DefaultCurrency))
}

func (s DocsService) load(ctx context.Context, bookingID int64) (bookingDocData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, bookingID)
	}
	b, err := s.Lifecycle.GetBooking(ctx, bookingID)
	if err != nil {
		return bookingDocData{}, err
	}
	trip, err := s.Lifecycle.Ledger.Trip(ctx, b.TripID)
	if err != nil {
		return bookingDocData{}, err
	}
	return bookingDocData{Booking: b, Trip: trip}, nil
}

func buildInvoicePDF(d bookingDocData, currency string) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	invNo := fmt.Sprintf("INV-%d-%d", d.Trip.ID, d.Booking.ID)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice No  : "+invNo)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued      : "+utils.FormatDateTime(utils.NowUTC()))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status      : "+strings.ToUpper(strings.ReplaceAll(string(d.Booking.Status), "_", " ")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Email  : %s", safe(d.Booking.ContactEmail, "-")))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Phone  : %s", safe(d.Booking.ContactPhone, "-")))
	pdf.Ln(10)

	desc := fmt.Sprintf("%s - %s (%s to %s)",
		safe(d.Trip.Title, "-"), safe(d.Trip.Destination, "-"),
		safe(dateOnly(d.Trip.StartDate), "-"), safe(dateOnly(d.Trip.EndDate), "-"),
	)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "1) "+desc, "", "", false)
	pdf.Ln(2)
	pdf.Cell(0, 6, fmt.Sprintf("Price per pilgrim: %s x %d", utils.FormatMoney(d.Trip.PricePerPerson, currency), d.Booking.NumberOfPilgrims))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+utils.FormatMoney(d.Booking.TotalAmount, currency))
	pdf.Ln(12)

	if notes := strings.TrimSpace(d.Booking.SpecialRequests); notes != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, "Special requests: "+notes, "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("INVOICE_%d_%s.pdf", d.Booking.ID, safeFilenamePart(d.Trip.Title))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func dateOnly(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 10 {
		return v[:10]
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
