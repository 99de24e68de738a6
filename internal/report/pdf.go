package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/iliyamo/hall-calendar/internal/model"
)

const receiptStampLayout = "02 Jan 2006 at 03:04 PM"

// WriteReceiptPDF renders the single page receipt for one booking.
func WriteReceiptPDF(w io.Writer, b model.BookingView) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Booking receipt "+b.Code, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Wedding Hall Booking Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"BID", b.Code},
		{"Hall", b.HallName},
		{"Date", b.Date.Format(dateLayout)},
		{"Time Slot", b.Slot.Title()},
		{"Client Name", b.ClientName},
		{"Phone", b.Phone},
		{"Address", b.Address},
		{"Total", FormatAmount(b.TotalAmount)},
		{"Advance Paid", FormatAmount(b.AdvancePaid)},
		{"Balance", FormatAmount(b.Balance)},
		{"Status", b.Status.Title()},
		{"Booked on", model.InIST(b.CreatedAt).Format(receiptStampLayout)},
	}
	if b.ConfirmedAt != nil {
		rows = append(rows, [2]string{"Confirmed on", model.InIST(*b.ConfirmedAt).Format(receiptStampLayout)})
	}

	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(45, 10, "Field", "1", 0, "L", true, 0, "")
	pdf.CellFormat(125, 10, "Value", "1", 1, "L", true, 0, "")

	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	for _, r := range rows {
		pdf.CellFormat(45, 8, tr(r[0]+":"), "1", 0, "L", true, 0, "")
		pdf.CellFormat(125, 8, tr(r[1]), "1", 1, "L", true, 0, "")
	}
	return pdf.Output(w)
}

var listingColumns = []struct {
	title string
	width float64
}{
	{"BID", 18}, {"Hall", 34}, {"Date", 24}, {"Slot", 14}, {"Client", 44},
	{"Phone", 28}, {"Status", 20}, {"Total", 24}, {"Advance", 24}, {"Balance", 24},
}

// WriteListingPDF renders all rows as a landscape table with a repeated
// header on each page.  Zero rows produce a page with the header and a
// note.
func WriteListingPDF(w io.Writer, rows []model.BookingView, generatedAt time.Time) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Bookings", true)
	pdf.SetAutoPageBreak(false, 10)

	_, pageH := pdf.GetPageSize()
	header := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, "Bookings", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 10, "Generated "+model.InIST(generatedAt).Format(stampLayout)+" IST", "", 1, "R", false, 0, "")

		pdf.SetFillColor(128, 128, 128)
		pdf.SetTextColor(245, 245, 245)
		pdf.SetFont("Helvetica", "B", 9)
		for _, c := range listingColumns {
			pdf.CellFormat(c.width, 8, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 8)
	}

	header()
	if len(rows) == 0 {
		pdf.CellFormat(0, 8, "No bookings", "", 1, "L", false, 0, "")
		return pdf.Output(w)
	}
	for i, b := range rows {
		if pdf.GetY()+7 > pageH-10 {
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 220)
		cells := []string{
			b.Code, b.HallName, b.Date.Format(dateLayout), b.Slot.Title(), b.ClientName,
			b.Phone, b.Status.Title(), FormatAmount(b.TotalAmount), FormatAmount(b.AdvancePaid), FormatAmount(b.Balance),
		}
		for j, c := range listingColumns {
			align := "L"
			if j >= 7 {
				align = "R"
			}
			pdf.CellFormat(c.width, 7, fit(pdf, tr, cells[j], c.width-2), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(0, 8, fmt.Sprintf("%d bookings", len(rows)), "", 1, "L", false, 0, "")
	return pdf.Output(w)
}

// fit converts s with tr to the core font encoding, then shortens it with
// an ellipsis until it fits width at the current font.  The result is
// already translated.
func fit(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	s = tr(s)
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	// Translated text is single-byte, so trimming bytes trims characters.
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
