package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/iliyamo/hall-calendar/internal/model"
)

const (
	dateLayout  = "02 Jan 2006"
	stampLayout = "02 Jan 2006 15:04"
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{
	"BID", "Hall", "Date", "Time Slot", "Client Name", "Phone", "Address",
	"Total", "Advance", "Balance", "Status", "Booked On", "Confirmed On",
}

// WriteCSV writes the header followed by one line per booking.  Dates are
// "02 Jan 2006"; timestamps are shown in IST.
func WriteCSV(w io.Writer, rows []model.BookingView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, b := range rows {
		rec := []string{
			b.Code,
			b.HallName,
			b.Date.Format(dateLayout),
			b.Slot.Title(),
			b.ClientName,
			b.Phone,
			b.Address,
			FormatAmount(b.TotalAmount),
			FormatAmount(b.AdvancePaid),
			FormatAmount(b.Balance),
			b.Status.Title(),
			formatStamp(b.CreatedAt),
			formatStampPtr(b.ConfirmedAt),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatAmount renders paise as rupees with two decimals.
func FormatAmount(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%d.%02d", sign, paise/100, paise%100)
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return model.InIST(t).Format(stampLayout)
}

func formatStampPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatStamp(*t)
}
