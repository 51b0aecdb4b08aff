package reservation

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

const (
	timeLayout     = "15:04"
	longDateLayout = "Monday, January 2, 2006"
	clockLayout    = "3:04 PM"
)

// Confirmation is what the site shows after a successful submission.
type Confirmation struct {
	ID              string `json:"id"`
	CustomerName    string `json:"customerName"`
	ReservationDate string `json:"reservationDate"`
	DateLong        string `json:"dateLong"`
	ReservationTime string `json:"reservationTime"`
	TimeLabel       string `json:"timeLabel"`
	PartySize       string `json:"partySize"`
	Message         string `json:"message"`
}

// FormatLongDate renders "2025-11-15" as "Saturday, November 15, 2025".
// Unparseable input is returned unchanged.
func FormatLongDate(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format(longDateLayout)
}

// FormatTime renders "19:00" as "7:00 PM". Unparseable input is returned unchanged.
func FormatTime(hhmm string) string {
	t, err := time.Parse(timeLayout, hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format(clockLayout)
}

func NewConfirmation(r *models.Reservation) Confirmation {
	msg := "Confirmation emails have been sent to the restaurant"
	if r.CustomerEmail != "" {
		msg += " and to " + r.CustomerEmail
	}
	msg += ". We will contact you shortly to confirm your table."

	return Confirmation{
		ID:              r.ID.String(),
		CustomerName:    r.CustomerName,
		ReservationDate: r.ReservationDate,
		DateLong:        FormatLongDate(r.ReservationDate),
		ReservationTime: r.ReservationTime,
		TimeLabel:       FormatTime(r.ReservationTime),
		PartySize:       r.PartySize,
		Message:         msg,
	}
}
