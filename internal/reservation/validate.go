package reservation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire format of reservationDate.
const DateLayout = "2006-01-02"

// GenericFailureMessage is shown when a submission fails without a
// user-facing reason.
const GenericFailureMessage = "An error occurred. Please try again or call us directly."

// Field bounds match the reservations table columns.
const (
	MaxNameLength            = 120
	MaxEmailLength           = 255
	MaxPartySizeDigits       = 10
	MaxSpecialRequestsLength = 2000
)

var (
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// Form carries the raw values of the public reservation form.
type Form struct {
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerEmail   string `json:"customerEmail"`
	PartySize       string `json:"partySize"`
	ReservationDate string `json:"reservationDate"`
	ReservationTime string `json:"reservationTime"`
	SpecialRequests string `json:"specialRequests"`
}

// ValidationError rejects a form before any I/O. Message is shown to the
// submitter as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Rules holds the restaurant-specific parameters of intake validation.
type Rules struct {
	Location *time.Location
	// MaxAdvanceMonths bounds how far ahead a table can be booked; 0 disables the bound.
	MaxAdvanceMonths int
	// Slots is the offered time-slot list; empty accepts any HH:MM time.
	Slots []string
	// SlotLookup, when set and Slots is empty, supplies the slot list. It is
	// called only once every other rule has passed.
	SlotLookup func() []string
}

// NormalizePhone strips everything but digits.
func NormalizePhone(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ValidPhone reports whether s is a 10-digit local mobile number once
// non-digits are stripped.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(NormalizePhone(s))
}

// Validate checks f against the rules at instant now and returns the
// normalized form. The first failing rule wins.
func (r Rules) Validate(f Form, now time.Time) (Form, error) {
	f = trimForm(f)

	required := []struct{ field, value string }{
		{"customerName", f.CustomerName},
		{"customerPhone", f.CustomerPhone},
		{"partySize", f.PartySize},
		{"reservationDate", f.ReservationDate},
		{"reservationTime", f.ReservationTime},
	}
	for _, req := range required {
		if req.value == "" {
			return f, &ValidationError{Field: req.field, Message: "Please fill in all required fields."}
		}
	}

	if utf8.RuneCountInString(f.CustomerName) > MaxNameLength {
		return f, &ValidationError{Field: "customerName", Message: "Please enter a name of at most " + strconv.Itoa(MaxNameLength) + " characters."}
	}

	f.CustomerPhone = NormalizePhone(f.CustomerPhone)
	if !phonePattern.MatchString(f.CustomerPhone) {
		return f, &ValidationError{Field: "customerPhone", Message: "Please enter a valid 10-digit mobile number."}
	}

	if utf8.RuneCountInString(f.CustomerEmail) > MaxEmailLength {
		return f, &ValidationError{Field: "customerEmail", Message: "Please enter an email address of at most " + strconv.Itoa(MaxEmailLength) + " characters."}
	}
	if f.CustomerEmail != "" && !emailPattern.MatchString(f.CustomerEmail) {
		return f, &ValidationError{Field: "customerEmail", Message: "Please enter a valid email address."}
	}

	size, err := strconv.Atoi(f.PartySize)
	if err != nil || size < 1 {
		return f, &ValidationError{Field: "partySize", Message: "Please enter a valid number of guests."}
	}
	f.PartySize = strconv.Itoa(size)
	if len(f.PartySize) > MaxPartySizeDigits {
		return f, &ValidationError{Field: "partySize", Message: "Please enter a valid number of guests."}
	}

	if utf8.RuneCountInString(f.SpecialRequests) > MaxSpecialRequestsLength {
		return f, &ValidationError{Field: "specialRequests", Message: "Please keep special requests under " + strconv.Itoa(MaxSpecialRequestsLength) + " characters."}
	}

	if err := r.checkDate(f.ReservationDate, now); err != nil {
		return f, err
	}

	if err := r.checkTime(f.ReservationTime); err != nil {
		return f, err
	}

	return f, nil
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Today returns local midnight of the day containing now.
func (r Rules) Today(now time.Time) time.Time {
	local := now.In(r.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.location())
}

func (r Rules) checkDate(value string, now time.Time) error {
	date, err := time.ParseInLocation(DateLayout, value, r.location())
	if err != nil {
		return &ValidationError{Field: "reservationDate", Message: "Please select a valid date."}
	}

	today := r.Today(now)
	if date.Before(today) {
		return &ValidationError{Field: "reservationDate", Message: "Please select a date from today onwards."}
	}

	if r.MaxAdvanceMonths > 0 && date.After(today.AddDate(0, r.MaxAdvanceMonths, 0)) {
		msg := "Reservations can only be made up to " + strconv.Itoa(r.MaxAdvanceMonths) + " month"
		if r.MaxAdvanceMonths > 1 {
			msg += "s"
		}
		return &ValidationError{Field: "reservationDate", Message: msg + " in advance."}
	}
	return nil
}

func (r Rules) checkTime(value string) error {
	if _, err := time.Parse(timeLayout, value); err != nil {
		return &ValidationError{Field: "reservationTime", Message: "Please select a valid time."}
	}
	slots := r.Slots
	if len(slots) == 0 && r.SlotLookup != nil {
		slots = r.SlotLookup()
	}
	if len(slots) == 0 {
		return nil
	}
	for _, slot := range slots {
		if slot == value {
			return nil
		}
	}
	return &ValidationError{Field: "reservationTime", Message: "Please select one of the available time slots."}
}

func trimForm(f Form) Form {
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.CustomerPhone = strings.TrimSpace(f.CustomerPhone)
	f.CustomerEmail = strings.TrimSpace(f.CustomerEmail)
	f.PartySize = strings.TrimSpace(f.PartySize)
	f.ReservationDate = strings.TrimSpace(f.ReservationDate)
	f.ReservationTime = strings.TrimSpace(f.ReservationTime)
	f.SpecialRequests = strings.TrimSpace(f.SpecialRequests)
	return f
}
