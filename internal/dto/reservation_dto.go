package dto

import (
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/console"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
)

// ReservationResult is returned by the public form endpoint.
type ReservationResult struct {
	Success      bool                      `json:"success"`
	Error        string                    `json:"error,omitempty"`
	Field        string                    `json:"field,omitempty"`
	Confirmation *reservation.Confirmation `json:"confirmation,omitempty"`
}

type ReservationList struct {
	Reservations []models.Reservation `json:"reservations"`
	Total        int                  `json:"total"`
}

// ConsoleResponse is one admin listing: the filtered view plus stats over
// the whole collection.
type ConsoleResponse struct {
	Reservations []ReservationRow `json:"reservations"`
	Stats        console.Stats    `json:"stats"`
	Filter       console.Filter   `json:"filter"`
	Total        int              `json:"total"`
}

// ReservationRow is a reservation plus the transitions legal from its status.
type ReservationRow struct {
	models.Reservation
	Actions []string `json:"actions"`
}

func NewConsoleResponse(v console.View) ConsoleResponse {
	rows := make([]ReservationRow, 0, len(v.Reservations))
	for _, r := range v.Reservations {
		rows = append(rows, ReservationRow{Reservation: r, Actions: console.Actions(r.Status)})
	}
	return ConsoleResponse{
		Reservations: rows,
		Stats:        v.Stats,
		Filter:       v.Filter,
		Total:        v.Total,
	}
}

type SettingRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}
