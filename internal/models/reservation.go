package models

import "time"

// Reservation is a booked usage interval on one piece of equipment.
// Hours are stored as the raw meter values members type in, so fractional
// and negative readings are legal as long as EndHour > StartHour.
type Reservation struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipment_id"`
	StartHour   float64   `json:"start_hour"`
	EndHour     float64   `json:"end_hour"`
	Username    string    `json:"username"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// Duration returns the booked span in hours.
func (r *Reservation) Duration() float64 {
	return r.EndHour - r.StartHour
}

// ReservationWithOwner pairs a reservation with the owner's display name
// for manager views and exports.
type ReservationWithOwner struct {
	Reservation
	OwnerName string `json:"owner_name"`
}
