package models

import "time"

type ExportJob struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipment_id"`
	RequestedBy string    `json:"requested_by"`
	Status      string    `json:"status"` // pending, done, error
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
