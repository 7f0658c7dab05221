package domain

import (
	"context"
	"time"

	"coophours/internal/models"
	"coophours/internal/schedule"
)

// Repository is the durable store behind the reservation core.
type Repository interface {
	// Reservations
	GetEquipmentIntervals(ctx context.Context, equipmentID int64) ([]schedule.Interval, error)
	CreateReservationWithLock(ctx context.Context, reservation *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservationsWithOwners(ctx context.Context, equipmentID int64) ([]models.ReservationWithOwner, error)
	MaxEndHour(ctx context.Context, equipmentID int64) (float64, error)

	// Equipment
	GetEquipmentByID(ctx context.Context, id int64) (*models.Equipment, error)
	GetActiveEquipment(ctx context.Context) ([]*models.Equipment, error)
	SyncEquipment(ctx context.Context, equipment []models.Equipment) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// Export jobs
	CreateExportJob(ctx context.Context, job *models.ExportJob) error
	UpdateExportJobStatus(ctx context.Context, id int64, status, lastError string, attempts int) error
	GetPendingExportJobs(ctx context.Context, limit int) ([]*models.ExportJob, error)
}

// SessionStore persists sessions for the session manager. Implementations
// may expire entries on their own (Redis TTL); the manager still applies
// the idle-timeout check on every Authorize.
type SessionStore interface {
	Get(ctx context.Context, token string) (*models.Session, error)
	Set(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, token string) error
}

// EventPublisher decouples the reservation service from event consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Clock supplies current time. Injected so idle-timeout rules are testable.
type Clock func() time.Time
