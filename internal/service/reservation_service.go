package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"coophours/internal/domain"
	"coophours/internal/events"
	"coophours/internal/models"
	"coophours/internal/schedule"

	"github.com/rs/zerolog"
)

// ReservationService is the reservation core: it owns the conflict rules and
// serializes writers per equipment so two members cannot race the same
// machine into an overlap. The store transaction is the second line of
// defense; the per-equipment mutex makes the outcome deterministic.
type ReservationService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewReservationService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// equipmentLock returns the mutex for one piece of equipment, creating it on
// first use. Different equipment never contend with each other.
func (s *ReservationService) equipmentLock(equipmentID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[equipmentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[equipmentID] = lock
	}
	return lock
}

// CreateReservation books an interval on the equipment. The interval is
// checked before anything touches storage; an inadmissible request leaves no
// trace. On overlap the existing ledger wins and ErrConflict comes back.
func (s *ReservationService) CreateReservation(ctx context.Context, equipmentID int64, interval schedule.Interval, username, comment string) (*models.Reservation, error) {
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}

	equipment, err := s.repo.GetEquipmentByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	reservation := &models.Reservation{
		EquipmentID: equipmentID,
		StartHour:   interval.Start,
		EndHour:     interval.End,
		Username:    username,
		Comment:     comment,
	}

	lock := s.equipmentLock(equipmentID)
	lock.Lock()
	err = s.repo.CreateReservationWithLock(ctx, reservation)
	lock.Unlock()

	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidInterval) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.logger.Info().
		Int64("reservation_id", reservation.ID).
		Int64("equipment_id", equipmentID).
		Str("username", username).
		Float64("start_hour", interval.Start).
		Float64("end_hour", interval.End).
		Msg("reservation created")

	if err := s.eventBus.PublishJSON(events.EventReservationCreated, events.ReservationEventPayload{
		ReservationID: reservation.ID,
		EquipmentID:   equipmentID,
		EquipmentName: equipment.Name,
		Username:      username,
		StartHour:     interval.Start,
		EndHour:       interval.End,
		CreatedAt:     reservation.CreatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish reservation event")
	}

	return reservation, nil
}

// SuggestDefaultStart proposes the next start reading for the equipment: the
// largest end hour booked so far, or zero for a fresh ledger. Purely a hint;
// members may book anywhere admissible.
func (s *ReservationService) SuggestDefaultStart(ctx context.Context, equipmentID int64) (float64, error) {
	if _, err := s.repo.GetEquipmentByID(ctx, equipmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	max, err := s.repo.MaxEndHour(ctx, equipmentID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return max, nil
}

// ListReservationsWithOwners returns the equipment's full ledger joined with
// member names, ordered by start hour. Capability checks happen at the API
// boundary; this is the manager view's data source.
func (s *ReservationService) ListReservationsWithOwners(ctx context.Context, equipmentID int64) ([]models.ReservationWithOwner, error) {
	if _, err := s.repo.GetEquipmentByID(ctx, equipmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	list, err := s.repo.ListReservationsWithOwners(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return list, nil
}

// ListIntervals returns just the booked intervals, for members picking a
// free slot without seeing who booked what.
func (s *ReservationService) ListIntervals(ctx context.Context, equipmentID int64) ([]schedule.Interval, error) {
	if _, err := s.repo.GetEquipmentByID(ctx, equipmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	intervals, err := s.repo.GetEquipmentIntervals(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return intervals, nil
}

// GetEquipment looks up one active catalog entry.
func (s *ReservationService) GetEquipment(ctx context.Context, equipmentID int64) (*models.Equipment, error) {
	equipment, err := s.repo.GetEquipmentByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return equipment, nil
}

// ListEquipment returns the active catalog in display order.
func (s *ReservationService) ListEquipment(ctx context.Context) ([]*models.Equipment, error) {
	list, err := s.repo.GetActiveEquipment(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return list, nil
}

// OwnerHours is one member's share of an equipment ledger.
type OwnerHours struct {
	Username   string  `json:"username"`
	OwnerName  string  `json:"owner_name"`
	TotalHours float64 `json:"total_hours"`
}

// AggregateHoursByOwner sums booked hours per member, preserving the order
// in which each member first appears in the ledger.
func AggregateHoursByOwner(reservations []models.ReservationWithOwner) []OwnerHours {
	index := make(map[string]int)
	totals := make([]OwnerHours, 0)

	for _, r := range reservations {
		i, ok := index[r.Username]
		if !ok {
			i = len(totals)
			index[r.Username] = i
			totals = append(totals, OwnerHours{Username: r.Username, OwnerName: r.OwnerName})
		}
		totals[i].TotalHours += r.Duration()
	}
	return totals
}
