// Package confraria schedules in-person meetups between members and rewards
// both participants once a meetup happens.
package confraria

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/store"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound       = errors.New("confraternity not found")
	ErrSelfMeetup     = errors.New("host and guest must be different members")
	ErrNotParticipant = errors.New("member is not part of this confraternity")
	ErrNotGuest       = errors.New("only the guest can confirm the confraternity")
	ErrNotScheduled   = errors.New("confraternity is not scheduled")
	ErrMissingDate    = errors.New("confraternity date is required")
)

// Service handles confraternities
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a new confraternity service
func NewService(s store.Store) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleRequest represents a meetup invitation
type ScheduleRequest struct {
	GuestID      uuid.UUID `json:"guest_id" binding:"required"`
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
	Location     string    `json:"location"`
}

// ConfirmResult carries the completed meetup and the points both members earned
type ConfirmResult struct {
	Confraternity *models.Confraternity `json:"confraternity"`
	HostPoints    int64                 `json:"host_points"`
	GuestPoints   int64                 `json:"guest_points"`
}

// Get returns a confraternity visible to one of its participants
func (s *Service) Get(ctx context.Context, memberID, id uuid.UUID) (*models.Confraternity, error) {
	c, err := s.store.GetConfraternity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get confraternity: %w", err)
	}
	if c.HostID != memberID && c.GuestID != memberID {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// Schedule invites a guest to a meetup
func (s *Service) Schedule(ctx context.Context, hostID uuid.UUID, req *ScheduleRequest) (*models.Confraternity, error) {
	if req.GuestID == hostID {
		return nil, ErrSelfMeetup
	}
	if req.ScheduledFor.IsZero() {
		return nil, ErrMissingDate
	}
	c := &models.Confraternity{
		ID:           uuid.New(),
		HostID:       hostID,
		GuestID:      req.GuestID,
		ScheduledFor: req.ScheduledFor.UTC(),
		Location:     strings.TrimSpace(req.Location),
		Status:       models.ConfraternityScheduled,
		CreatedAt:    s.now(),
	}
	if err := s.store.InsertConfraternity(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to schedule confraternity: %w", err)
	}
	return c, nil
}

// Confirm marks the meetup as completed and awards points_confraternity to
// host and guest in the same transaction.
func (s *Service) Confirm(ctx context.Context, guestID, id uuid.UUID) (*ConfirmResult, error) {
	result := &ConfirmResult{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.GetConfraternityForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get confraternity: %w", err)
		}
		if c.GuestID != guestID {
			return ErrNotGuest
		}
		if c.Status != models.ConfraternityScheduled {
			return ErrNotScheduled
		}

		now := s.now()
		c.Status = models.ConfraternityCompleted
		c.CompletedAt = &now
		if err := q.UpdateConfraternity(ctx, c); err != nil {
			return fmt.Errorf("failed to complete confraternity: %w", err)
		}

		amount, err := settings.ReadInt(ctx, q, settings.PointsConfraternity, settings.Defaults[settings.PointsConfraternity])
		if err != nil {
			return err
		}
		if amount > 0 {
			for _, member := range []uuid.UUID{c.HostID, c.GuestID} {
				event, err := gamification.AwardWithin(ctx, q, gamification.Award{
					ProfileID:   member,
					Amount:      amount,
					ActionType:  models.ActionConfraternity,
					Description: "Confraria realizada",
					Metadata:    map[string]any{"confraternity_id": c.ID.String()},
				}, now)
				if err != nil {
					return fmt.Errorf("failed to award %s: %w", member, err)
				}
				if member == c.HostID {
					result.HostPoints = event.Amount
				} else {
					result.GuestPoints = event.Amount
				}
			}
		}
		result.Confraternity = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("confraternity_id", id.String()).
		Int64("host_points", result.HostPoints).
		Int64("guest_points", result.GuestPoints).
		Msg("Confraternity completed")
	return result, nil
}

// Cancel calls off a scheduled meetup. Either participant may cancel.
func (s *Service) Cancel(ctx context.Context, memberID, id uuid.UUID) (*models.Confraternity, error) {
	var out *models.Confraternity
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.GetConfraternityForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get confraternity: %w", err)
		}
		if c.HostID != memberID && c.GuestID != memberID {
			return ErrNotParticipant
		}
		if c.Status != models.ConfraternityScheduled {
			return ErrNotScheduled
		}
		c.Status = models.ConfraternityCancelled
		if err := q.UpdateConfraternity(ctx, c); err != nil {
			return fmt.Errorf("failed to cancel confraternity: %w", err)
		}
		out = c
		return nil
	})
	return out, err
}
