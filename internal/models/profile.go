package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the member's subscription plan; it drives the vigor multiplier
type Plan string

const (
	PlanRecruta  Plan = "recruta"
	PlanVeterano Plan = "veterano"
	PlanElite    Plan = "elite"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	switch p {
	case PlanRecruta, PlanVeterano, PlanElite:
		return true
	}
	return false
}

// ProfileStatus is the soft lifecycle status of a profile. Profiles are never hard-deleted.
type ProfileStatus string

const (
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusSuspended ProfileStatus = "suspended"
	ProfileStatusInactive  ProfileStatus = "inactive"
)

// Profile represents a member of the club
type Profile struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	PublicID      int64         `json:"public_id" db:"public_id"`
	DisplayName   string        `json:"display_name" db:"display_name"`
	AvatarURL     *string       `json:"avatar_url,omitempty" db:"avatar_url"`
	Slug          string        `json:"slug" db:"slug"`
	Plan          Plan          `json:"plan" db:"plan"`
	CurrentRankID *uuid.UUID    `json:"current_rank_id,omitempty" db:"current_rank_id"`
	Status        ProfileStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// LeaderboardEntry is one row of the points ranking
type LeaderboardEntry struct {
	ProfileID   uuid.UUID `json:"profile_id"`
	PublicID    int64     `json:"public_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Slug        string    `json:"slug"`
	TotalPoints int64     `json:"total_points"`
	Rank        *Rank     `json:"rank,omitempty"`
}
