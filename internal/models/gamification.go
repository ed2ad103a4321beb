package models

import (
	"time"

	"github.com/google/uuid"
)

// Rank is an ordered tier of the gamification ladder
type Rank struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Level          int       `json:"level" db:"level"`
	Name           string    `json:"name" db:"name"`
	PointsRequired int64     `json:"points_required" db:"points_required"`
	Icon           string    `json:"icon" db:"icon"`
	Description    string    `json:"description" db:"description"`
}

// Medal is an achievement definition
type Medal struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Code         string    `json:"code" db:"code"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Category     string    `json:"category" db:"category"`
	PointsReward int64     `json:"points_reward" db:"points_reward"`
	Active       bool      `json:"active" db:"active"`
}

// EarnedMedal records a medal held by a profile for one season month
type EarnedMedal struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProfileID   uuid.UUID `json:"profile_id" db:"profile_id"`
	MedalID     uuid.UUID `json:"medal_id" db:"medal_id"`
	SeasonMonth string    `json:"season_month" db:"season_month"`
	EarnedAt    time.Time `json:"earned_at" db:"earned_at"`
}

// PointsEvent is an immutable vigor ledger entry
type PointsEvent struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ProfileID   uuid.UUID      `json:"profile_id" db:"profile_id"`
	Amount      int64          `json:"amount" db:"amount"`
	ActionType  string         `json:"action_type" db:"action_type"`
	Description string         `json:"description" db:"description"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// UserGamification holds the cumulative point total of a profile
type UserGamification struct {
	ProfileID   uuid.UUID `json:"profile_id" db:"profile_id"`
	TotalPoints int64     `json:"total_points" db:"total_points"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Point action types recorded in the ledger
const (
	ActionAdSold          = "ad_sold"
	ActionMedalEarned     = "medal_earned"
	ActionCommissionPaid  = "commission_paid"
	ActionPostValidated   = "post_validated"
	ActionConfraternity   = "confraternity"
	ActionAdminAdjustment = "admin_adjustment"
)

// Medal codes awarded by trigger helpers
const (
	MedalFirstSale = "first_sale"
)
