package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TierLevel identifies a marketplace visibility package
type TierLevel string

const (
	TierBasico   TierLevel = "basico"
	TierElite    TierLevel = "elite"
	TierLendario TierLevel = "lendario"
)

// AdTier is read-only pricing/visibility configuration for ads
type AdTier struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Level         TierLevel       `json:"level" db:"level"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	DurationDays  int             `json:"duration_days" db:"duration_days"`
	MaxPhotos     int             `json:"max_photos" db:"max_photos"`
	PositionBoost int             `json:"position_boost" db:"position_boost"`
	Active        bool            `json:"active" db:"active"`
}

// Category groups marketplace ads
type Category struct {
	ID     uuid.UUID `json:"id" db:"id"`
	Name   string    `json:"name" db:"name"`
	Slug   string    `json:"slug" db:"slug"`
	Active bool      `json:"active" db:"active"`
}

// AdStatus is the lifecycle status of an ad; values are mutually exclusive
type AdStatus string

const (
	AdStatusPendingPayment AdStatus = "pending_payment"
	AdStatusActive         AdStatus = "active"
	AdStatusExpired        AdStatus = "expired"
	AdStatusSold           AdStatus = "sold"
	AdStatusDeleted        AdStatus = "deleted"
)

// Ad represents a marketplace listing
type Ad struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OwnerID     uuid.UUID       `json:"owner_id" db:"owner_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CategoryID  uuid.UUID       `json:"category_id" db:"category_id"`
	TierID      uuid.UUID       `json:"tier_id" db:"tier_id"`
	Images      []string        `json:"images" db:"images"`
	Status      AdStatus        `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	SoldAt      *time.Time      `json:"sold_at,omitempty" db:"sold_at"`
}

// AdFilter selects ads for listing
type AdFilter struct {
	Status     AdStatus
	CategoryID *uuid.UUID
	OwnerID    *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

// ListedAd is an ad joined with its tier boost for ordering
type ListedAd struct {
	Ad
	PositionBoost int       `json:"position_boost"`
	TierLevel     TierLevel `json:"tier_level"`
}
