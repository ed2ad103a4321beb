package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationStatus is the review state of a feed post
type ValidationStatus string

const (
	ValidationNone     ValidationStatus = "none"
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// Post is a social feed entry, optionally linked to a medal, confraternity or project
type Post struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	AuthorID         uuid.UUID        `json:"author_id" db:"author_id"`
	Content          string           `json:"content" db:"content"`
	ImageURL         *string          `json:"image_url,omitempty" db:"image_url"`
	MedalID          *uuid.UUID       `json:"medal_id,omitempty" db:"medal_id"`
	ConfraternityID  *uuid.UUID       `json:"confraternity_id,omitempty" db:"confraternity_id"`
	ProjectID        *uuid.UUID       `json:"project_id,omitempty" db:"project_id"`
	ValidationStatus ValidationStatus `json:"validation_status" db:"validation_status"`
	Deleted          bool             `json:"-" db:"deleted"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// PostReward marks that an author was already paid for posting a link.
// LinkKey is "medal:<id>", "confraternity:<id>" or "project:<id>".
type PostReward struct {
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`
	LinkKey   string    `json:"link_key" db:"link_key"`
	PostID    uuid.UUID `json:"post_id" db:"post_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PostFilter selects posts for the feed
type PostFilter struct {
	AuthorID         *uuid.UUID
	ValidationStatus ValidationStatus
	Limit            int
	Offset           int
}

// ProjectStatus is the lifecycle of a project
type ProjectStatus string

const (
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Project is work a member posts for other members to bid on
type Project struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OwnerID     uuid.UUID       `json:"owner_id" db:"owner_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Budget      decimal.Decimal `json:"budget" db:"budget"`
	Status      ProjectStatus   `json:"status" db:"status"`
	ProviderID  *uuid.UUID      `json:"provider_id,omitempty" db:"provider_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ProposalStatus is the state of a bid on a project
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal is a provider's bid on a project
type Proposal struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ProjectID   uuid.UUID       `json:"project_id" db:"project_id"`
	ProviderID  uuid.UUID       `json:"provider_id" db:"provider_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Message     string          `json:"message" db:"message"`
	Status      ProposalStatus  `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	RespondedAt *time.Time      `json:"responded_at,omitempty" db:"responded_at"`
}

// ConfraternityStatus is the state of an in-person meetup
type ConfraternityStatus string

const (
	ConfraternityScheduled ConfraternityStatus = "scheduled"
	ConfraternityCompleted ConfraternityStatus = "completed"
	ConfraternityCancelled ConfraternityStatus = "cancelled"
)

// Confraternity is a meetup between two connected members
type Confraternity struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	HostID       uuid.UUID           `json:"host_id" db:"host_id"`
	GuestID      uuid.UUID           `json:"guest_id" db:"guest_id"`
	ScheduledFor time.Time           `json:"scheduled_for" db:"scheduled_for"`
	Location     string              `json:"location" db:"location"`
	Status       ConfraternityStatus `json:"status" db:"status"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
}

// Notification is an in-app message for a member
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Link      *string   `json:"link,omitempty" db:"link"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Notification types
const (
	NotificationWithdrawalPaid     = "withdrawal_paid"
	NotificationWithdrawalRejected = "withdrawal_rejected"
	NotificationMedalEarned        = "medal_earned"
	NotificationProposalAccepted   = "proposal_accepted"
	NotificationPostReviewed       = "post_reviewed"
)
