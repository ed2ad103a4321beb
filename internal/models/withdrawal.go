package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PixKeyType is the kind of PIX key a payout is sent to
type PixKeyType string

const (
	PixKeyCPF    PixKeyType = "cpf"
	PixKeyCNPJ   PixKeyType = "cnpj"
	PixKeyEmail  PixKeyType = "email"
	PixKeyPhone  PixKeyType = "phone"
	PixKeyRandom PixKeyType = "random"
)

// WithdrawalStatus represents the status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest represents a member's request to cash out referral commissions
type WithdrawalRequest struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	RequesterID     uuid.UUID        `json:"requester_id" db:"requester_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	PixKey          string           `json:"pix_key" db:"pix_key"`
	PixKeyType      PixKeyType       `json:"pix_key_type" db:"pix_key_type"`
	Status          WithdrawalStatus `json:"status" db:"status"`
	ReceiptURL      *string          `json:"receipt_url,omitempty" db:"receipt_url"`
	RejectionReason *string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// CommissionStatus represents the status of a referral commission
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusAvailable CommissionStatus = "available"
	CommissionStatusPaid      CommissionStatus = "paid"
)

// ReferralCommission is money owed to a referrer for a referred member
type ReferralCommission struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	ReferrerID   uuid.UUID        `json:"referrer_id" db:"referrer_id"`
	ReferredID   uuid.UUID        `json:"referred_id" db:"referred_id"`
	Amount       decimal.Decimal  `json:"amount" db:"amount"`
	Status       CommissionStatus `json:"status" db:"status"`
	WithdrawalID *uuid.UUID       `json:"withdrawal_id,omitempty" db:"withdrawal_id"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	PaidAt       *time.Time       `json:"paid_at,omitempty" db:"paid_at"`
}

// WithdrawalFilter selects withdrawal requests
type WithdrawalFilter struct {
	RequesterID *uuid.UUID
	Status      WithdrawalStatus
	Limit       int
	Offset      int
}
