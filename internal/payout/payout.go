// Package payout handles referral commissions and the withdrawals that pay them out.
package payout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/gamification"
	"github.com/rotaclub/rota/internal/logging"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rotaclub/rota/internal/notification"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/store"
	"github.com/shopspring/decimal"
)

// DefaultMinimumWithdrawal is R$ 50.00
var DefaultMinimumWithdrawal = decimal.NewFromInt(50)

// Service errors
var (
	ErrInsufficientBalance   = errors.New("insufficient balance for withdrawal")
	ErrBelowMinimumThreshold = errors.New("withdrawal amount below minimum threshold")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrWithdrawalNotPending  = errors.New("withdrawal is not in pending status")
	ErrPendingWithdrawal     = errors.New("a withdrawal request is already pending")
	ErrMissingPixKey         = errors.New("pix key is required")
	ErrInvalidPixKeyType     = errors.New("invalid pix key type")
	ErrMissingProof          = errors.New("payment proof is required")
	ErrMissingReason         = errors.New("rejection reason is required")
	ErrCommissionNotFound    = errors.New("commission not found")
	ErrCommissionNotPending  = errors.New("commission is not pending")
	ErrInvalidCommission     = errors.New("commission amount must be positive")
)

// Service handles withdrawal operations
type Service struct {
	store   store.Store
	minimum decimal.Decimal
	now     func() time.Time
}

// NewService creates a new payout service. A zero minimum uses DefaultMinimumWithdrawal.
func NewService(s store.Store, minimum decimal.Decimal) *Service {
	if minimum.IsZero() {
		minimum = DefaultMinimumWithdrawal
	}
	return &Service{
		store:   s,
		minimum: minimum,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateWithdrawalRequest represents a request to cash out commissions
type CreateWithdrawalRequest struct {
	Amount     decimal.Decimal   `json:"amount" binding:"required"`
	PixKey     string            `json:"pix_key" binding:"required"`
	PixKeyType models.PixKeyType `json:"pix_key_type" binding:"required"`
}

// WithdrawalHistoryResponse represents a page of withdrawals
type WithdrawalHistoryResponse struct {
	Withdrawals []models.WithdrawalRequest `json:"withdrawals"`
	Total       int                        `json:"total"`
	Page        int                        `json:"page"`
	PageSize    int                        `json:"page_size"`
	TotalPages  int                        `json:"total_pages"`
}

// Balance sums a member's commissions by status
type Balance struct {
	Pending           decimal.Decimal `json:"pending"`
	Available         decimal.Decimal `json:"available"`
	Paid              decimal.Decimal `json:"paid"`
	Total             decimal.Decimal `json:"total"`
	MinimumWithdrawal decimal.Decimal `json:"minimum_withdrawal"`
}

// ApprovalResult describes what an approval paid out
type ApprovalResult struct {
	Withdrawal    *models.WithdrawalRequest   `json:"withdrawal"`
	Commissions   []models.ReferralCommission `json:"commissions"`
	PointsEvent   *models.PointsEvent         `json:"points_event,omitempty"`
	PointsAwarded int64                       `json:"points_awarded"`
}

func validPixKeyType(t models.PixKeyType) bool {
	switch t {
	case models.PixKeyCPF, models.PixKeyCNPJ, models.PixKeyEmail, models.PixKeyPhone, models.PixKeyRandom:
		return true
	}
	return false
}

// MinimumWithdrawal returns the configured minimum request amount
func (s *Service) MinimumWithdrawal() decimal.Decimal {
	return s.minimum
}

// Balance returns the commission totals of a member
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	commissions, err := s.store.ListCommissions(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}

	b := &Balance{
		Pending:           decimal.Zero,
		Available:         decimal.Zero,
		Paid:              decimal.Zero,
		Total:             decimal.Zero,
		MinimumWithdrawal: s.minimum,
	}
	for _, c := range commissions {
		switch c.Status {
		case models.CommissionStatusPending:
			b.Pending = b.Pending.Add(c.Amount)
		case models.CommissionStatusAvailable:
			b.Available = b.Available.Add(c.Amount)
		case models.CommissionStatusPaid:
			b.Paid = b.Paid.Add(c.Amount)
		}
		b.Total = b.Total.Add(c.Amount)
	}
	return b, nil
}

// ValidateWithdrawalAmount checks the minimum and the available balance
func (s *Service) ValidateWithdrawalAmount(amount, available decimal.Decimal) error {
	if amount.LessThan(s.minimum) {
		return ErrBelowMinimumThreshold
	}
	if amount.GreaterThan(available) {
		return ErrInsufficientBalance
	}
	return nil
}

// RequestWithdrawal opens a pending withdrawal against the available balance
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, req *CreateWithdrawalRequest) (*models.WithdrawalRequest, error) {
	pixKey := strings.TrimSpace(req.PixKey)
	if pixKey == "" {
		return nil, ErrMissingPixKey
	}
	if !validPixKeyType(req.PixKeyType) {
		return nil, ErrInvalidPixKeyType
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateWithdrawalAmount(req.Amount, balance.Available); err != nil {
		return nil, err
	}

	w := &models.WithdrawalRequest{
		ID:          uuid.New(),
		RequesterID: userID,
		Amount:      req.Amount,
		PixKey:      pixKey,
		PixKeyType:  req.PixKeyType,
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertWithdrawal(ctx, w); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrPendingWithdrawal
		}
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return w, nil
}

// ApproveWithdrawal pays a pending withdrawal in one transaction: the request
// is marked paid, every available commission of the requester is paid with
// it, the requester is notified and earns points_per_sale for each commission.
// Any failure leaves all of it untouched.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, proofURL string) (*ApprovalResult, error) {
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return nil, ErrMissingProof
	}

	result := &ApprovalResult{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		w, err := s.lockPending(ctx, q, withdrawalID)
		if err != nil {
			return err
		}

		now := s.now()
		w.Status = models.WithdrawalStatusPaid
		w.ReceiptURL = &proofURL
		w.ResolvedAt = &now
		if err := q.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("failed to update withdrawal: %w", err)
		}

		paid, err := q.PayAvailableCommissions(ctx, w.RequesterID, w.ID, now)
		if err != nil {
			return fmt.Errorf("failed to pay commissions: %w", err)
		}

		link := "/financeiro"
		n := notification.New(w.RequesterID, models.NotificationWithdrawalPaid, "Saque aprovado",
			fmt.Sprintf("Seu saque de R$ %s foi pago.", w.Amount.StringFixed(2)), &link)
		if err := notification.Insert(ctx, q, n); err != nil {
			return err
		}

		perSale, err := settings.ReadInt(ctx, q, settings.PointsPerSale, settings.Defaults[settings.PointsPerSale])
		if err != nil {
			return err
		}
		if base := int64(len(paid)) * perSale; base > 0 {
			event, err := gamification.AwardWithin(ctx, q, gamification.Award{
				ProfileID:   w.RequesterID,
				Amount:      base,
				ActionType:  models.ActionCommissionPaid,
				Description: fmt.Sprintf("%d comissões pagas", len(paid)),
				Metadata: map[string]any{
					"withdrawal_id":    w.ID.String(),
					"commission_count": len(paid),
				},
			}, now)
			if err != nil {
				return fmt.Errorf("failed to award points: %w", err)
			}
			result.PointsEvent = event
			result.PointsAwarded = event.Amount
		}

		result.Withdrawal = w
		result.Commissions = paid
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Commissions == nil {
		result.Commissions = []models.ReferralCommission{}
	}

	monitoring.RecordWithdrawalResolved(string(models.WithdrawalStatusPaid), len(result.Commissions))
	logging.LogPayout(logging.RequestIDFrom(ctx), result.Withdrawal.RequesterID.String(), result.Withdrawal.ID.String(),
		string(models.WithdrawalStatusPaid), result.Withdrawal.Amount.String(), len(result.Commissions))
	return result, nil
}

// RejectWithdrawal closes a pending withdrawal without paying anything
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}

	var out *models.WithdrawalRequest
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		w, err := s.lockPending(ctx, q, withdrawalID)
		if err != nil {
			return err
		}

		now := s.now()
		w.Status = models.WithdrawalStatusRejected
		w.RejectionReason = &reason
		w.ResolvedAt = &now
		if err := q.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("failed to update withdrawal: %w", err)
		}

		link := "/financeiro"
		n := notification.New(w.RequesterID, models.NotificationWithdrawalRejected, "Saque recusado", reason, &link)
		if err := notification.Insert(ctx, q, n); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordWithdrawalResolved(string(models.WithdrawalStatusRejected), 0)
	logging.LogPayout(logging.RequestIDFrom(ctx), out.RequesterID.String(), out.ID.String(),
		string(models.WithdrawalStatusRejected), out.Amount.String(), 0)
	return out, nil
}

func (s *Service) lockPending(ctx context.Context, q store.Queries, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, err := q.GetWithdrawalForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, ErrWithdrawalNotPending
	}
	return w, nil
}

// GetWithdrawal returns a single withdrawal
func (s *Service) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// Withdrawals returns a member's own withdrawal history, newest first
func (s *Service) Withdrawals(ctx context.Context, userID uuid.UUID, page, pageSize int) (*WithdrawalHistoryResponse, error) {
	return s.list(ctx, models.WithdrawalFilter{RequesterID: &userID}, page, pageSize)
}

// PendingWithdrawals returns the admin review queue
func (s *Service) PendingWithdrawals(ctx context.Context, page, pageSize int) (*WithdrawalHistoryResponse, error) {
	return s.list(ctx, models.WithdrawalFilter{Status: models.WithdrawalStatusPending}, page, pageSize)
}

func (s *Service) list(ctx context.Context, f models.WithdrawalFilter, page, pageSize int) (*WithdrawalHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	items, total, err := s.store.ListWithdrawals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	if items == nil {
		items = []models.WithdrawalRequest{}
	}
	return &WithdrawalHistoryResponse{
		Withdrawals: items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  (total + pageSize - 1) / pageSize,
	}, nil
}

// Commissions lists a member's commissions, optionally by status
func (s *Service) Commissions(ctx context.Context, userID uuid.UUID, status models.CommissionStatus) ([]models.ReferralCommission, error) {
	items, err := s.store.ListCommissions(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	if items == nil {
		items = []models.ReferralCommission{}
	}
	return items, nil
}

// RecordCommission books a pending commission for a referral
func (s *Service) RecordCommission(ctx context.Context, referrerID, referredID uuid.UUID, amount decimal.Decimal) (*models.ReferralCommission, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidCommission
	}
	c := &models.ReferralCommission{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Amount:     amount,
		Status:     models.CommissionStatusPending,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertCommission(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record commission: %w", err)
	}
	return c, nil
}

// ReleaseCommission makes a pending commission available for withdrawal
func (s *Service) ReleaseCommission(ctx context.Context, id uuid.UUID) (*models.ReferralCommission, error) {
	var out *models.ReferralCommission
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.GetCommission(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCommissionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get commission: %w", err)
		}
		if c.Status != models.CommissionStatusPending {
			return ErrCommissionNotPending
		}
		c.Status = models.CommissionStatusAvailable
		if err := q.UpdateCommission(ctx, c); err != nil {
			return fmt.Errorf("failed to update commission: %w", err)
		}
		out = c
		return nil
	})
	return out, err
}
