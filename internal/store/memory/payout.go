package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
)

func (s *Store) InsertWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	defer s.lockWrite()()
	for _, existing := range s.d.withdrawals {
		if existing.ID == w.ID ||
			(w.Status == models.WithdrawalStatusPending && existing.RequesterID == w.RequesterID && existing.Status == models.WithdrawalStatusPending) {
			return store.ErrConflict
		}
	}
	s.d.withdrawals[w.ID] = *w
	return nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.d.withdrawals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

// GetWithdrawalForUpdate needs no lock of its own; WithTx already serializes.
func (s *Store) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.GetWithdrawal(ctx, id)
}

func (s *Store) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	defer s.lockWrite()()
	cur, ok := s.d.withdrawals[w.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Status = w.Status
	cur.ReceiptURL = w.ReceiptURL
	cur.RejectionReason = w.RejectionReason
	cur.ResolvedAt = w.ResolvedAt
	s.d.withdrawals[w.ID] = cur
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WithdrawalRequest
	for _, w := range s.d.withdrawals {
		if f.RequesterID != nil && w.RequesterID != *f.RequesterID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) InsertCommission(ctx context.Context, c *models.ReferralCommission) error {
	defer s.lockWrite()()
	if _, ok := s.d.commissions[c.ID]; ok {
		return store.ErrConflict
	}
	s.d.commissions[c.ID] = *c
	return nil
}

func (s *Store) GetCommission(ctx context.Context, id uuid.UUID) (*models.ReferralCommission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.commissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) UpdateCommission(ctx context.Context, c *models.ReferralCommission) error {
	defer s.lockWrite()()
	cur, ok := s.d.commissions[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Status = c.Status
	cur.WithdrawalID = c.WithdrawalID
	cur.PaidAt = c.PaidAt
	s.d.commissions[c.ID] = cur
	return nil
}

func (s *Store) ListCommissions(ctx context.Context, referrerID uuid.UUID, status models.CommissionStatus) ([]models.ReferralCommission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ReferralCommission
	for _, c := range s.d.commissions {
		if c.ReferrerID != referrerID || (status != "" && c.Status != status) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PayAvailableCommissions(ctx context.Context, referrerID, withdrawalID uuid.UUID, paidAt time.Time) ([]models.ReferralCommission, error) {
	defer s.lockWrite()()

	var out []models.ReferralCommission
	for id, c := range s.d.commissions {
		if c.ReferrerID != referrerID || c.Status != models.CommissionStatusAvailable {
			continue
		}
		wid := withdrawalID
		at := paidAt
		c.Status = models.CommissionStatusPaid
		c.WithdrawalID = &wid
		c.PaidAt = &at
		s.d.commissions[id] = c
		out = append(out, c)
	}
	return out, nil
}
