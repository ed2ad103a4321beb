package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

const withdrawalColumns = `id, requester_id, amount, pix_key, pix_key_type, status,
	receipt_url, rejection_reason, created_at, resolved_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := row.Scan(&w.ID, &w.RequesterID, &w.Amount, &w.PixKey, &w.PixKeyType, &w.Status,
		&w.ReceiptURL, &w.RejectionReason, &w.CreatedAt, &w.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (q *queries) InsertWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO withdrawal_requests (id, requester_id, amount, pix_key, pix_key_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.RequesterID, w.Amount, w.PixKey, w.PixKeyType, w.Status, w.CreatedAt)
	if err != nil {
		return uniqueViolation(fmt.Errorf("failed to create withdrawal request: %w", err))
	}
	return nil
}

func (q *queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (q *queries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (q *queries) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, receipt_url = $3, rejection_reason = $4, resolved_at = $5
		WHERE id = $1
	`, w.ID, w.Status, w.ReceiptURL, w.RejectionReason, w.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	return requireRow(tag)
}

func (q *queries) ListWithdrawals(ctx context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, int, error) {
	limit, offset := pageArgs(f.Limit, f.Offset)

	var conds []string
	var args []any
	if f.RequesterID != nil {
		args = append(args, *f.RequesterID)
		conds = append(conds, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		out = append(out, *w)
	}
	return out, total, rows.Err()
}

const commissionColumns = `id, referrer_id, referred_id, amount, status, withdrawal_id, created_at, paid_at`

func scanCommission(row interface{ Scan(...any) error }) (*models.ReferralCommission, error) {
	var c models.ReferralCommission
	if err := row.Scan(&c.ID, &c.ReferrerID, &c.ReferredID, &c.Amount, &c.Status, &c.WithdrawalID, &c.CreatedAt, &c.PaidAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) InsertCommission(ctx context.Context, c *models.ReferralCommission) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO referral_commissions (id, referrer_id, referred_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.ReferrerID, c.ReferredID, c.Amount, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

func (q *queries) GetCommission(ctx context.Context, id uuid.UUID) (*models.ReferralCommission, error) {
	c, err := scanCommission(q.db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM referral_commissions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (q *queries) UpdateCommission(ctx context.Context, c *models.ReferralCommission) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE referral_commissions SET status = $2, withdrawal_id = $3, paid_at = $4 WHERE id = $1
	`, c.ID, c.Status, c.WithdrawalID, c.PaidAt)
	if err != nil {
		return fmt.Errorf("failed to update commission: %w", err)
	}
	return requireRow(tag)
}

func (q *queries) ListCommissions(ctx context.Context, referrerID uuid.UUID, status models.CommissionStatus) ([]models.ReferralCommission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commissionColumns+` FROM referral_commissions
		WHERE referrer_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, referrerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var out []models.ReferralCommission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q *queries) PayAvailableCommissions(ctx context.Context, referrerID, withdrawalID uuid.UUID, paidAt time.Time) ([]models.ReferralCommission, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE referral_commissions
		SET status = 'paid', withdrawal_id = $2, paid_at = $3
		WHERE referrer_id = $1 AND status = 'available'
		RETURNING `+commissionColumns, referrerID, withdrawalID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to pay commissions: %w", err)
	}
	defer rows.Close()

	var out []models.ReferralCommission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paid commission: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
