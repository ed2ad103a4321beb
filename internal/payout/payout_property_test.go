package payout

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestService(t testing.TB, minimum decimal.Decimal) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewService(st, minimum), st
}

func createMember(t testing.TB, st *memory.Store, plan models.Plan) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, st.CreateProfile(context.Background(), &models.Profile{
		ID:          id,
		DisplayName: "Indicador",
		Slug:        "indicador-" + id.String()[:8],
		Plan:        plan,
		Status:      models.ProfileStatusActive,
	}))
	return id
}

func availableCommission(t testing.TB, svc *Service, referrer uuid.UUID, amount decimal.Decimal) *models.ReferralCommission {
	t.Helper()
	c, err := svc.RecordCommission(context.Background(), referrer, uuid.New(), amount)
	require.NoError(t, err)
	c, err = svc.ReleaseCommission(context.Background(), c.ID)
	require.NoError(t, err)
	return c
}

func pixRequest(amount decimal.Decimal) *CreateWithdrawalRequest {
	return &CreateWithdrawalRequest{Amount: amount, PixKey: "membro@rota.club", PixKeyType: models.PixKeyEmail}
}

// ============================================
// Property Tests for Withdrawal Threshold
// ============================================

// TestProperty_WithdrawalThreshold_BelowMinimumRejected tests the minimum amount
// *For any* withdrawal amount below the minimum threshold, the System SHALL
// reject the withdrawal request whatever the balance.
func TestProperty_WithdrawalThreshold_BelowMinimumRejected(t *testing.T) {
	svc, _ := newTestService(t, decimal.Zero)
	rapid.Check(t, func(rt *rapid.T) {
		cents := rapid.Int64Range(0, 4999).Draw(rt, "cents")
		amount := decimal.New(cents, -2)
		available := decimal.New(rapid.Int64Range(0, 1_000_000).Draw(rt, "available"), -2)

		if err := svc.ValidateWithdrawalAmount(amount, available); err != ErrBelowMinimumThreshold {
			rt.Fatalf("PROPERTY VIOLATION: amount %s accepted below minimum %s (err=%v)", amount, svc.MinimumWithdrawal(), err)
		}
	})
}

// TestProperty_WithdrawalBalance_NeverExceedsAvailable tests the balance check
// *For any* amount above the minimum, the System SHALL accept it exactly when
// it does not exceed the available balance.
func TestProperty_WithdrawalBalance_NeverExceedsAvailable(t *testing.T) {
	svc, _ := newTestService(t, decimal.Zero)
	rapid.Check(t, func(rt *rapid.T) {
		amount := decimal.New(rapid.Int64Range(5000, 1_000_000).Draw(rt, "amount"), -2)
		available := decimal.New(rapid.Int64Range(0, 1_000_000).Draw(rt, "available"), -2)

		err := svc.ValidateWithdrawalAmount(amount, available)
		if amount.GreaterThan(available) && err != ErrInsufficientBalance {
			rt.Fatalf("PROPERTY VIOLATION: %s accepted with only %s available", amount, available)
		}
		if !amount.GreaterThan(available) && err != nil {
			rt.Fatalf("PROPERTY VIOLATION: %s rejected with %s available: %v", amount, available, err)
		}
	})
}

// TestProperty_Approval_PaysAllAvailable tests commission settlement
// *For any* set of available commissions and any valid request amount,
// approving the withdrawal SHALL pay every available commission of the
// requester, never a subset, and award count x points_per_sale x multiplier.
func TestProperty_Approval_PaysAllAvailable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, st := newTestService(t, decimal.NewFromInt(1))
		plan := rapid.SampledFrom([]models.Plan{models.PlanRecruta, models.PlanVeterano, models.PlanElite}).Draw(rt, "plan")
		member := createMember(t, st, plan)

		n := rapid.IntRange(1, 6).Draw(rt, "commissions")
		total := decimal.Zero
		for i := 0; i < n; i++ {
			amount := decimal.NewFromInt(rapid.Int64Range(1, 500).Draw(rt, fmt.Sprintf("amount%d", i)))
			availableCommission(t, svc, member, amount)
			total = total.Add(amount)
		}
		pending, err := svc.RecordCommission(context.Background(), member, uuid.New(), decimal.NewFromInt(7))
		require.NoError(t, err)

		request := decimal.NewFromInt(rapid.Int64Range(1, total.IntPart()).Draw(rt, "request"))
		w, err := svc.RequestWithdrawal(context.Background(), member, pixRequest(request))
		require.NoError(t, err)

		result, err := svc.ApproveWithdrawal(context.Background(), w.ID, "https://cdn.rota.club/proof.pdf")
		if err != nil {
			rt.Fatalf("PROPERTY VIOLATION: approval failed: %v", err)
		}
		if len(result.Commissions) != n {
			rt.Fatalf("PROPERTY VIOLATION: paid %d of %d available commissions", len(result.Commissions), n)
		}
		for _, c := range result.Commissions {
			if c.Status != models.CommissionStatusPaid || c.WithdrawalID == nil || *c.WithdrawalID != w.ID {
				rt.Fatalf("PROPERTY VIOLATION: commission %s not linked to withdrawal", c.ID)
			}
		}

		want := int64(n) * 100
		switch plan {
		case models.PlanVeterano:
			want = want * 3 / 2
		case models.PlanElite:
			want *= 3
		}
		if result.PointsAwarded != want {
			rt.Fatalf("PROPERTY VIOLATION: awarded %d points, want %d", result.PointsAwarded, want)
		}

		still, err := st.GetCommission(context.Background(), pending.ID)
		require.NoError(t, err)
		if still.Status != models.CommissionStatusPending {
			rt.Fatalf("PROPERTY VIOLATION: pending commission changed to %s", still.Status)
		}
	})
}

// ============================================
// Unit Tests
// ============================================

func TestApprove_ThreeCommissionsRequestTwentyFive(t *testing.T) {
	svc, st := newTestService(t, decimal.NewFromInt(10))
	member := createMember(t, st, models.PlanRecruta)
	for _, amount := range []int64{10, 20, 30} {
		availableCommission(t, svc, member, decimal.NewFromInt(amount))
	}

	w, err := svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(25)))
	require.NoError(t, err)

	result, err := svc.ApproveWithdrawal(context.Background(), w.ID, "https://cdn.rota.club/proof.pdf")
	require.NoError(t, err)
	assert.Len(t, result.Commissions, 3)
	assert.Equal(t, int64(300), result.PointsAwarded)
	assert.Equal(t, models.WithdrawalStatusPaid, result.Withdrawal.Status)
	require.NotNil(t, result.Withdrawal.ReceiptURL)

	balance, err := svc.Balance(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, balance.Available.IsZero())
	assert.True(t, balance.Paid.Equal(decimal.NewFromInt(60)))

	total, err := st.GetTotalPoints(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)

	notes, err := st.ListNotifications(context.Background(), member, true, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationWithdrawalPaid, notes[0].Type)
}

func TestApprove_RollsBackOnFailure(t *testing.T) {
	svc, st := newTestService(t, decimal.NewFromInt(10))
	// No profile exists, so the points award fails after the other writes.
	member := uuid.New()
	c := availableCommission(t, svc, member, decimal.NewFromInt(40))

	w, err := svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(40)))
	require.NoError(t, err)

	_, err = svc.ApproveWithdrawal(context.Background(), w.ID, "https://cdn.rota.club/proof.pdf")
	require.Error(t, err)

	got, err := st.GetWithdrawal(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, got.Status)
	assert.Nil(t, got.ReceiptURL)

	comm, err := st.GetCommission(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusAvailable, comm.Status)
	assert.Nil(t, comm.WithdrawalID)

	notes, err := st.ListNotifications(context.Background(), member, false, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	svc, st := newTestService(t, decimal.Zero)
	member := createMember(t, st, models.PlanRecruta)
	availableCommission(t, svc, member, decimal.NewFromInt(120))

	_, err := svc.RequestWithdrawal(context.Background(), member, &CreateWithdrawalRequest{Amount: decimal.NewFromInt(60), PixKeyType: models.PixKeyCPF})
	assert.ErrorIs(t, err, ErrMissingPixKey)

	_, err = svc.RequestWithdrawal(context.Background(), member, &CreateWithdrawalRequest{Amount: decimal.NewFromInt(60), PixKey: "x", PixKeyType: "iban"})
	assert.ErrorIs(t, err, ErrInvalidPixKeyType)

	_, err = svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(49)))
	assert.ErrorIs(t, err, ErrBelowMinimumThreshold)

	_, err = svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(121)))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(60)))
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(60)))
	assert.ErrorIs(t, err, ErrPendingWithdrawal)
}

func TestRejectWithdrawal(t *testing.T) {
	svc, st := newTestService(t, decimal.Zero)
	member := createMember(t, st, models.PlanRecruta)
	c := availableCommission(t, svc, member, decimal.NewFromInt(80))

	w, err := svc.RequestWithdrawal(context.Background(), member, pixRequest(decimal.NewFromInt(80)))
	require.NoError(t, err)

	_, err = svc.RejectWithdrawal(context.Background(), w.ID, " ")
	assert.ErrorIs(t, err, ErrMissingReason)

	rejected, err := svc.RejectWithdrawal(context.Background(), w.ID, "Chave PIX inválida")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)

	_, err = svc.ApproveWithdrawal(context.Background(), w.ID, "https://cdn.rota.club/proof.pdf")
	assert.ErrorIs(t, err, ErrWithdrawalNotPending)

	comm, err := st.GetCommission(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusAvailable, comm.Status)

	_, err = svc.ApproveWithdrawal(context.Background(), uuid.New(), "https://cdn.rota.club/proof.pdf")
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
	_, err = svc.ApproveWithdrawal(context.Background(), w.ID, "")
	assert.ErrorIs(t, err, ErrMissingProof)
}

func TestCommissionLifecycle(t *testing.T) {
	svc, st := newTestService(t, decimal.Zero)
	member := createMember(t, st, models.PlanRecruta)

	_, err := svc.RecordCommission(context.Background(), member, uuid.New(), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidCommission)

	c, err := svc.RecordCommission(context.Background(), member, uuid.New(), decimal.NewFromInt(15))
	require.NoError(t, err)
	_, err = svc.ReleaseCommission(context.Background(), c.ID)
	require.NoError(t, err)
	_, err = svc.ReleaseCommission(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrCommissionNotPending)
	_, err = svc.ReleaseCommission(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCommissionNotFound)

	available, err := svc.Commissions(context.Background(), member, models.CommissionStatusAvailable)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	history, err := svc.Withdrawals(context.Background(), member, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, history.Withdrawals)
	assert.Equal(t, 0, history.TotalPages)
}
