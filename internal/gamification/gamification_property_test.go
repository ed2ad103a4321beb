package gamification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/cache"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/settings"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestService(t testing.TB) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	c := cache.NewMemory()
	return NewService(st, c, settings.NewService(st, c, time.Minute), time.Minute), st
}

func createProfile(t testing.TB, st *memory.Store, plan models.Plan) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := st.CreateProfile(context.Background(), &models.Profile{
		ID:          id,
		DisplayName: "Membro",
		Slug:        "membro-" + id.String()[:8],
		Plan:        plan,
		Status:      models.ProfileStatusActive,
	})
	require.NoError(t, err)
	return id
}

func seedRanks(t testing.TB, svc *Service) []models.Rank {
	t.Helper()
	ranks := []models.Rank{
		{Level: 1, Name: "Recruta", PointsRequired: 0},
		{Level: 2, Name: "Cabo", PointsRequired: 500},
		{Level: 3, Name: "Sargento", PointsRequired: 1500},
		{Level: 4, Name: "Tenente", PointsRequired: 5000},
	}
	for i := range ranks {
		require.NoError(t, svc.SaveRank(context.Background(), &ranks[i]))
	}
	return ranks
}

// ============================================
// Property Tests for Rank Resolution
// ============================================

// TestProperty_ResolveRank_HighestQualifying tests rank derivation from points
// *For any* rank table and point total, the resolved rank SHALL be the highest
// level whose threshold is at or below the total, regardless of input order.
func TestProperty_ResolveRank_HighestQualifying(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		ranks := make([]models.Rank, n)
		threshold := int64(0)
		for i := 0; i < n; i++ {
			threshold += rapid.Int64Range(1, 1000).Draw(rt, fmt.Sprintf("step%d", i))
			ranks[i] = models.Rank{ID: uuid.New(), Level: i + 1, PointsRequired: threshold}
		}
		shuffled := rapid.Permutation(ranks).Draw(rt, "order")
		points := rapid.Int64Range(-100, threshold+1000).Draw(rt, "points")

		got := ResolveRank(shuffled, points)

		var want *models.Rank
		for i := range ranks {
			if ranks[i].PointsRequired <= points {
				want = &ranks[i]
			}
		}
		if want == nil {
			if got != nil {
				t.Fatalf("PROPERTY VIOLATION: expected no rank for %d points, got level %d", points, got.Level)
			}
			return
		}
		if got == nil || got.ID != want.ID {
			t.Fatalf("PROPERTY VIOLATION: expected level %d for %d points, got %+v", want.Level, points, got)
		}

		next := NextRank(shuffled, points)
		if next != nil && next.PointsRequired <= points {
			t.Fatalf("PROPERTY VIOLATION: next rank threshold %d not above %d", next.PointsRequired, points)
		}
		if p := Progress(got, next, points); p < 0 || p > 100 {
			t.Fatalf("PROPERTY VIOLATION: progress %v outside 0..100", p)
		}
	})
}

// TestProperty_ApplyMultiplier_PlanFactor tests the vigor multiplier
// *For any* positive base amount, recruta SHALL earn 1x, veterano 1.5x rounded
// half away from zero, and elite 3x.
func TestProperty_ApplyMultiplier_PlanFactor(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.Int64Range(1, 1_000_000).Draw(rt, "base")

		if got := ApplyMultiplier(base, models.PlanRecruta); got != base {
			t.Fatalf("PROPERTY VIOLATION: recruta %d -> %d", base, got)
		}
		if got := ApplyMultiplier(base, models.PlanElite); got != 3*base {
			t.Fatalf("PROPERTY VIOLATION: elite %d -> %d", base, got)
		}
		if got, want := ApplyMultiplier(base, models.PlanVeterano), (3*base+1)/2; got != want {
			t.Fatalf("PROPERTY VIOLATION: veterano %d -> %d, want %d", base, got, want)
		}
		if got, want := ApplyMultiplier(-base, models.PlanVeterano), -(3*base+1)/2; got != want {
			t.Fatalf("PROPERTY VIOLATION: veterano %d -> %d, want %d", -base, got, want)
		}
	})
}

// TestProperty_Ledger_TotalEqualsEventSum tests the cumulative total
// *For any* sequence of awards, the stored total SHALL equal the sum of the
// profile's ledger events.
func TestProperty_Ledger_TotalEqualsEventSum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, st := newTestService(t)
		ctx := context.Background()
		plan := rapid.SampledFrom([]models.Plan{models.PlanRecruta, models.PlanVeterano, models.PlanElite}).Draw(rt, "plan")
		profileID := createProfile(t, st, plan)

		amounts := rapid.SliceOfN(rapid.Int64Range(1, 500), 1, 20).Draw(rt, "amounts")
		for _, a := range amounts {
			_, err := svc.AwardPoints(ctx, Award{ProfileID: profileID, Amount: a, ActionType: models.ActionAdminAdjustment})
			if err != nil {
				t.Fatalf("award failed: %v", err)
			}
		}

		history, err := svc.History(ctx, profileID, 1, 100)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var sum int64
		for _, e := range history.Events {
			sum += e.Amount
		}
		total, _ := st.GetTotalPoints(ctx, profileID)
		if total != sum || history.Total != len(amounts) {
			t.Fatalf("PROPERTY VIOLATION: total %d, event sum %d, events %d/%d", total, sum, history.Total, len(amounts))
		}
	})
}

// ============================================
// Unit Tests
// ============================================

func TestAwardPoints_RecordsMultiplierAndRefreshesRank(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	ranks := seedRanks(t, svc)
	profileID := createProfile(t, st, models.PlanVeterano)

	event, err := svc.AwardPoints(ctx, Award{
		ProfileID:   profileID,
		Amount:      401,
		ActionType:  models.ActionAdminAdjustment,
		Description: "ajuste",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(602), event.Amount)
	assert.Equal(t, int64(401), event.Metadata["base_amount"])
	assert.Equal(t, "1.5", event.Metadata["multiplier"])

	profile, err := st.GetProfile(ctx, profileID)
	require.NoError(t, err)
	require.NotNil(t, profile.CurrentRankID)
	assert.Equal(t, ranks[1].ID, *profile.CurrentRankID)
}

func TestAwardPoints_ExactSkipsMultiplier(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	profileID := createProfile(t, st, models.PlanElite)

	event, err := svc.AwardPoints(ctx, Award{
		ProfileID:  profileID,
		Amount:     -40,
		ActionType: models.ActionAdminAdjustment,
		Exact:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-40), event.Amount)
	assert.Equal(t, "1", event.Metadata["multiplier"])

	total, err := st.GetTotalPoints(ctx, profileID)
	require.NoError(t, err)
	assert.Equal(t, int64(-40), total)
}

func TestAwardPoints_Validation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	profileID := createProfile(t, st, models.PlanRecruta)

	_, err := svc.AwardPoints(ctx, Award{ProfileID: profileID, Amount: 0, ActionType: "x"})
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = svc.AwardPoints(ctx, Award{ProfileID: profileID, Amount: 5})
	assert.ErrorIs(t, err, ErrMissingAction)

	_, err = svc.AwardPoints(ctx, Award{ProfileID: uuid.New(), Amount: 5, ActionType: "x"})
	assert.ErrorIs(t, err, ErrProfileNotFound)

	total, err := st.GetTotalPoints(ctx, profileID)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAwardMedal_OncePerSeasonMonth(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	profileID := createProfile(t, st, models.PlanElite)

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	earned, err := svc.AwardMedal(ctx, profileID, models.MedalFirstSale)
	require.NoError(t, err)
	assert.True(t, earned)

	earned, err = svc.AwardMedal(ctx, profileID, models.MedalFirstSale)
	require.NoError(t, err)
	assert.False(t, earned)

	total, _ := st.GetTotalPoints(ctx, profileID)
	assert.Equal(t, int64(300), total)

	clock = clock.AddDate(0, 1, 0)
	earned, err = svc.AwardMedal(ctx, profileID, models.MedalFirstSale)
	require.NoError(t, err)
	assert.True(t, earned)

	medals, err := svc.EarnedMedals(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, medals, 2)
	assert.Equal(t, "2026-04", medals[0].SeasonMonth)
	require.NotNil(t, medals[0].Medal)
	assert.Equal(t, models.MedalFirstSale, medals[0].Medal.Code)

	notes, err := st.ListNotifications(ctx, profileID, true, 10)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestAwardMedal_InactiveAndUnknown(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	profileID := createProfile(t, st, models.PlanRecruta)

	medal := &models.Medal{Code: "retired", Name: "Aposentada", PointsReward: 10, Active: false}
	require.NoError(t, svc.SaveMedal(ctx, medal))

	earned, err := svc.AwardMedal(ctx, profileID, "retired")
	require.NoError(t, err)
	assert.False(t, earned)

	_, err = svc.AwardMedal(ctx, profileID, "does-not-exist")
	assert.ErrorIs(t, err, ErrMedalNotFound)
}

func TestOnAdSold_FirstSaleMedalOnlyOnce(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seller := createProfile(t, st, models.PlanRecruta)

	require.NoError(t, svc.OnAdSold(ctx, seller, uuid.New()))
	total, _ := st.GetTotalPoints(ctx, seller)
	assert.Equal(t, int64(50+100), total)

	require.NoError(t, svc.OnAdSold(ctx, seller, uuid.New()))
	total, _ = st.GetTotalPoints(ctx, seller)
	assert.Equal(t, int64(50+100+50), total)
}

func TestOnAdSold_UnknownSellerReturnsError(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.OnAdSold(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSummary_MonthlyVigorAndProgress(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	ranks := seedRanks(t, svc)
	profileID := createProfile(t, st, models.PlanRecruta)

	clock := time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	_, err := svc.AwardPoints(ctx, Award{ProfileID: profileID, Amount: 600, ActionType: models.ActionAdminAdjustment})
	require.NoError(t, err)

	clock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err = svc.AwardPoints(ctx, Award{ProfileID: profileID, Amount: 400, ActionType: models.ActionAdminAdjustment})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, profileID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), summary.TotalPoints)
	assert.Equal(t, int64(400), summary.MonthlyVigor)
	require.NotNil(t, summary.CurrentRank)
	assert.Equal(t, ranks[1].ID, summary.CurrentRank.ID)
	require.NotNil(t, summary.NextRank)
	assert.Equal(t, ranks[2].ID, summary.NextRank.ID)
	assert.InDelta(t, 50.0, summary.ProgressPercent, 0.001)
}

func TestSaveRank_OrderingAndCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedRanks(t, svc)

	cached, err := svc.Ranks(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 4)

	err = svc.SaveRank(ctx, &models.Rank{Level: 5, Name: "Capitão", PointsRequired: 100})
	assert.ErrorIs(t, err, ErrRankOrder)

	err = svc.SaveRank(ctx, &models.Rank{Level: 2, Name: "Duplicado", PointsRequired: 700})
	assert.ErrorIs(t, err, ErrRankLevelTaken)

	err = svc.SaveRank(ctx, &models.Rank{Level: 0, Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidRank)

	require.NoError(t, svc.SaveRank(ctx, &models.Rank{Level: 5, Name: "Capitão", PointsRequired: 10000}))
	ranks, err := svc.Ranks(ctx)
	require.NoError(t, err)
	require.Len(t, ranks, 5)
	assert.Equal(t, "Capitão", ranks[4].Name)

	require.NoError(t, svc.DeleteRank(ctx, ranks[4].ID))
	ranks, err = svc.Ranks(ctx)
	require.NoError(t, err)
	assert.Len(t, ranks, 4)

	assert.ErrorIs(t, svc.DeleteRank(ctx, uuid.New()), ErrRankNotFound)
}

func TestSaveMedal_CodeUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.SaveMedal(ctx, &models.Medal{Code: models.MedalFirstSale, Name: "Outra"})
	assert.ErrorIs(t, err, ErrMedalCodeTaken)

	err = svc.SaveMedal(ctx, &models.Medal{Code: " ", Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidMedal)

	m := &models.Medal{Code: "networker", Name: "Networker", Active: true}
	require.NoError(t, svc.SaveMedal(ctx, m))
	assert.Equal(t, "general", m.Category)

	active, err := svc.Medals(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestLeaderboard_SortedByTotal(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	seedRanks(t, svc)

	low := createProfile(t, st, models.PlanRecruta)
	high := createProfile(t, st, models.PlanRecruta)
	_, err := svc.AwardPoints(ctx, Award{ProfileID: low, Amount: 100, ActionType: "x"})
	require.NoError(t, err)
	_, err = svc.AwardPoints(ctx, Award{ProfileID: high, Amount: 2000, ActionType: "x"})
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, high, board[0].ProfileID)
	require.NotNil(t, board[0].Rank)
	assert.Equal(t, "Sargento", board[0].Rank.Name)
	assert.Equal(t, "Recruta", board[1].Rank.Name)
}
