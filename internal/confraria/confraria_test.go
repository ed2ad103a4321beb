package confraria

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(t *testing.T, st *memory.Store, plan models.Plan) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, st.CreateProfile(context.Background(), &models.Profile{
		ID:          id,
		DisplayName: "Membro",
		Slug:        "membro-" + id.String()[:8],
		Plan:        plan,
		Status:      models.ProfileStatusActive,
	}))
	return id
}

func TestConfirm_AwardsBothParticipants(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	host := member(t, st, models.PlanRecruta)
	guest := member(t, st, models.PlanElite)

	c, err := svc.Schedule(context.Background(), host, &ScheduleRequest{
		GuestID:      guest,
		ScheduledFor: time.Now().Add(48 * time.Hour),
		Location:     "Café Central",
	})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), host, c.ID)
	assert.ErrorIs(t, err, ErrNotGuest)

	result, err := svc.Confirm(context.Background(), guest, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConfraternityCompleted, result.Confraternity.Status)
	require.NotNil(t, result.Confraternity.CompletedAt)
	assert.Equal(t, int64(50), result.HostPoints)
	assert.Equal(t, int64(150), result.GuestPoints)

	hostTotal, err := st.GetTotalPoints(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, int64(50), hostTotal)

	_, err = svc.Confirm(context.Background(), guest, c.ID)
	assert.ErrorIs(t, err, ErrNotScheduled)
}

func TestConfirm_RollsBackWhenOneAwardFails(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	host := member(t, st, models.PlanRecruta)
	ghost := uuid.New()

	c, err := svc.Schedule(context.Background(), host, &ScheduleRequest{GuestID: ghost, ScheduledFor: time.Now()})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), ghost, c.ID)
	require.Error(t, err)

	got, err := st.GetConfraternity(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConfraternityScheduled, got.Status)

	total, err := st.GetTotalPoints(context.Background(), host)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestScheduleAndCancel(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	host := uuid.New()
	guest := uuid.New()

	_, err := svc.Schedule(context.Background(), host, &ScheduleRequest{GuestID: host, ScheduledFor: time.Now()})
	assert.ErrorIs(t, err, ErrSelfMeetup)
	_, err = svc.Schedule(context.Background(), host, &ScheduleRequest{GuestID: guest})
	assert.ErrorIs(t, err, ErrMissingDate)

	c, err := svc.Schedule(context.Background(), host, &ScheduleRequest{GuestID: guest, ScheduledFor: time.Now()})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), c.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.Cancel(context.Background(), uuid.New(), c.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	cancelled, err := svc.Cancel(context.Background(), guest, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConfraternityCancelled, cancelled.Status)

	_, err = svc.Confirm(context.Background(), guest, c.ID)
	assert.ErrorIs(t, err, ErrNotScheduled)
	_, err = svc.Get(context.Background(), host, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirm_ConcurrentCallsAwardOnce(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	host := member(t, st, models.PlanRecruta)
	guest := member(t, st, models.PlanRecruta)

	c, err := svc.Schedule(context.Background(), host, &ScheduleRequest{
		GuestID:      guest,
		ScheduledFor: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Confirm(context.Background(), guest, c.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	confirmed := 0
	for err := range errs {
		if err == nil {
			confirmed++
			continue
		}
		assert.ErrorIs(t, err, ErrNotScheduled)
	}
	assert.Equal(t, 1, confirmed)

	for _, id := range []uuid.UUID{host, guest} {
		total, err := st.GetTotalPoints(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(50), total, "one meetup is rewarded once")
	}
}
