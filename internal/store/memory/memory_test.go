package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
	"github.com/rotaclub/rota/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_RollbackKeepsWritesMadeOutside(t *testing.T) {
	s := New()
	ctx := context.Background()
	member := uuid.New()

	started := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("boom")

	txDone := make(chan error, 1)
	go func() {
		txDone <- s.WithTx(ctx, func(q store.Queries) error {
			if _, err := q.AddPoints(ctx, member, 100, time.Now()); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	w := &models.WithdrawalRequest{
		ID:          uuid.New(),
		RequesterID: member,
		Amount:      decimal.NewFromInt(60),
		PixKey:      "membro@rota.club",
		PixKeyType:  models.PixKeyEmail,
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	writeDone := make(chan error, 1)
	go func() { writeDone <- s.InsertWithdrawal(ctx, w) }()

	select {
	case err := <-writeDone:
		t.Fatalf("write outside the transaction finished while it was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.ErrorIs(t, <-txDone, boom)
	require.NoError(t, <-writeDone)

	got, err := s.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err, "the rollback must not drop a write made outside the transaction")
	assert.Equal(t, member, got.RequesterID)

	total, err := s.GetTotalPoints(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "points added inside the failed transaction are rolled back")
}

func TestWithTx_ReadsDoNotWaitForTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.WithTx(ctx, func(q store.Queries) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	_, err := s.ListAdTiers(ctx, true)
	assert.NoError(t, err)
}
