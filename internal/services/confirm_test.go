package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dkotenko/finance-tracker/internal/models"
	"github.com/dkotenko/finance-tracker/internal/services"
)

func TestConfirmationService_ConfirmExecutesAction(t *testing.T) {
	svc := services.NewConfirmationService()
	ctx := context.Background()
	owner := uuid.New()

	executed := false
	c := svc.Request(ctx, owner, "Delete transaction?", func(ctx context.Context) error {
		executed = true
		return nil
	})

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, "Delete transaction?", c.Message)

	assert.NoError(t, svc.Confirm(ctx, owner, c.ID))
	assert.True(t, executed)

	// Slot is cleared after a successful confirm
	assert.ErrorIs(t, svc.Confirm(ctx, owner, c.ID), services.ErrNoPendingConfirmation)
}

func TestConfirmationService_LastRequestWins(t *testing.T) {
	svc := services.NewConfirmationService()
	ctx := context.Background()
	owner := uuid.New()

	firstRan := false
	secondRan := false

	first := svc.Request(ctx, owner, "first?", func(ctx context.Context) error {
		firstRan = true
		return nil
	})
	second := svc.Request(ctx, owner, "second?", func(ctx context.Context) error {
		secondRan = true
		return nil
	})

	// The replaced confirmation is gone
	assert.ErrorIs(t, svc.Confirm(ctx, owner, first.ID), services.ErrNoPendingConfirmation)
	assert.False(t, firstRan)

	assert.NoError(t, svc.Confirm(ctx, owner, second.ID))
	assert.True(t, secondRan)
	assert.False(t, firstRan)
}

func TestConfirmationService_CancelNeverExecutes(t *testing.T) {
	svc := services.NewConfirmationService()
	ctx := context.Background()
	owner := uuid.New()

	executed := false
	c := svc.Request(ctx, owner, "delete?", func(ctx context.Context) error {
		executed = true
		return nil
	})

	assert.NoError(t, svc.Cancel(ctx, owner, c.ID))
	assert.False(t, executed)

	// Cancelled confirmation cannot be confirmed afterwards
	assert.ErrorIs(t, svc.Confirm(ctx, owner, c.ID), services.ErrNoPendingConfirmation)
}

func TestConfirmationService_FailedActionStaysPending(t *testing.T) {
	svc := services.NewConfirmationService()
	ctx := context.Background()
	owner := uuid.New()

	calls := 0
	c := svc.Request(ctx, owner, "delete?", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("remote delete failed")
		}
		return nil
	})

	// First confirm fails and keeps the slot pending
	assert.EqualError(t, svc.Confirm(ctx, owner, c.ID), "remote delete failed")

	// Retry succeeds and clears the slot
	assert.NoError(t, svc.Confirm(ctx, owner, c.ID))
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, svc.Confirm(ctx, owner, c.ID), services.ErrNoPendingConfirmation)
}

func TestConfirmationService_WrongIDOrOwner(t *testing.T) {
	svc := services.NewConfirmationService()
	ctx := context.Background()
	owner := uuid.New()

	c := svc.Request(ctx, owner, "delete?", func(ctx context.Context) error { return nil })

	assert.ErrorIs(t, svc.Confirm(ctx, owner, uuid.New()), services.ErrNoPendingConfirmation)
	assert.ErrorIs(t, svc.Confirm(ctx, uuid.New(), c.ID), services.ErrNoPendingConfirmation)
	assert.ErrorIs(t, svc.Cancel(ctx, owner, uuid.New()), services.ErrNoPendingConfirmation)
	assert.ErrorIs(t, svc.Cancel(ctx, uuid.New(), c.ID), services.ErrNoPendingConfirmation)
}

// A cancelled delete leaves the record in the store untouched.
func TestConfirmationService_CancelLeavesRecordPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := services.NewMockTransactionReader(ctrl)
	// Writer has no expectations: Delete must never be reached.
	writer := services.NewMockTransactionWriter(ctrl)
	store := services.NewTransactionService(reader, writer, nil, nil, nil, nil)
	confirmations := services.NewConfirmationService()

	ctx := context.Background()
	owner := uuid.New()
	target := uuid.New()

	reader.EXPECT().ListByOwner(gomock.Any(), owner).Return([]models.TransactionDB{
		{TransactionID: target, OwnerID: owner, Text: "Coffee", Amount: -50},
	}, nil)

	assert.NoError(t, store.Load(ctx, owner))

	c := confirmations.Request(ctx, owner, "Delete Coffee?", func(ctx context.Context) error {
		return store.Remove(ctx, owner, target)
	})
	assert.NoError(t, confirmations.Cancel(ctx, owner, c.ID))

	list, err := store.List(ctx, owner)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, target, list[0].TransactionID)
}
