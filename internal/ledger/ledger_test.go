package ledger_test

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store/memory"
	"go-pos-engine/internal/store/storetest"
)

func setup(t *testing.T, stock int) (*ledger.Ledger, *memory.Store, *storetest.Faulty, *models.Product) {
	t.Helper()
	st := memory.New()
	f := storetest.Wrap(st)
	p := &models.Product{Name: "Tea", Price: decimal.NewFromInt(5), StockQuantity: stock, MinimumStock: 2}
	require.NoError(t, st.CreateProduct(context.Background(), p))
	log := logrus.New()
	log.SetOutput(io.Discard)
	return ledger.New(f, f, 3, log), st, f, p
}

func stockOf(t *testing.T, st *memory.Store, id uint) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		l, st, _, p := setup(t, 10)
		res, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: 3, Reason: "sale", ReferenceType: models.ReferenceSale, ActorID: 7})

		require.NoError(t, err)
		assert.Equal(t, 10, res.PreviousStock)
		assert.Equal(t, 7, res.NewStock)
		assert.True(t, res.MovementRecorded)
		assert.Equal(t, 7, stockOf(t, st, p.ID))

		movements, _ := st.ListMovements(ctx, p.ID, 0)
		require.Len(t, movements, 1)
		m := movements[0]
		assert.Equal(t, models.MovementExit, m.MovementType)
		assert.Equal(t, 3, m.Quantity)
		assert.Equal(t, 10, m.PreviousStock)
		assert.Equal(t, 7, m.NewStock)
		assert.Equal(t, uint(7), m.CreatedBy)
	})

	t.Run("Whole stock", func(t *testing.T) {
		l, st, _, p := setup(t, 4)
		res, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: 4})
		require.NoError(t, err)
		assert.Equal(t, 0, res.NewStock)
		assert.Equal(t, 0, stockOf(t, st, p.ID))
	})

	t.Run("Fail on insufficient stock", func(t *testing.T) {
		l, st, _, p := setup(t, 2)
		_, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: 3})

		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
		assert.Equal(t, 2, stockOf(t, st, p.ID))
		movements, _ := st.ListMovements(ctx, p.ID, 0)
		assert.Empty(t, movements)
	})

	t.Run("Fail on non-positive quantity", func(t *testing.T) {
		l, _, _, p := setup(t, 2)
		for _, q := range []int{0, -5} {
			_, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: q})
			assert.True(t, apperr.IsValidation(err), "quantity %d", q)
		}
	})

	t.Run("Fail on unknown product", func(t *testing.T) {
		l, _, _, _ := setup(t, 2)
		_, err := l.Reserve(ctx, ledger.Change{ProductID: 999, Quantity: 1})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Lost race is not retried", func(t *testing.T) {
		l, st, f, p := setup(t, 10)
		f.BeforeCAS(func(id uint, expected, next int) error {
			f.BeforeCAS(nil)
			// another writer sells one unit between our read and our write
			ok, err := st.CompareAndSetStock(ctx, id, expected, expected-1)
			require.True(t, ok)
			return err
		})

		_, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: 2})

		assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
		assert.Equal(t, 9, stockOf(t, st, p.ID), "only the other writer's change landed")
	})

	t.Run("Movement failure does not undo the reservation", func(t *testing.T) {
		l, st, f, p := setup(t, 10)
		f.FailMovements(errors.New("disk full"))

		res, err := l.Reserve(ctx, ledger.Change{ProductID: p.ID, Quantity: 1})

		require.NoError(t, err)
		assert.False(t, res.MovementRecorded)
		assert.Equal(t, 9, stockOf(t, st, p.ID))
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		l, st, _, p := setup(t, 1)
		refID := uint(42)
		res, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: 5, ReferenceType: models.ReferenceSaleDelete, ReferenceID: &refID})

		require.NoError(t, err)
		assert.Equal(t, 6, res.NewStock)
		assert.Equal(t, 6, stockOf(t, st, p.ID))

		m, err := st.FindMovementByReference(ctx, models.ReferenceSaleDelete, refID, models.MovementEntry)
		require.NoError(t, err)
		assert.Equal(t, 1, m.PreviousStock)
		assert.Equal(t, 6, m.NewStock)
	})

	t.Run("Retries a lost race with exact values", func(t *testing.T) {
		l, st, f, p := setup(t, 10)
		f.BeforeCAS(func(id uint, expected, next int) error {
			f.BeforeCAS(nil)
			_, err := st.CompareAndSetStock(ctx, id, expected, expected-4)
			return err
		})

		res, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: 2})

		require.NoError(t, err)
		assert.Equal(t, 6, res.PreviousStock)
		assert.Equal(t, 8, res.NewStock)
		assert.Equal(t, 8, stockOf(t, st, p.ID))
	})

	t.Run("Gives up after the attempt bound", func(t *testing.T) {
		l, st, f, p := setup(t, 10)
		f.BeforeCAS(func(id uint, expected, next int) error {
			_, err := st.CompareAndSetStock(ctx, id, expected, expected+100)
			return err
		})

		_, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: 1})
		assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
	})

	t.Run("Product gone", func(t *testing.T) {
		l, st, _, p := setup(t, 10)
		require.NoError(t, st.DeleteProduct(ctx, p.ID))

		_, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: 1})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Fail on stock counter overflow", func(t *testing.T) {
		l, st, _, p := setup(t, 10)

		_, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: math.MaxInt})

		assert.True(t, apperr.IsValidation(err), "got %v", err)
		assert.Equal(t, 10, stockOf(t, st, p.ID))
		movements, _ := st.ListMovements(ctx, p.ID, 0)
		assert.Empty(t, movements)

		res, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: math.MaxInt - 10})
		require.NoError(t, err)
		assert.Equal(t, math.MaxInt, res.NewStock)
	})

	t.Run("Reports below minimum on the result product", func(t *testing.T) {
		l, _, _, p := setup(t, 0)
		res, err := l.Release(ctx, ledger.Change{ProductID: p.ID, Quantity: 2})
		require.NoError(t, err)
		assert.True(t, res.Product.BelowMinimum(res.NewStock))
	})
}
