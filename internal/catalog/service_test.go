package catalog_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/catalog"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store/memory"
	"go-pos-engine/internal/store/storetest"
)

func newService(t *testing.T) (*catalog.Service, *memory.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	st := memory.New()
	ldg := ledger.New(st, st, 0, log)
	return catalog.NewService(st, ldg, audit.NewRecorder(st, st, "", log), log), st
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	p, err := svc.CreateProduct(ctx, catalog.ProductInput{
		Name:         "Jasmine",
		Price:        decimal.RequireFromString("9.999"),
		InitialStock: 12,
		MinimumStock: 3,
	}, 1)

	require.NoError(t, err)
	assert.Equal(t, 12, p.StockQuantity)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10.00")))

	movements, _ := st.ListMovements(ctx, p.ID, 0)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementEntry, movements[0].MovementType)
	assert.Equal(t, 0, movements[0].PreviousStock)
	assert.Equal(t, 12, movements[0].NewStock)

	logs, _ := st.ListAuditLogs(ctx, 0)
	require.Len(t, logs, 1)
	assert.Equal(t, "products", logs[0].Resource)
}

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.CreateProduct(ctx, catalog.ProductInput{Price: decimal.NewFromInt(1)}, 1)
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreateProduct(ctx, catalog.ProductInput{Name: "x", Price: decimal.NewFromInt(-1)}, 1)
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreateProduct(ctx, catalog.ProductInput{Name: "x", Price: decimal.NewFromInt(1), InitialStock: -4}, 1)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateProductNeverTouchesStock(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	p, err := svc.CreateProduct(ctx, catalog.ProductInput{Name: "Sencha", Price: decimal.NewFromInt(8), InitialStock: 5}, 1)
	require.NoError(t, err)

	price := decimal.RequireFromString("7.50")
	updated, err := svc.UpdateProduct(ctx, p.ID, catalog.ProductUpdate{Price: &price}, 1)

	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 5, updated.StockQuantity)

	_, err = svc.UpdateProduct(ctx, 99, catalog.ProductUpdate{Price: &price}, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID, 1))
	_, err = st.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPromotions(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	p, err := svc.CreateProduct(ctx, catalog.ProductInput{Name: "Matcha", Price: decimal.NewFromInt(20)}, 1)
	require.NoError(t, err)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	valid := catalog.PromotionInput{
		Name:          "June",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(15),
		StartDate:     start,
		EndDate:       end,
		ProductIDs:    []uint{p.ID},
	}

	t.Run("Invalid input", func(t *testing.T) {
		cases := map[string]func(in *catalog.PromotionInput){
			"zero value":       func(in *catalog.PromotionInput) { in.DiscountValue = decimal.Zero },
			"over 100 percent": func(in *catalog.PromotionInput) { in.DiscountValue = decimal.NewFromInt(101) },
			"end before start": func(in *catalog.PromotionInput) { in.EndDate = start.Add(-time.Hour) },
			"unknown type":     func(in *catalog.PromotionInput) { in.DiscountType = "bogo" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				in := valid
				mutate(&in)
				_, err := svc.CreatePromotion(ctx, in, 1)
				assert.True(t, apperr.IsValidation(err), "got %v", err)
			})
		}
	})

	t.Run("Create link toggle delete", func(t *testing.T) {
		promo, err := svc.CreatePromotion(ctx, valid, 1)
		require.NoError(t, err)
		assert.True(t, promo.IsActive)

		active, err := st.ActivePromotionsForProduct(ctx, p.ID, start.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, active, 1)

		off, err := svc.SetPromotionActive(ctx, promo.ID, false, 1)
		require.NoError(t, err)
		assert.False(t, off.IsActive)
		active, _ = st.ActivePromotionsForProduct(ctx, p.ID, start.Add(time.Hour))
		assert.Empty(t, active)

		_, err = svc.SetPromotionActive(ctx, promo.ID, true, 1)
		require.NoError(t, err)
		require.NoError(t, svc.UnlinkProduct(ctx, promo.ID, p.ID, 1))
		active, _ = st.ActivePromotionsForProduct(ctx, p.ID, start.Add(time.Hour))
		assert.Empty(t, active)

		require.NoError(t, svc.LinkProduct(ctx, promo.ID, p.ID, 1))
		require.NoError(t, svc.DeletePromotion(ctx, promo.ID, 1))
		active, _ = st.ActivePromotionsForProduct(ctx, p.ID, start.Add(time.Hour))
		assert.Empty(t, active)

		assert.ErrorIs(t, svc.DeletePromotion(ctx, promo.ID, 1), apperr.ErrNotFound)
	})

	t.Run("Unknown product leaves nothing behind", func(t *testing.T) {
		before, _ := st.ListPromotions(ctx)
		audits, _ := st.ListAuditLogs(ctx, 0)

		in := valid
		in.ProductIDs = []uint{p.ID, 404}
		_, err := svc.CreatePromotion(ctx, in, 1)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
		after, _ := st.ListPromotions(ctx)
		assert.Len(t, after, len(before))
		auditsAfter, _ := st.ListAuditLogs(ctx, 0)
		assert.Len(t, auditsAfter, len(audits))
		active, _ := st.ActivePromotionsForProduct(ctx, p.ID, start.Add(time.Hour))
		assert.Empty(t, active)
	})
}

func TestCreatePromotionRollsBackOnLinkFailure(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	st := memory.New()
	f := storetest.Wrap(st)
	svc := catalog.NewService(f, ledger.New(f, f, 0, log), audit.NewRecorder(f, f, "", log), log)
	p, err := svc.CreateProduct(ctx, catalog.ProductInput{Name: "Hojicha", Price: decimal.NewFromInt(12)}, 1)
	require.NoError(t, err)
	f.FailLinks(errors.New("connection lost"))

	_, err = svc.CreatePromotion(ctx, catalog.PromotionInput{
		Name:          "Autumn",
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: decimal.NewFromInt(2),
		StartDate:     time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		ProductIDs:    []uint{p.ID},
	}, 1)

	assert.Error(t, err)
	promos, _ := st.ListPromotions(ctx)
	assert.Empty(t, promos)
	logs, _ := st.ListAuditLogs(ctx, 0)
	require.Len(t, logs, 1, "only the product creation is audited")
	assert.Equal(t, "products", logs[0].Resource)
}
