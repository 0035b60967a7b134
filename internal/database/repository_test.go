package database

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Connect(config.Database{Driver: config.DriverSQLite, DSN: dsn}, log)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func newProduct(t *testing.T, r *Repository, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Green Tea", Price: decimal.RequireFromString("12.50"), StockQuantity: stock, MinimumStock: 2}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestCompareAndSetStock(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := newProduct(t, r, 10)

	ok, err := r.CompareAndSetStock(ctx, p.ID, 10, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CompareAndSetStock(ctx, p.ID, 10, 5)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected value must not write")

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.StockQuantity)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("12.50")))

	ok, err = r.CompareAndSetStock(ctx, 999, 0, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductNotFound(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	_, err := r.GetProduct(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, r.DeleteProduct(ctx, 42), apperr.ErrNotFound)
	name := "x"
	_, err = r.UpdateProduct(ctx, 42, store.ProductPatch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProductLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := newProduct(t, r, 10)

	price := decimal.RequireFromString("15.00")
	minimum := 4
	got, err := r.UpdateProduct(ctx, p.ID, store.ProductPatch{Price: &price, MinimumStock: &minimum})

	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price))
	assert.Equal(t, 4, got.MinimumStock)
	assert.Equal(t, 10, got.StockQuantity)
	assert.Equal(t, "Green Tea", got.Name)
}

func TestActivePromotionsForProduct(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := newProduct(t, r, 10)
	other := newProduct(t, r, 10)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mk := func(name string, start, end time.Time, active bool, productID uint) *models.Promotion {
		promo := &models.Promotion{
			Name:          name,
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			StartDate:     start,
			EndDate:       end,
			IsActive:      true,
		}
		require.NoError(t, r.CreatePromotion(ctx, promo))
		if !active {
			require.NoError(t, r.SetPromotionActive(ctx, promo.ID, false))
		}
		require.NoError(t, r.LinkProduct(ctx, promo.ID, productID))
		return promo
	}

	first := mk("current", now.Add(-time.Hour), now.Add(time.Hour), true, p.ID)
	mk("expired", now.Add(-48*time.Hour), now.Add(-24*time.Hour), true, p.ID)
	mk("future", now.Add(time.Hour), now.Add(48*time.Hour), true, p.ID)
	mk("disabled", now.Add(-time.Hour), now.Add(time.Hour), false, p.ID)
	mk("other product", now.Add(-time.Hour), now.Add(time.Hour), true, other.ID)
	second := mk("also current", now.Add(-2*time.Hour), now.Add(2*time.Hour), true, p.ID)

	// linking twice is harmless
	require.NoError(t, r.LinkProduct(ctx, first.ID, p.ID))

	promos, err := r.ActivePromotionsForProduct(ctx, p.ID, now)
	require.NoError(t, err)
	require.Len(t, promos, 2)
	assert.Equal(t, first.ID, promos[0].ID)
	assert.Equal(t, second.ID, promos[1].ID)

	require.NoError(t, r.UnlinkProduct(ctx, first.ID, p.ID))
	promos, err = r.ActivePromotionsForProduct(ctx, p.ID, now)
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.Equal(t, second.ID, promos[0].ID)

	require.NoError(t, r.DeletePromotion(ctx, second.ID))
	promos, err = r.ActivePromotionsForProduct(ctx, p.ID, now)
	require.NoError(t, err)
	assert.Empty(t, promos)
}

func TestSalesAndMovements(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := newProduct(t, r, 10)
	promoID := uint(3)

	sale := &models.Sale{
		ProductID:       p.ID,
		ProductName:     p.Name,
		AdministratorID: 1,
		Quantity:        2,
		OriginalPrice:   decimal.RequireFromString("12.50"),
		UnitPrice:       decimal.RequireFromString("11.25"),
		DiscountAmount:  decimal.RequireFromString("1.25"),
		TotalPrice:      decimal.RequireFromString("22.50"),
		PromotionID:     &promoID,
		PromotionSnapshot: models.PromotionSnapshot{
			Name:          "Tea week",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
		},
		PaymentMethod: models.PaymentCash,
		SaleDate:      time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.CreateSale(ctx, sale))

	got, err := r.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(sale.TotalPrice))
	assert.Equal(t, "Tea week", got.PromotionSnapshot.Name)
	require.NotNil(t, got.PromotionID)
	assert.Equal(t, promoID, *got.PromotionID)

	saleID := sale.ID
	reversal := &models.StockMovement{
		ProductID:     p.ID,
		MovementType:  models.MovementEntry,
		Quantity:      2,
		PreviousStock: 8,
		NewStock:      10,
		ReferenceType: models.ReferenceSaleDelete,
		ReferenceID:   &saleID,
	}
	require.NoError(t, r.CreateMovement(ctx, reversal))

	found, err := r.FindMovementByReference(ctx, models.ReferenceSaleDelete, saleID, models.MovementEntry)
	require.NoError(t, err)
	assert.Equal(t, reversal.ID, found.ID)
	_, err = r.FindMovementByReference(ctx, models.ReferenceSaleDelete, saleID, models.MovementExit)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	movements, err := r.ListMovements(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	require.NoError(t, r.DeleteSale(ctx, sale.ID))
	assert.ErrorIs(t, r.DeleteSale(ctx, sale.ID), apperr.ErrNotFound)
	_, err = r.GetSale(ctx, sale.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteAuditLogsExcept(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	var last *models.AuditLog
	for i := 0; i < 4; i++ {
		last = &models.AuditLog{ActionType: models.ActionCreate, Resource: "sales", RecordID: fmt.Sprint(i)}
		require.NoError(t, r.CreateAuditLog(ctx, last))
	}

	deleted, err := r.DeleteAuditLogsExcept(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	logs, err := r.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, last.ID, logs[0].ID)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	require.NoError(t, r.CreateUser(ctx, &models.User{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}))
	u, err := r.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = r.FindUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
