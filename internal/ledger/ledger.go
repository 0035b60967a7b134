// Package ledger owns Product.StockQuantity. Every mutation is a conditional
// write on the last observed value and leaves a StockMovement behind.
package ledger

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

const DefaultReleaseAttempts = 10

// Change describes one stock mutation and what it should be traced to.
type Change struct {
	ProductID     uint
	Quantity      int
	Reason        string
	ReferenceType string
	ReferenceID   *uint
	ActorID       uint
}

// Result is the stock level after a successful mutation.
type Result struct {
	Product          models.Product
	PreviousStock    int
	NewStock         int
	Movement         *models.StockMovement
	MovementRecorded bool
}

type Ledger struct {
	products        store.ProductStore
	movements       store.MovementStore
	releaseAttempts int
	log             logrus.FieldLogger
}

func New(products store.ProductStore, movements store.MovementStore, releaseAttempts int, log logrus.FieldLogger) *Ledger {
	if releaseAttempts < 1 {
		releaseAttempts = DefaultReleaseAttempts
	}
	return &Ledger{
		products:        products,
		movements:       movements,
		releaseAttempts: releaseAttempts,
		log:             log.WithField("module", "ledger"),
	}
}

// Reserve decrements stock by c.Quantity with a single compare-and-set attempt.
// It fails with ErrInsufficientStock without writing anything when the product
// holds less than requested, and with ErrConcurrentModification when another
// writer got in between the read and the write. Callers retry from a fresh read.
func (l *Ledger) Reserve(ctx context.Context, c Change) (*Result, error) {
	if c.Quantity < 1 {
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}
	product, err := l.products.GetProduct(ctx, c.ProductID)
	if err != nil {
		return nil, err
	}
	if c.Quantity > product.StockQuantity {
		return nil, errors.Wrapf(apperr.ErrInsufficientStock, "product %d has %d, requested %d",
			product.ID, product.StockQuantity, c.Quantity)
	}

	next := product.StockQuantity - c.Quantity
	ok, err := l.products.CompareAndSetStock(ctx, product.ID, product.StockQuantity, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(apperr.ErrConcurrentModification, "product %d stock moved from %d", product.ID, product.StockQuantity)
	}

	return l.record(ctx, *product, models.MovementExit, c, product.StockQuantity, next), nil
}

// Release increments stock by c.Quantity. The loop only exists so the movement
// row carries the exact previous and new values. A quantity that would overflow
// the stock counter is rejected before anything is written.
func (l *Ledger) Release(ctx context.Context, c Change) (*Result, error) {
	if c.Quantity < 1 {
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}
	for attempt := 1; attempt <= l.releaseAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		product, err := l.products.GetProduct(ctx, c.ProductID)
		if err != nil {
			return nil, err
		}
		if c.Quantity > math.MaxInt-product.StockQuantity {
			return nil, apperr.Invalid("quantity", "would overflow the stock counter")
		}
		next := product.StockQuantity + c.Quantity
		ok, err := l.products.CompareAndSetStock(ctx, product.ID, product.StockQuantity, next)
		if err != nil {
			return nil, err
		}
		if ok {
			return l.record(ctx, *product, models.MovementEntry, c, product.StockQuantity, next), nil
		}
		l.log.WithFields(logrus.Fields{"product_id": c.ProductID, "attempt": attempt}).Debug("release lost a race, re-reading stock")
	}
	return nil, errors.Wrapf(apperr.ErrConcurrentModification, "release on product %d gave up after %d attempts", c.ProductID, l.releaseAttempts)
}

// record writes the movement trail. The stock write already happened, so a
// failure here is logged and flagged on the result instead of being returned.
func (l *Ledger) record(ctx context.Context, product models.Product, kind models.MovementType, c Change, prev, next int) *Result {
	product.StockQuantity = next
	m := &models.StockMovement{
		ProductID:     product.ID,
		MovementType:  kind,
		Quantity:      c.Quantity,
		PreviousStock: prev,
		NewStock:      next,
		Reason:        c.Reason,
		ReferenceType: c.ReferenceType,
		ReferenceID:   c.ReferenceID,
		CreatedBy:     c.ActorID,
	}
	res := &Result{Product: product, PreviousStock: prev, NewStock: next, Movement: m, MovementRecorded: true}
	if err := l.movements.CreateMovement(ctx, m); err != nil {
		l.log.WithFields(logrus.Fields{
			"product_id":     product.ID,
			"movement_type":  kind,
			"quantity":       c.Quantity,
			"previous_stock": prev,
			"new_stock":      next,
		}).WithError(err).Error("stock changed but movement was not recorded")
		res.MovementRecorded = false
	}
	return res
}
