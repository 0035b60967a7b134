// Package storetest wraps a store.Store so tests can fail or interleave
// individual calls.
package storetest

import (
	"context"
	"sync"
	"time"

	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

// Faulty passes every call through to Store unless the matching fault is set.
type Faulty struct {
	store.Store

	mu            sync.Mutex
	createSaleErr error
	deleteSaleErr error
	movementErr   error
	auditErr      error
	promotionsErr error
	incidentErr   error
	linkErr       error
	// cas runs before every CompareAndSetStock; a non-nil error is returned as is
	cas func(id uint, expected, next int) error
}

func Wrap(st store.Store) *Faulty {
	return &Faulty{Store: st}
}

func (f *Faulty) FailCreateSale(err error) { f.set(func() { f.createSaleErr = err }) }
func (f *Faulty) FailDeleteSale(err error) { f.set(func() { f.deleteSaleErr = err }) }
func (f *Faulty) FailMovements(err error)  { f.set(func() { f.movementErr = err }) }
func (f *Faulty) FailAudit(err error)      { f.set(func() { f.auditErr = err }) }
func (f *Faulty) FailPromotions(err error) { f.set(func() { f.promotionsErr = err }) }
func (f *Faulty) FailIncidents(err error)  { f.set(func() { f.incidentErr = err }) }
func (f *Faulty) FailLinks(err error)      { f.set(func() { f.linkErr = err }) }

// BeforeCAS installs a hook run ahead of each compare-and-set. Pass nil to clear.
func (f *Faulty) BeforeCAS(hook func(id uint, expected, next int) error) {
	f.set(func() { f.cas = hook })
}

func (f *Faulty) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *Faulty) get(field *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *field
}

func (f *Faulty) CompareAndSetStock(ctx context.Context, id uint, expected, next int) (bool, error) {
	f.mu.Lock()
	hook := f.cas
	f.mu.Unlock()
	if hook != nil {
		if err := hook(id, expected, next); err != nil {
			return false, err
		}
	}
	return f.Store.CompareAndSetStock(ctx, id, expected, next)
}

func (f *Faulty) ActivePromotionsForProduct(ctx context.Context, productID uint, at time.Time) ([]models.Promotion, error) {
	if err := f.get(&f.promotionsErr); err != nil {
		return nil, err
	}
	return f.Store.ActivePromotionsForProduct(ctx, productID, at)
}

func (f *Faulty) LinkProduct(ctx context.Context, promotionID, productID uint) error {
	if err := f.get(&f.linkErr); err != nil {
		return err
	}
	return f.Store.LinkProduct(ctx, promotionID, productID)
}

func (f *Faulty) CreateSale(ctx context.Context, s *models.Sale) error {
	if err := f.get(&f.createSaleErr); err != nil {
		return err
	}
	return f.Store.CreateSale(ctx, s)
}

func (f *Faulty) DeleteSale(ctx context.Context, id uint) error {
	if err := f.get(&f.deleteSaleErr); err != nil {
		return err
	}
	return f.Store.DeleteSale(ctx, id)
}

func (f *Faulty) CreateMovement(ctx context.Context, m *models.StockMovement) error {
	if err := f.get(&f.movementErr); err != nil {
		return err
	}
	return f.Store.CreateMovement(ctx, m)
}

func (f *Faulty) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := f.get(&f.auditErr); err != nil {
		return err
	}
	return f.Store.CreateAuditLog(ctx, entry)
}

func (f *Faulty) CreateIncident(ctx context.Context, inc *models.Incident) error {
	if err := f.get(&f.incidentErr); err != nil {
		return err
	}
	return f.Store.CreateIncident(ctx, inc)
}
