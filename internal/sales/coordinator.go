// Package sales runs the create and delete sale workflows. The store has no
// multi-statement transactions, so each workflow is an explicit sequence of
// steps with named compensation when a later step fails.
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/lock"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/notify"
	"go-pos-engine/internal/pricing"
	"go-pos-engine/internal/store"
	"go-pos-engine/internal/validation"
)

// Step names a state of the create or delete workflow.
type Step string

const (
	StepValidating     Step = "Validating"
	StepPriceResolving Step = "PriceResolving"
	StepStockReserving Step = "StockReserving"
	StepSalePersisting Step = apperr.StepSalePersisting
	StepAuditLogging   Step = "AuditLogging"
	StepDone           Step = "Done"

	StepLoading        Step = "Loading"
	StepStockReleasing Step = apperr.StepStockReleasing
	StepSaleRemoving   Step = apperr.StepSaleRemoving

	StepStockMoving Step = "StockMoving"
)

const (
	DefaultReserveAttempts = 3
	DefaultLockTTL         = 30 * time.Second
	// MaxSaleDateSkew is how far a client supplied sale_date may drift from the server clock.
	MaxSaleDateSkew = 5 * time.Minute

	saleLockKey = "lock:sale:%d"
	producer    = "pos-engine"

	// compensation keeps running after the caller goes away
	compensationTimeout = 10 * time.Second
)

type Options struct {
	ReserveAttempts int
	LockTTL         time.Duration
}

type Coordinator struct {
	products  store.ProductStore
	sales     store.SaleStore
	movements store.MovementStore
	resolver  *pricing.Resolver
	ledger    *ledger.Ledger
	audit     *audit.Recorder
	locker    lock.Locker
	publisher notify.Publisher
	opts      Options
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewCoordinator(
	st store.Store,
	resolver *pricing.Resolver,
	ldg *ledger.Ledger,
	recorder *audit.Recorder,
	locker lock.Locker,
	publisher notify.Publisher,
	opts Options,
	log logrus.FieldLogger,
) *Coordinator {
	if opts.ReserveAttempts < 1 {
		opts.ReserveAttempts = DefaultReserveAttempts
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &Coordinator{
		products:  st,
		sales:     st,
		movements: st,
		resolver:  resolver,
		ledger:    ldg,
		audit:     recorder,
		locker:    locker,
		publisher: publisher,
		opts:      opts,
		log:       log.WithField("module", "sales"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for sale dates.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

func enter(log logrus.FieldLogger, step Step) logrus.FieldLogger {
	l := log.WithField("step", step)
	l.Debug("enter step")
	return l
}

// CreateSale walks Validating, PriceResolving, StockReserving, SalePersisting,
// AuditLogging and Done. Insufficient stock aborts before any write. A failed
// sale write after a successful reservation releases the stock again and comes
// back as *apperr.PartialFailure.
func (c *Coordinator) CreateSale(ctx context.Context, req CreateSaleRequest) (*Receipt, error) {
	log := c.log.WithFields(logrus.Fields{
		"product_id": req.ProductID,
		"user_id":    req.AdministratorID,
		"quantity":   req.Quantity,
	})

	enter(log, StepValidating)
	if err := req.validate(); err != nil {
		return nil, err
	}
	saleDate := c.now()
	if !req.SaleDate.IsZero() {
		if skew := req.SaleDate.Sub(saleDate); skew > MaxSaleDateSkew || skew < -MaxSaleDateSkew {
			return nil, apperr.Invalid("sale_date", "must be the current time, sales cannot be back-dated")
		}
	}
	product, err := c.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	// fast precheck only; Reserve checks again on the write
	if req.Quantity > product.StockQuantity {
		return nil, errors.Wrapf(apperr.ErrInsufficientStock, "product %d has %d, requested %d",
			product.ID, product.StockQuantity, req.Quantity)
	}

	var (
		resolution pricing.Resolution
		reserved   *ledger.Result
	)
	for attempt := 1; ; attempt++ {
		enter(log, StepPriceResolving)
		resolution = c.resolver.ResolvePriceAt(ctx, product.ID, product.Price, saleDate)

		enter(log, StepStockReserving)
		reserved, err = c.ledger.Reserve(ctx, ledger.Change{
			ProductID:     product.ID,
			Quantity:      req.Quantity,
			Reason:        fmt.Sprintf("sale of %d units", req.Quantity),
			ReferenceType: models.ReferenceSale,
			ActorID:       req.AdministratorID,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConcurrentModification) || attempt >= c.opts.ReserveAttempts {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithField("attempt", attempt).Info("stock changed during reservation, retrying from a fresh read")
		if product, err = c.products.GetProduct(ctx, req.ProductID); err != nil {
			return nil, err
		}
	}

	enter(log, StepSalePersisting)
	sale := &models.Sale{
		ProductID:        product.ID,
		ProductName:      product.Name,
		AdministratorID:  req.AdministratorID,
		Quantity:         req.Quantity,
		OriginalPrice:    resolution.OriginalPrice,
		UnitPrice:        resolution.ResolvedPrice,
		DiscountAmount:   resolution.DiscountAmount,
		TotalPrice:       resolution.ResolvedPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		PaymentMethod:    req.Payment.Method,
		InstallmentCount: req.Payment.InstallmentCount,
		SaleDate:         saleDate,
	}
	if resolution.HasPromotion {
		id := resolution.AppliedPromotion.ID
		sale.PromotionID = &id
		sale.PromotionSnapshot = resolution.AppliedPromotion.Snapshot()
	}
	if err := c.sales.CreateSale(ctx, sale); err != nil {
		return nil, c.compensateCreate(ctx, log, sale, err)
	}
	log = log.WithField("sale_id", sale.ID)

	receipt := &Receipt{
		Sale:           sale,
		Pricing:        resolution,
		RemainingStock: reserved.NewStock,
		BelowMinimum:   reserved.Product.BelowMinimum(reserved.NewStock),
	}
	if resolution.LookupFailed {
		receipt.Warnings = append(receipt.Warnings, "promotions could not be read; original price charged")
	}
	if !reserved.MovementRecorded {
		receipt.Warnings = append(receipt.Warnings, "stock movement was not recorded")
		c.reportMissing(ctx, models.IncidentMovementMissing, apperr.OpCreateSale, StepStockReserving, sale, "exit movement for sale not written")
	}

	enter(log, StepAuditLogging)
	_, auditErr := c.audit.Record(ctx, audit.Entry{
		ActionType: models.ActionCreate,
		Resource:   "sales",
		RecordID:   audit.RecordID(sale.ID),
		After:      sale,
		ActorID:    req.AdministratorID,
	})
	receipt.AuditRecorded = auditErr == nil
	if auditErr != nil {
		receipt.Warnings = append(receipt.Warnings, "audit entry was not recorded")
		c.reportMissing(ctx, models.IncidentAuditMissing, apperr.OpCreateSale, StepAuditLogging, sale, auditErr.Error())
	}

	enter(log, StepDone).WithFields(logrus.Fields{
		"unit_price":  sale.UnitPrice.String(),
		"total_price": sale.TotalPrice.String(),
		"promoted":    sale.HasPromotion(),
		"new_stock":   reserved.NewStock,
	}).Info("sale created")
	c.publish(ctx, notify.TopicSaleCreated, notify.EventSaleCreated, sale.ID, notify.SaleCreatedPayload{
		SaleID:       sale.ID,
		ProductID:    sale.ProductID,
		Quantity:     sale.Quantity,
		UnitPrice:    sale.UnitPrice,
		TotalPrice:   sale.TotalPrice,
		PromotionID:  sale.PromotionID,
		NewStock:     reserved.NewStock,
		BelowMinimum: receipt.BelowMinimum,
	})
	return receipt, nil
}

// compensateCreate puts the reserved stock back after the sale row could not
// be written. The result is always a PartialFailure; Compensated tells whether
// the release went through.
func (c *Coordinator) compensateCreate(ctx context.Context, log logrus.FieldLogger, sale *models.Sale, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	pf := &apperr.PartialFailure{
		Operation: apperr.OpCreateSale,
		Step:      apperr.StepSalePersisting,
		ProductID: sale.ProductID,
		Quantity:  sale.Quantity,
		Cause:     cause,
	}
	_, err := c.ledger.Release(ctx, ledger.Change{
		ProductID:     sale.ProductID,
		Quantity:      sale.Quantity,
		Reason:        "compensation: sale could not be saved",
		ReferenceType: models.ReferenceCompensate,
		ActorID:       sale.AdministratorID,
	})
	if err != nil {
		pf.CompensationErr = err
	} else {
		pf.Compensated = true
	}
	log.WithError(cause).WithField("compensated", pf.Compensated).Error("sale not persisted after stock was reserved")
	_ = c.audit.ReportPartial(ctx, pf)
	return pf
}

func (c *Coordinator) reportMissing(ctx context.Context, kind, op string, step Step, sale *models.Sale, detail string) {
	c.report(ctx, kind, op, step, sale.ID, sale.ProductID, sale.Quantity, detail)
}

func (c *Coordinator) report(ctx context.Context, kind, op string, step Step, saleID, productID uint, quantity int, detail string) {
	inc := models.Incident{
		Kind:      kind,
		Operation: op,
		Step:      string(step),
		ProductID: &productID,
		Quantity:  quantity,
		Detail:    detail,
	}
	if saleID != 0 {
		inc.SaleID = &saleID
	}
	_ = c.audit.ReportIncident(ctx, inc)
}

// DeleteSale walks Loading, StockReleasing, SaleRemoving, AuditLogging and
// Done. Deletes of the same sale are serialized. A retry after a failed removal
// finds the earlier reversal movement and does not release the stock again.
// A failed removal after a release is never undone automatically.
func (c *Coordinator) DeleteSale(ctx context.Context, saleID, actorID uint) (*DeletionReport, error) {
	log := c.log.WithFields(logrus.Fields{"sale_id": saleID, "user_id": actorID})

	unlock, err := c.locker.Obtain(ctx, fmt.Sprintf(saleLockKey, saleID), c.opts.LockTTL)
	if err != nil {
		return nil, errors.Wrapf(err, "delete sale %d", saleID)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("release sale lock")
		}
	}()

	enter(log, StepLoading)
	sale, err := c.sales.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(logrus.Fields{"product_id": sale.ProductID, "quantity": sale.Quantity})
	report := &DeletionReport{SaleID: sale.ID}

	enter(log, StepStockReleasing)
	if err := c.releaseForDelete(ctx, log, sale, report); err != nil {
		return nil, err
	}

	enter(log, StepSaleRemoving)
	if err := c.sales.DeleteSale(ctx, sale.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		if !report.StockRestored {
			// nothing changed yet, a plain retry is safe
			return nil, err
		}
		pf := &apperr.PartialFailure{
			Operation: apperr.OpDeleteSale,
			Step:      apperr.StepSaleRemoving,
			SaleID:    sale.ID,
			ProductID: sale.ProductID,
			Quantity:  sale.Quantity,
			Cause:     err,
		}
		log.WithError(err).Error("stock released but sale row still present")
		_ = c.audit.ReportPartial(context.WithoutCancel(ctx), pf)
		return nil, pf
	}

	enter(log, StepAuditLogging)
	_, auditErr := c.audit.Record(ctx, audit.Entry{
		ActionType: models.ActionDelete,
		Resource:   "sales",
		RecordID:   audit.RecordID(sale.ID),
		Before:     snapshotOf(sale),
		Details:    map[string]any{"stock_restored": report.StockRestored},
		ActorID:    actorID,
	})
	report.AuditRecorded = auditErr == nil
	if auditErr != nil {
		report.Warnings = append(report.Warnings, "audit entry was not recorded")
		c.reportMissing(ctx, models.IncidentAuditMissing, apperr.OpDeleteSale, StepAuditLogging, sale, auditErr.Error())
	}

	enter(log, StepDone).WithField("stock_restored", report.StockRestored).Info("sale deleted")
	c.publish(ctx, notify.TopicSaleDeleted, notify.EventSaleDeleted, sale.ID, notify.SaleDeletedPayload{
		SaleID:        sale.ID,
		ProductID:     sale.ProductID,
		Quantity:      sale.Quantity,
		StockRestored: report.StockRestored,
	})
	return report, nil
}

func (c *Coordinator) releaseForDelete(ctx context.Context, log logrus.FieldLogger, sale *models.Sale, report *DeletionReport) error {
	prior, err := c.movements.FindMovementByReference(ctx, models.ReferenceSaleDelete, sale.ID, models.MovementEntry)
	switch {
	case err == nil:
		log.WithField("movement_id", prior.ID).Warn("stock already returned by an earlier attempt, skipping release")
		report.StockRestored = true
		report.AlreadyReleased = true
		return nil
	case !errors.Is(err, apperr.ErrNotFound):
		return errors.Wrap(err, "check for earlier reversal")
	}

	saleID := sale.ID
	released, err := c.ledger.Release(ctx, ledger.Change{
		ProductID:     sale.ProductID,
		Quantity:      sale.Quantity,
		Reason:        fmt.Sprintf("sale %d deleted", sale.ID),
		ReferenceType: models.ReferenceSaleDelete,
		ReferenceID:   &saleID,
		ActorID:       sale.AdministratorID,
	})
	if errors.Is(err, apperr.ErrNotFound) {
		report.Warnings = append(report.Warnings, "product no longer exists; stock was not restored")
		c.reportMissing(ctx, models.IncidentStockNotRestored, apperr.OpDeleteSale, StepStockReleasing, sale,
			fmt.Sprintf("product %d is gone, %d units from sale %d not restored", sale.ProductID, sale.Quantity, sale.ID))
		return nil
	}
	if err != nil {
		return err
	}
	report.StockRestored = true
	report.NewStock = &released.NewStock
	if !released.MovementRecorded {
		report.Warnings = append(report.Warnings, "reversal movement was not recorded; a retry would release again")
		c.reportMissing(ctx, models.IncidentMovementMissing, apperr.OpDeleteSale, StepStockReleasing, sale, "entry movement for sale reversal not written")
	}
	return nil
}

// RegisterStockMovement applies a manual entry or exit. An exit larger than the
// current stock fails with apperr.ErrInsufficientForExit and changes nothing.
func (c *Coordinator) RegisterStockMovement(ctx context.Context, req StockMovementRequest) (*MovementReceipt, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	log := c.log.WithFields(logrus.Fields{
		"product_id":    req.ProductID,
		"movement_type": req.Type,
		"quantity":      req.Quantity,
		"user_id":       req.ActorID,
	})

	change := ledger.Change{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		ReferenceType: models.ReferenceManual,
		ActorID:       req.ActorID,
	}
	var (
		res *ledger.Result
		err error
	)
	if req.Type == models.MovementEntry {
		res, err = c.ledger.Release(ctx, change)
	} else {
		for attempt := 1; ; attempt++ {
			res, err = c.ledger.Reserve(ctx, change)
			if !errors.Is(err, apperr.ErrConcurrentModification) || attempt >= c.opts.ReserveAttempts || ctx.Err() != nil {
				break
			}
		}
		if errors.Is(err, apperr.ErrInsufficientStock) {
			err = errors.Wrapf(apperr.ErrInsufficientForExit, "product %d", req.ProductID)
		}
	}
	if err != nil {
		return nil, err
	}

	receipt := movementReceipt(res)
	if !res.MovementRecorded {
		receipt.Warnings = append(receipt.Warnings, "stock movement was not recorded")
		c.report(ctx, models.IncidentMovementMissing, apperr.OpStockMovement, StepStockMoving, 0, req.ProductID, req.Quantity,
			fmt.Sprintf("%s movement of %d units not written", req.Type, req.Quantity))
	}
	_, auditErr := c.audit.Record(ctx, audit.Entry{
		ActionType: models.ActionUpdate,
		Resource:   "products",
		RecordID:   audit.RecordID(req.ProductID),
		Before:     map[string]any{"stock_quantity": res.PreviousStock},
		After:      map[string]any{"stock_quantity": res.NewStock},
		Details:    map[string]any{"movement_type": req.Type, "quantity": req.Quantity, "reason": req.Reason},
		ActorID:    req.ActorID,
	})
	receipt.AuditRecorded = auditErr == nil
	if auditErr != nil {
		receipt.Warnings = append(receipt.Warnings, "audit entry was not recorded")
		c.report(ctx, models.IncidentAuditMissing, apperr.OpStockMovement, StepAuditLogging, 0, req.ProductID, req.Quantity, auditErr.Error())
	}

	log.WithField("new_stock", res.NewStock).Info("stock movement registered")
	c.publish(ctx, notify.TopicStockChanged, notify.EventStockChanged, req.ProductID, notify.StockChangedPayload{
		ProductID:     req.ProductID,
		MovementType:  string(req.Type),
		Quantity:      req.Quantity,
		PreviousStock: res.PreviousStock,
		NewStock:      res.NewStock,
		BelowMinimum:  receipt.BelowMinimum,
	})
	return receipt, nil
}

func (c *Coordinator) publish(ctx context.Context, topic, eventType string, id uint, payload any) {
	ev, err := notify.NewEvent(topic, eventType, producer, id, payload)
	if err != nil {
		c.log.WithError(err).WithField("event_type", eventType).Warn("build notification")
		return
	}
	c.publisher.Publish(ctx, ev)
}
