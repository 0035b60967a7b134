// Package pricing resolves the unit price a product sells at, given the
// promotions linked to it.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

// Resolution is the outcome of a price lookup for one product.
type Resolution struct {
	OriginalPrice    decimal.Decimal   `json:"original_price"`
	ResolvedPrice    decimal.Decimal   `json:"resolved_price"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	HasPromotion     bool              `json:"has_promotion"`
	AppliedPromotion *models.Promotion `json:"applied_promotion,omitempty"`
	// LookupFailed is set when promotions could not be read and the original price was used.
	LookupFailed bool `json:"lookup_failed,omitempty"`
}

type Resolver struct {
	promotions store.PromotionStore
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewResolver(promotions store.PromotionStore, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		promotions: promotions,
		log:        log.WithField("module", "pricing"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, mainly for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ResolvePrice resolves against the promotions valid right now.
func (r *Resolver) ResolvePrice(ctx context.Context, productID uint, originalPrice decimal.Decimal) Resolution {
	return r.ResolvePriceAt(ctx, productID, originalPrice, r.now())
}

// ResolvePriceAt picks the lowest price any promotion effective at `at` yields.
// Ties keep the first promotion seen, and the store returns them by ascending id.
// If promotions cannot be read the original price is returned: a sale is never
// blocked on the lookup and no earlier discount is reused.
func (r *Resolver) ResolvePriceAt(ctx context.Context, productID uint, originalPrice decimal.Decimal, at time.Time) Resolution {
	res := Resolution{
		OriginalPrice:  originalPrice,
		ResolvedPrice:  originalPrice,
		DiscountAmount: decimal.Zero,
	}

	promos, err := r.promotions.ActivePromotionsForProduct(ctx, productID, at)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"product_id": productID,
			"at":         at,
		}).WithError(err).Warn("promotion lookup failed, using original price")
		res.LookupFailed = true
		return res
	}

	best := originalPrice
	var applied *models.Promotion
	for i := range promos {
		p := promos[i]
		if !p.EffectiveAt(at) {
			continue
		}
		candidate := p.Apply(originalPrice)
		if candidate.LessThan(best) {
			best = candidate
			applied = &p
		}
	}
	if applied == nil {
		return res
	}

	res.ResolvedPrice = best
	res.DiscountAmount = originalPrice.Sub(best)
	res.HasPromotion = true
	res.AppliedPromotion = applied
	return res
}
