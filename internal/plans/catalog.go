// Package plans is the single source of truth for credit pack pricing.
// Amounts and credit counts are never taken from request input; every
// transaction derives them from this catalog at creation time.
package plans

import (
	"github.com/nbylich/creditflow/internal/models"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
)

type Price struct {
	AmountCents int64
	Credits     int64
}

var catalog = map[models.Plan]Price{
	models.PlanBasic:    {AmountCents: 1000, Credits: 100},
	models.PlanAdvanced: {AmountCents: 5000, Credits: 500},
	models.PlanBusiness: {AmountCents: 25000, Credits: 5000},
}

// Resolve returns the price for a plan, or ErrUnknownPlan for anything
// outside the configured set.
func Resolve(plan models.Plan) (Price, error) {
	price, ok := catalog[plan]
	if !ok {
		return Price{}, pkgerrors.ErrUnknownPlan
	}
	return price, nil
}
