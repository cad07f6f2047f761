package plans_test

import (
	"testing"

	"github.com/nbylich/creditflow/internal/models"
	"github.com/nbylich/creditflow/internal/plans"
	pkgerrors "github.com/nbylich/creditflow/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Run("KnownPlans", func(t *testing.T) {
		tests := []struct {
			plan        models.Plan
			amountCents int64
			credits     int64
		}{
			{models.PlanBasic, 1000, 100},
			{models.PlanAdvanced, 5000, 500},
			{models.PlanBusiness, 25000, 5000},
		}
		for _, tt := range tests {
			price, err := plans.Resolve(tt.plan)
			assert.NoError(t, err)
			assert.Equal(t, tt.amountCents, price.AmountCents)
			assert.Equal(t, tt.credits, price.Credits)
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		_, err := plans.Resolve(models.Plan("platinum"))
		assert.ErrorIs(t, err, pkgerrors.ErrUnknownPlan)
	})

	t.Run("EmptyPlan", func(t *testing.T) {
		_, err := plans.Resolve("")
		assert.ErrorIs(t, err, pkgerrors.ErrUnknownPlan)
	})
}
