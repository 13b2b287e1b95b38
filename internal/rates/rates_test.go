package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/plugsmith/orderdesk/internal/domain"
)

func TestComputeMatchedTestingAndPublication(t *testing.T) {
	q := Compute(domain.PricingSelection{
		Type:             domain.TierPremium,
		Testing:          domain.TierPremium,
		Messages:         domain.TierBudget,
		Commands:         domain.TierPro,
		Versions:         domain.TierBudget,
		AllowPublication: true,
	})

	// messages(0) + commands(5) + versions(0) - publication(15); premium
	// testing is included because it matches the plugin tier.
	assert.True(t, decimal.NewFromInt(-10).Equal(q.FlatTotal), "flat total, got %s", q.FlatTotal)
	assert.True(t, decimal.NewFromInt(14).Equal(q.Hourly), "hourly rate, got %s", q.Hourly)

	var testingLine *Line
	for i := range q.Lines {
		if q.Lines[i].Category == CategoryTesting {
			testingLine = &q.Lines[i]
		}
	}
	assert.NotNil(t, testingLine)
	assert.True(t, testingLine.Included)
}

func TestComputeUnmatchedTestingIsCharged(t *testing.T) {
	q := Compute(domain.PricingSelection{
		Type:     domain.TierBudget,
		Testing:  domain.TierPro,
		Messages: domain.TierBudget,
		Commands: domain.TierBudget,
		Versions: domain.TierBudget,
	})

	assert.True(t, decimal.NewFromInt(10).Equal(q.FlatTotal), "pro testing charged, got %s", q.FlatTotal)
	assert.True(t, decimal.NewFromInt(12).Equal(q.Hourly))
	assert.False(t, q.Published)
}

func TestComputeLinesCoverEveryCategory(t *testing.T) {
	q := Compute(domain.PricingSelection{
		Type:     domain.TierPro,
		Testing:  domain.TierBudget,
		Messages: domain.TierPremium,
		Commands: domain.TierPremium,
		Versions: domain.TierPro,
	})

	seen := map[Category]bool{}
	for _, line := range q.Lines {
		seen[line.Category] = true
		if line.Category == CategoryType {
			assert.True(t, line.PerHour)
		}
	}
	for _, cat := range []Category{CategoryType, CategoryTesting, CategoryMessages, CategoryCommands, CategoryVersions} {
		assert.True(t, seen[cat], "missing line for %s", cat)
	}

	// 0 + 5 + 2.5 + 15
	assert.True(t, decimal.RequireFromString("22.5").Equal(q.FlatTotal), "got %s", q.FlatTotal)
}
