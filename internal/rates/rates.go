// Package rates holds the static custom-project rate table and the quote
// computation applied to a pricing-form selection.
package rates

import (
	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/domain"
)

type Category string

const (
	CategoryType     Category = "type"
	CategoryTesting  Category = "testing"
	CategoryMessages Category = "messages"
	CategoryCommands Category = "commands"
	CategoryVersions Category = "versions"
)

type Rate struct {
	Amount      decimal.Decimal
	Description string
}

// TierLabels are the human labels rendered in front of each tier choice.
var TierLabels = map[domain.Tier]string{
	domain.TierBudget:  "🟢 Budget",
	domain.TierPremium: "🔵 Premium",
	domain.TierPro:     "🟣 Pro",
}

// Table is the static rate configuration. The type category is an hourly
// rate, every other category a flat amount in EUR.
var Table = map[Category]map[domain.Tier]Rate{
	CategoryType: {
		domain.TierBudget:  {dec(12), "Utility plugin"},
		domain.TierPremium: {dec(14), "Game plugin without proxy support"},
		domain.TierPro:     {dec(16), "Game plugin with proxy support"},
	},
	CategoryTesting: {
		domain.TierBudget:  {dec(0), "Rapid test, one environment"},
		domain.TierPremium: {dec(5), "System tests after adding features, 2-4 environments"},
		domain.TierPro:     {dec(10), "Smoke tests after adding features, as many environments and setups as possible"},
	},
	CategoryMessages: {
		domain.TierBudget:  {dec(0), "Hardcoded messages & items"},
		domain.TierPremium: {dec(5), "Customizable messages, hardcoded items"},
		domain.TierPro:     {dec(10), "Customizable messages & items"},
	},
	CategoryCommands: {
		domain.TierBudget:  {dec(0), "Regular commands to execute tasks"},
		domain.TierPremium: {decStr("2.5"), "Commands with auto-completion"},
		domain.TierPro:     {dec(5), "Commands to change config options"},
	},
	CategoryVersions: {
		domain.TierBudget:  {dec(0), "Written for one specific game version"},
		domain.TierPremium: {dec(5), "Runs on the two long-term support versions"},
		domain.TierPro:     {dec(15), "Runs on up to 4 flagship versions with full internals support"},
	},
}

// PublicationDiscount is subtracted from the flat total when the requester
// authorizes later publication of the plugin as a premium resource.
var PublicationDiscount = Rate{
	Amount: dec(-15),
	Description: "In exchange for a 15 EUR discount, the requester authorizes publication of " +
		"this plugin as a premium resource one month after delivery.",
}

// Line is one rendered row of a quote.
type Line struct {
	Category Category
	Tier     domain.Tier
	Rate     Rate
	Included bool
	PerHour  bool
}

// Quote is the pricing outcome for one selection: an hourly development rate
// reported separately, and a flat total over the remaining categories.
type Quote struct {
	Hourly    decimal.Decimal
	FlatTotal decimal.Decimal
	Lines     []Line
	Published bool
}

// Compute prices a selection. The type category sets the hourly rate and is
// not summed; the testing rate is waived when its tier matches the type tier;
// the publication discount applies when opted in.
func Compute(sel domain.PricingSelection) Quote {
	q := Quote{Published: sel.AllowPublication}

	q.Hourly = Table[CategoryType][sel.Type].Amount
	q.Lines = append(q.Lines, Line{
		Category: CategoryType,
		Tier:     sel.Type,
		Rate:     Table[CategoryType][sel.Type],
		PerHour:  true,
	})

	flat := decimal.Zero

	testing := Table[CategoryTesting][sel.Testing]
	included := sel.Testing == sel.Type
	if !included {
		flat = flat.Add(testing.Amount)
	}
	q.Lines = append(q.Lines, Line{
		Category: CategoryTesting,
		Tier:     sel.Testing,
		Rate:     testing,
		Included: included,
	})

	for _, pick := range []struct {
		cat  Category
		tier domain.Tier
	}{
		{CategoryMessages, sel.Messages},
		{CategoryCommands, sel.Commands},
		{CategoryVersions, sel.Versions},
	} {
		rate := Table[pick.cat][pick.tier]
		flat = flat.Add(rate.Amount)
		q.Lines = append(q.Lines, Line{Category: pick.cat, Tier: pick.tier, Rate: rate})
	}

	if sel.AllowPublication {
		flat = flat.Add(PublicationDiscount.Amount)
	}

	q.FlatTotal = flat
	return q
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func decStr(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
