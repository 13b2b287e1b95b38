package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupStatusNext(t *testing.T) {
	order := []SetupStatus{
		SetupBudgeting,
		SetupEnterName,
		SetupEnterDeadline,
		SetupEnterDescription,
		SetupSubmitted,
	}

	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Next()
		assert.True(t, ok, "step %s should have a successor", order[i])
		assert.Equal(t, order[i+1], next)
	}

	_, ok := SetupSubmitted.Next()
	assert.False(t, ok, "submitted is terminal")
}

func TestSetupStatusBefore(t *testing.T) {
	assert.True(t, SetupBudgeting.Before(SetupEnterName))
	assert.True(t, SetupBudgeting.Before(SetupSubmitted))
	assert.True(t, SetupEnterDeadline.Before(SetupSubmitted))

	assert.False(t, SetupSubmitted.Before(SetupBudgeting))
	assert.False(t, SetupEnterName.Before(SetupEnterName))
	assert.False(t, SetupStatus("bogus").Before(SetupSubmitted))
}

func TestLineItemComplete(t *testing.T) {
	name := "API integration"
	desc := "Hook the plugin into the storefront API"
	hours := UnitHours
	amount := UnitAmount
	rate := dec(t, "14")
	qty := dec(t, "3")

	tests := []struct {
		name string
		item LineItem
		want bool
	}{
		{"empty", LineItem{}, false},
		{"name only", LineItem{Name: &name}, false},
		{"fixed amount complete", LineItem{Name: &name, Description: &desc, Unit: &amount, Rate: &rate}, true},
		{"hourly missing quantity", LineItem{Name: &name, Description: &desc, Unit: &hours, Rate: &rate}, false},
		{"hourly complete", LineItem{Name: &name, Description: &desc, Unit: &hours, Rate: &rate, Quantity: &qty}, true},
		{"missing rate", LineItem{Name: &name, Description: &desc, Unit: &amount}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Complete())
		})
	}
}

func TestLineItemSubtotal(t *testing.T) {
	hours := UnitHours
	amount := UnitAmount
	rate := dec(t, "14")
	qty := dec(t, "2.5")

	hourly := LineItem{Unit: &hours, Rate: &rate, Quantity: &qty}
	assert.True(t, dec(t, "35").Equal(hourly.Subtotal()))

	fixed := LineItem{Unit: &amount, Rate: &rate}
	assert.True(t, rate.Equal(fixed.Subtotal()))

	assert.True(t, decZero().Equal((&LineItem{}).Subtotal()))
}
