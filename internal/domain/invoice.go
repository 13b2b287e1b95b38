package domain

import "github.com/shopspring/decimal"

type MeasureUnit string

const (
	UnitHours  MeasureUnit = "HOURS"
	UnitAmount MeasureUnit = "AMOUNT"
)

// LineItem is one billable entry on an invoice draft. Fields are filled in
// one at a time by the invoice wizard, so all of them are optional until the
// item is complete.
type LineItem struct {
	Name        *string
	Description *string
	Unit        *MeasureUnit
	Rate        *decimal.Decimal
	Quantity    *decimal.Decimal
}

// Complete reports whether every required field is present. Quantity is only
// required for hourly items.
func (i *LineItem) Complete() bool {
	if i.Name == nil || i.Description == nil || i.Unit == nil || i.Rate == nil {
		return false
	}
	if *i.Unit == UnitHours && i.Quantity == nil {
		return false
	}
	return true
}

// Subtotal is rate x quantity for hourly items and the flat rate otherwise.
// Incomplete items count the fields they have; missing ones are zero.
func (i *LineItem) Subtotal() decimal.Decimal {
	if i.Rate == nil {
		return decimal.Zero
	}
	if i.Unit != nil && *i.Unit == UnitHours {
		if i.Quantity == nil {
			return decimal.Zero
		}
		return i.Rate.Mul(*i.Quantity)
	}
	return *i.Rate
}

// ItemsTotal sums the subtotals of all items.
func ItemsTotal(items []*LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type InvoiceStatus string

const (
	InvoicePaid         InvoiceStatus = "PAID"
	InvoiceMarkedAsPaid InvoiceStatus = "MARKED_AS_PAID"
)

// InvoiceRecord is the canonical invoice as the billing provider reports it.
type InvoiceRecord struct {
	ID        string
	Number    string
	Status    InvoiceStatus
	DueAmount decimal.Decimal
	PayLink   string
}

func (r *InvoiceRecord) FullyPaid() bool {
	return r.Status == InvoicePaid || r.Status == InvoiceMarkedAsPaid
}
