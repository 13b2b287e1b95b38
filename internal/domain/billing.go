package domain

import "github.com/shopspring/decimal"

// BillingContact is the invoicing identity of a storefront account that has
// a verified chat link.
type BillingContact struct {
	AccountID  int64
	ChatUserID string
	FirstName  string
	LastName   string
	Email      string
	Business   *string
}

func (c *BillingContact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// TransactionRecord maps a payment transaction id to its business context.
// Maintained by the storefront backend; read-only here.
type TransactionRecord struct {
	TxnID       string
	AccountID   *int64
	PluginTitle *string
	Amount      decimal.Decimal
	InvoiceID   *string
}
