package config

import "time"

const (
	// Ticket input limits
	MaxProjectNameLen = 35
	MaxDeadlineLen    = 256

	// Transient message lifetimes
	ErrorMessageTTL    = 5 * time.Second
	CancelNoticeTTL    = 8 * time.Second
	NotFoundMessageTTL = 8 * time.Second

	// Shared invoice history
	SharedInvoiceTTL = 10 * time.Minute

	// Ticket cache eviction
	TicketCacheIdle  = 15 * time.Minute
	TicketCacheSweep = 5 * time.Minute

	// Invoice draft eviction: abandoned drafts are dropped after this idle time.
	DraftIdle  = 2 * time.Hour
	DraftSweep = 10 * time.Minute

	// Billing API
	BillingRequestTimeout = 30 * time.Second

	// Transaction lookup windows
	LookupWindowDefault = 31 * 24 * time.Hour
	LookupWindowAround  = 15 * 24 * time.Hour

	// Invoice currency
	Currency = "EUR"
)

// Placeholder text used in the submitted-ticket summary for fields that were
// never filled in.
const (
	PlaceholderNoName        = "No project name entered"
	PlaceholderNoDeadline    = "I have no deadline"
	PlaceholderNoDescription = "No project description entered"
)
