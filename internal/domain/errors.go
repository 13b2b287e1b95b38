package domain

import "errors"

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrOpenTicketExists   = errors.New("requester already has an open ticket")
	ErrPricingNotFound    = errors.New("pricing request not found")
	ErrPricingConsumed    = errors.New("pricing request already consumed")
	ErrContactNotFound    = errors.New("billing contact not found")
	ErrTransactionMissing = errors.New("transaction record not found")
	ErrNameTooLong        = errors.New("project name too long")
	ErrDeadlineTooLong    = errors.New("deadline too long")
	ErrNotTicketChannel   = errors.New("channel is not linked to a ticket")
	ErrNotPermitted       = errors.New("caller may not perform this action")
	ErrDraftSending       = errors.New("invoice draft is being sent")
	ErrItemIncomplete     = errors.New("line item is incomplete")
)
