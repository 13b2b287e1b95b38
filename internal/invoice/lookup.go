package invoice

import (
	"context"
	"time"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/gateway"
)

const lookupDateLayout = "2006-01-02"

// HandleLookup serves the staff transaction-lookup command: every payment a
// customer email made, optionally around a given date.
func (w *Wizard) HandleLookup(ctx context.Context, ev gateway.Command) error {
	if !w.gw.IsStaff(ev.UserID) {
		w.notify(ctx, ev.ChannelID, "Only invoicing staff can look up transactions.", config.ErrorMessageTTL, true)
		return nil
	}

	email := ev.Args["email"]
	if email == "" {
		w.notify(ctx, ev.ChannelID, "Please provide the customer's email address.", config.ErrorMessageTTL, true)
		return nil
	}

	var around *time.Time
	if raw := ev.Args["date"]; raw != "" {
		parsed, err := time.Parse(lookupDateLayout, raw)
		if err != nil {
			w.notify(ctx, ev.ChannelID, "Dates must look like 2024-03-01.", config.ErrorMessageTTL, true)
			return nil
		}
		around = &parsed
	}

	txns, err := w.billing.LookupTransactions(ctx, email, around)
	if err != nil {
		w.fail(ctx, ev.ChannelID, err, "lookup transactions")
		return err
	}

	if _, err := w.gw.SendMessage(ctx, ev.ChannelID, transactionsMessage(email, txns)); err != nil {
		w.log.Warn("send lookup result", "error", err)
	}
	return nil
}
