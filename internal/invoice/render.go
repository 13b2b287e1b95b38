package invoice

import (
	"fmt"

	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/paypal"
)

func discardPromptMessage() gateway.Message {
	return gateway.Message{
		Title: "Unfinished invoice",
		Body:  "You already have an invoice in progress. Discard it and start over?",
		Buttons: [][]gateway.Button{{
			{ID: BtnDiscardDraft, Label: "Discard draft"},
			{ID: BtnKeepDraft, Label: "Keep working on it"},
		}},
	}
}

func customerPromptMessage() gateway.Message {
	return gateway.Message{
		Title:        "New invoice",
		Body:         "Who is this invoice for? Pick the customer below.",
		UserSelectID: SelCustomer,
	}
}

func sharePromptMessage() gateway.Message {
	return gateway.Message{
		Body:            "Share this invoice to a channel?",
		ChannelSelectID: SelShareChannel,
	}
}

// summaryMessage renders the running invoice: customer, completed items, the
// total, and whatever actions the draft's state allows.
func summaryMessage(d *Draft) gateway.Message {
	msg := gateway.Message{Title: "Invoice"}
	if d.InvoiceNumber != "" {
		msg.Title = "Invoice #" + d.InvoiceNumber
	}

	if d.Customer != nil {
		value := fmt.Sprintf("%s (%s)", d.Customer.FullName(), d.Customer.Email)
		if d.Customer.Business != nil {
			value += "\n" + *d.Customer.Business
		}
		msg.Fields = append(msg.Fields, gateway.Field{Name: "Customer", Value: value})
	}

	for _, item := range d.completeItems() {
		msg.Fields = append(msg.Fields, gateway.Field{
			Name:  *item.Name,
			Value: *item.Description + "\n" + paypal.ItemPriceLine(item),
		})
	}

	items := d.completeItems()
	switch {
	case d.Sending:
		msg.Footer = "Sending invoice..."
	case d.Sent:
		msg.Footer = "Sent. Total: " + paypal.FormatTotal(items)
		if d.Record != nil && !d.Record.FullyPaid() {
			msg.Footer += ". Due: " + paypal.FormatAmount(d.Record.DueAmount) + " EUR"
		}
		msg.Thumbnail = d.QR
		if d.Record != nil && d.Record.PayLink != "" {
			msg.Buttons = [][]gateway.Button{{
				{Label: "Pay with PayPal", URL: d.Record.PayLink},
			}}
		}
	default:
		msg.Footer = "Total: " + paypal.FormatTotal(items)
		row := []gateway.Button{{ID: BtnAddItem, Label: "Add item"}}
		if d.canSubmit() {
			row = append(row, gateway.Button{ID: BtnSubmitInvoice, Label: "Submit invoice"})
		}
		msg.Buttons = [][]gateway.Button{row}
	}
	return msg
}

// itemPromptMessage renders the single prompt message for the in-progress
// item. The content is derived from the draft's step once per render, so the
// prompt can never disagree with the field being asked for.
func itemPromptMessage(d *Draft) gateway.Message {
	if d.CancellingItem {
		return gateway.Message{
			Title: "Cancel this item?",
			Body:  "The item and everything entered for it will be removed.",
			Buttons: [][]gateway.Button{{
				{ID: BtnCancelItemYes, Label: "Cancel item"},
				{ID: BtnCancelItemNo, Label: "Continue editing"},
			}},
		}
	}

	msg := gateway.Message{Title: "New item"}
	switch d.Step {
	case StepItemName:
		msg.Body = "Send the item's name in chat."
	case StepItemDescription:
		msg.Body = "Send a short description in chat."
	case StepItemUnit:
		msg.Body = "Is this billed by the hour or as a fixed amount?"
		msg.Buttons = append(msg.Buttons, []gateway.Button{
			{ID: BtnUnitHours, Label: "Hourly"},
			{ID: BtnUnitAmount, Label: "Fixed amount"},
		})
	case StepItemRate:
		msg.Body = "Send the rate in EUR."
	case StepItemQuantity:
		msg.Body = "Send the number of hours."
	case StepReviewItem:
		item := d.current()
		msg.Title = "Review item"
		msg.Body = *item.Name + "\n" + *item.Description
		msg.Footer = paypal.ItemPriceLine(item)
		msg.Buttons = append(msg.Buttons, []gateway.Button{
			{ID: BtnSubmitItem, Label: "Add to invoice"},
		})
	}

	nav := []gateway.Button{}
	if d.Step != StepItemName {
		nav = append(nav, gateway.Button{ID: BtnGoBack, Label: "Go back"})
	}
	nav = append(nav, gateway.Button{ID: BtnCancelItem, Label: "Cancel item"})
	msg.Buttons = append(msg.Buttons, nav)
	return msg
}

// customerCopyMessage is the private copy of the final invoice DMed to the
// customer.
func customerCopyMessage(d *Draft) gateway.Message {
	msg := gateway.Message{
		Title: "Your invoice from PlugSmith",
		Body:  "Thanks for your order! You can pay via the link below or by scanning the QR code.",
	}
	if d.InvoiceNumber != "" {
		msg.Title += " (#" + d.InvoiceNumber + ")"
	}
	for _, item := range d.completeItems() {
		msg.Fields = append(msg.Fields, gateway.Field{
			Name:  *item.Name,
			Value: paypal.ItemPriceLine(item),
		})
	}
	msg.Footer = "Total: " + paypal.FormatTotal(d.completeItems())
	msg.Thumbnail = d.QR
	if d.Record != nil && d.Record.PayLink != "" {
		msg.Buttons = [][]gateway.Button{{
			{Label: "Pay with PayPal", URL: d.Record.PayLink},
		}}
	}
	return msg
}

// transactionsMessage renders a lookup result, newest first.
func transactionsMessage(email string, txns []paypal.Transaction) gateway.Message {
	if len(txns) == 0 {
		return gateway.Message{
			Body:  fmt.Sprintf("No transactions found for %s.", email),
			Error: true,
		}
	}

	msg := gateway.Message{Title: "Transactions for " + email}
	for _, txn := range txns {
		msg.Fields = append(msg.Fields, gateway.Field{
			Name: fmt.Sprintf("%s %s", txn.StatusMarker(), txn.ID),
			Value: fmt.Sprintf("%s, %s EUR, %s",
				txn.Date.Format("2006-01-02"), txn.Amount.StringFixed(2), txn.Origin()),
		})
	}
	return msg
}
