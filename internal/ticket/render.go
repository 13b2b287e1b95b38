package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/rates"
)

func welcomeMessage(formURL string) gateway.Message {
	return gateway.Message{
		Title: "Welcome to your order",
		Body: "Thanks for your interest in a custom plugin! Start by picking the features " +
			"and budget that fit your project on our pricing form. Once you submit the form " +
			"we will continue here with a few short questions.",
		Buttons: [][]gateway.Button{{
			{Label: "Open pricing form", URL: formURL},
		}},
	}
}

func promptMessage(status domain.SetupStatus) gateway.Message {
	switch status {
	case domain.SetupEnterName:
		return gateway.Message{
			Title: "Project name",
			Body:  fmt.Sprintf("What should we call your project? Reply with a name of at most %d characters.", config.MaxProjectNameLen),
		}
	case domain.SetupEnterDeadline:
		return gateway.Message{
			Title: "Deadline",
			Body:  "When do you need the plugin by? Reply here, or use the button if there is no deadline.",
			Buttons: [][]gateway.Button{{
				{ID: BtnNoDeadline, Label: "I have no deadline"},
			}},
		}
	case domain.SetupEnterDescription:
		return gateway.Message{
			Title: "Description",
			Body:  "Describe what the plugin should do. The more detail the better.",
		}
	}
	return gateway.Message{}
}

// quoteMessage renders the priced selection the external form submitted, one
// row per rate category.
func quoteMessage(sel domain.PricingSelection) gateway.Message {
	quote := rates.Compute(sel)

	fields := make([]gateway.Field, 0, len(quote.Lines)+1)
	for _, line := range quote.Lines {
		fields = append(fields, gateway.Field{
			Name:  fmt.Sprintf("%s (%s)", line.Category, rates.TierLabels[line.Tier]),
			Value: quoteLineValue(line),
		})
	}
	if quote.Published {
		fields = append(fields, gateway.Field{
			Name:  "Publication discount",
			Value: quoteAmount(rates.PublicationDiscount.Amount),
		})
	}

	return gateway.Message{
		Title:  "Your selection",
		Fields: fields,
		Footer: fmt.Sprintf("Development: %s per hour. Features: %s.",
			quoteAmount(quote.Hourly), quoteAmount(quote.FlatTotal)),
	}
}

func quoteLineValue(line rates.Line) string {
	if line.Included {
		return "included"
	}
	if line.PerHour {
		return quoteAmount(line.Rate.Amount) + " per hour"
	}
	return quoteAmount(line.Rate.Amount)
}

func quoteAmount(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + config.Currency
}

// summaryMessage renders the submitted ticket from its last-persisted values,
// with placeholders for anything never filled in.
func summaryMessage(ticket *domain.Ticket) gateway.Message {
	return gateway.Message{
		Title:   fmt.Sprintf("Order #%d submitted", ticket.ID),
		Body:    "Thanks! Our team will review your request and get back to you here.",
		Mention: gateway.MentionStaff,
		Fields: []gateway.Field{
			{Name: "Project name", Value: orPlaceholder(ticket.Name, config.PlaceholderNoName)},
			{Name: "Deadline", Value: orPlaceholder(ticket.Deadline, config.PlaceholderNoDeadline)},
			{Name: "Description", Value: orPlaceholder(ticket.Description, config.PlaceholderNoDescription)},
		},
	}
}

func orPlaceholder(value *string, placeholder string) string {
	if value == nil || *value == "" {
		return placeholder
	}
	return *value
}
