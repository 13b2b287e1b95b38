package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/config"
)

// Transaction is one row of the provider's reporting API, reduced to the
// fields the lookup command renders.
type Transaction struct {
	ID          string
	Date        time.Time
	Amount      decimal.Decimal
	PayerEmail  string
	CustomField string
	Status      string
}

// Origin classifies where a transaction came from, based on the custom field
// the storefront attaches to each payment.
func (t Transaction) Origin() string {
	switch {
	case strings.HasPrefix(t.CustomField, "storefront_purchase"):
		return "Storefront"
	case strings.HasPrefix(t.CustomField, "resource_purchase"):
		return "Resource market"
	case t.CustomField != "":
		return "Third-party market"
	default:
		return "Unknown"
	}
}

// StatusMarker maps the provider's one-letter transaction status to a
// readable marker.
func (t Transaction) StatusMarker() string {
	switch t.Status {
	case "S":
		return "✅"
	case "V":
		return "↩️"
	case "P":
		return "⏱️"
	case "D":
		return "❌"
	}
	return t.Status
}

// LookupTransactions fetches the provider transaction history for one payer.
// With a date it searches a ±15-day window around it (clamped to now);
// without, the last 31 days. Results are newest first.
func (c *Client) LookupTransactions(ctx context.Context, email string, around *time.Time) ([]Transaction, error) {
	now := time.Now()
	var start, end time.Time
	if around != nil {
		start = around.Add(-config.LookupWindowAround)
		end = around.Add(config.LookupWindowAround)
		if end.After(now) {
			end = now
		}
	} else {
		start = now.Add(-config.LookupWindowDefault)
		end = now
	}

	query := url.Values{}
	query.Set("fields", "all")
	query.Set("start_date", start.UTC().Format(time.RFC3339))
	query.Set("end_date", end.UTC().Format(time.RFC3339))

	var resp struct {
		TransactionDetails []struct {
			TransactionInfo struct {
				TransactionID     string `json:"transaction_id"`
				TransactionStatus string `json:"transaction_status"`
				CustomField       string `json:"custom_field"`
				InitiationDate    string `json:"transaction_initiation_date"`
				Amount            struct {
					Value string `json:"value"`
				} `json:"transaction_amount"`
			} `json:"transaction_info"`
			PayerInfo struct {
				EmailAddress string `json:"email_address"`
			} `json:"payer_info"`
		} `json:"transaction_details"`
	}

	endpoint := c.baseURL + "/v1/reporting/transactions?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("lookup transactions: %w", err)
	}

	var out []Transaction
	for _, detail := range resp.TransactionDetails {
		if detail.PayerInfo.EmailAddress != email {
			continue
		}

		amount, err := decimal.NewFromString(detail.TransactionInfo.Amount.Value)
		if err != nil {
			amount = decimal.Zero
		}
		date, _ := time.Parse(time.RFC3339, detail.TransactionInfo.InitiationDate)

		out = append(out, Transaction{
			ID:          detail.TransactionInfo.TransactionID,
			Date:        date,
			Amount:      amount,
			PayerEmail:  detail.PayerInfo.EmailAddress,
			CustomField: detail.TransactionInfo.CustomField,
			Status:      detail.TransactionInfo.TransactionStatus,
		})
	}

	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
