package paypal

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/domain"
)

// FormatAmount renders a money value with two decimals, e.g. "14.50".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatTotal renders the running total of a set of items, with incomplete
// items counting what they have so far. A zero total reads "FREE".
func FormatTotal(items []*domain.LineItem) string {
	total := domain.ItemsTotal(items)
	if total.IsZero() {
		return "FREE"
	}
	return FormatAmount(total) + " " + currencyLabel
}

// ItemPriceLine renders the price portion of one line item for summaries.
func ItemPriceLine(item *domain.LineItem) string {
	if item.Unit != nil && *item.Unit == domain.UnitHours && item.Quantity != nil && item.Rate != nil {
		return fmt.Sprintf("%s hours x %s %s", item.Quantity.String(), FormatAmount(*item.Rate), currencyLabel)
	}
	if item.Rate != nil {
		return FormatAmount(*item.Rate) + " " + currencyLabel
	}
	return ""
}

const currencyLabel = "EUR"

// decodeQRPayload extracts the PNG bytes from the provider's QR response.
// The endpoint returns a small multi-line document with the base64 image on
// the fifth line; a bare base64 body is accepted too.
func decodeQRPayload(raw []byte) ([]byte, error) {
	text := strings.TrimSpace(string(raw))
	lines := strings.Split(text, "\n")

	payload := text
	if len(lines) >= 5 {
		payload = strings.TrimSpace(lines[4])
	}

	png, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return png, nil
}
