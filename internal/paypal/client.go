// Package paypal is the billing-provider client: invoice drafting and
// sending, QR codes, invoice lookups and transaction history.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
)

type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client

	invoicer invoicerBlock
	termsURL string

	tokens *tokenSource
}

func New(cfg *config.Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.PayPalURL, "/"),
		clientID:   cfg.PayPalClientID,
		secret:     cfg.PayPalSecret,
		httpClient: &http.Client{Timeout: config.BillingRequestTimeout},
		termsURL:   cfg.TermsURL,
		invoicer: invoicerBlock{
			BusinessName: cfg.BusinessName,
			Name: nameBlock{
				GivenName: cfg.BusinessGiven,
				Surname:   cfg.BusinessSurname,
			},
			EmailAddress: cfg.BusinessEmail,
			Website:      cfg.WebsiteURL,
		},
	}
	c.tokens = newTokenSource(c)
	return c
}

// StartTokenRefresher fetches an access token and keeps it fresh on a timer
// derived from the token's reported expiry, until ctx is done.
func (c *Client) StartTokenRefresher(ctx context.Context) {
	c.tokens.start(ctx)
}

type invoicerBlock struct {
	BusinessName string    `json:"business_name"`
	Name         nameBlock `json:"name"`
	EmailAddress string    `json:"email_address"`
	Website      string    `json:"website"`
}

type nameBlock struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
}

// NextInvoiceNumber asks the provider for the next sequential invoice number.
func (c *Client) NextInvoiceNumber(ctx context.Context) (string, error) {
	var resp struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/invoicing/generate-next-invoice-number", nil, &resp); err != nil {
		return "", fmt.Errorf("generate invoice number: %w", err)
	}
	return resp.InvoiceNumber, nil
}

// Draft is the input for CreateDraft.
type Draft struct {
	InvoiceNumber string
	Customer      *domain.BillingContact
	Items         []*domain.LineItem
}

type draftRequest struct {
	Detail            draftDetail        `json:"detail"`
	Invoicer          invoicerBlock      `json:"invoicer"`
	PrimaryRecipients []recipientBlock   `json:"primary_recipients"`
	Items             []itemBlock        `json:"items"`
	Configuration     configurationBlock `json:"configuration"`
}

type draftDetail struct {
	InvoiceNumber string `json:"invoice_number"`
	CurrencyCode  string `json:"currency_code"`
	Term          string `json:"term"`
}

type recipientBlock struct {
	BillingInfo billingInfoBlock `json:"billing_info"`
}

type billingInfoBlock struct {
	Name         nameBlock `json:"name"`
	EmailAddress string    `json:"email_address"`
	BusinessName string    `json:"business_name,omitempty"`
}

type itemBlock struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	UnitOfMeasure string      `json:"unit_of_measure"`
	UnitAmount    amountBlock `json:"unit_amount"`
	Quantity      string      `json:"quantity"`
}

type amountBlock struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type configurationBlock struct {
	AllowTip       bool                `json:"allow_tip"`
	PartialPayment partialPaymentBlock `json:"partial_payment"`
	TaxInclusive   bool                `json:"tax_inclusive"`
}

type partialPaymentBlock struct {
	AllowPartialPayment bool        `json:"allow_partial_payment"`
	MinimumAmountDue    amountBlock `json:"allow_partial_payment_amount"`
}

// CreateDraft creates a draft invoice for all items and returns the
// provider's link to it. Partial payment is allowed down to half the total.
func (c *Client) CreateDraft(ctx context.Context, draft Draft) (string, error) {
	req := draftRequest{
		Detail: draftDetail{
			InvoiceNumber: draft.InvoiceNumber,
			CurrencyCode:  config.Currency,
			Term:          c.termsURL,
		},
		Invoicer: c.invoicer,
		PrimaryRecipients: []recipientBlock{{
			BillingInfo: billingInfoBlock{
				Name: nameBlock{
					GivenName: draft.Customer.FirstName,
					Surname:   draft.Customer.LastName,
				},
				EmailAddress: draft.Customer.Email,
			},
		}},
		Configuration: configurationBlock{
			AllowTip: true,
			PartialPayment: partialPaymentBlock{
				AllowPartialPayment: true,
			},
		},
	}
	if draft.Customer.Business != nil {
		req.PrimaryRecipients[0].BillingInfo.BusinessName = *draft.Customer.Business
	}

	total := decimal.Zero
	for _, item := range draft.Items {
		quantity := decimal.NewFromInt(1)
		if *item.Unit == domain.UnitHours {
			quantity = *item.Quantity
		}
		req.Items = append(req.Items, itemBlock{
			Name:          *item.Name,
			Description:   *item.Description,
			UnitOfMeasure: string(*item.Unit),
			UnitAmount: amountBlock{
				CurrencyCode: config.Currency,
				Value:        item.Rate.StringFixed(2),
			},
			Quantity: quantity.String(),
		})
		total = total.Add(quantity.Mul(*item.Rate))
	}

	req.Configuration.PartialPayment.MinimumAmountDue = amountBlock{
		CurrencyCode: config.Currency,
		Value:        total.Div(decimal.NewFromInt(2)).Round(2).StringFixed(2),
	}

	var resp struct {
		Href string `json:"href"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/invoicing/invoices", req, &resp); err != nil {
		return "", fmt.Errorf("create draft invoice: %w", err)
	}
	return resp.Href, nil
}

// SendInvoice asks the provider to deliver a drafted invoice to its
// recipient.
func (c *Client) SendInvoice(ctx context.Context, href string) error {
	body := map[string]bool{"send_to_invoicer": true}
	if err := c.do(ctx, http.MethodPost, href+"/send", body, nil); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

// GenerateQRCode fetches the pay-me QR code for an invoice as PNG bytes.
func (c *Client) GenerateQRCode(ctx context.Context, href string) ([]byte, error) {
	raw, err := c.doRaw(ctx, http.MethodPost, href+"/generate-qr-code", map[string]string{"action": "pay"})
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}
	png, err := decodeQRPayload(raw)
	if err != nil {
		return nil, fmt.Errorf("decode qr code: %w", err)
	}
	return png, nil
}

// GetInvoice fetches the canonical invoice record by provider link or id.
func (c *Client) GetInvoice(ctx context.Context, hrefOrID string) (*domain.InvoiceRecord, error) {
	url := hrefOrID
	if !strings.HasPrefix(hrefOrID, "http") {
		url = c.baseURL + "/v2/invoicing/invoices/" + hrefOrID
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Detail struct {
			InvoiceNumber string `json:"invoice_number"`
			Metadata      struct {
				RecipientViewURL string `json:"recipient_view_url"`
			} `json:"metadata"`
		} `json:"detail"`
		DueAmount struct {
			Value string `json:"value"`
		} `json:"due_amount"`
	}
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	due, err := decimal.NewFromString(resp.DueAmount.Value)
	if err != nil {
		due = decimal.Zero
	}
	return &domain.InvoiceRecord{
		ID:        resp.ID,
		Number:    resp.Detail.InvoiceNumber,
		Status:    domain.InvoiceStatus(resp.Status),
		DueAmount: due,
		PayLink:   resp.Detail.Metadata.RecipientViewURL,
	}, nil
}

// do performs an authenticated JSON request and decodes the response into
// out when non-nil.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	raw, err := c.doRaw(ctx, method, url, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.tokens.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("billing api %s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
