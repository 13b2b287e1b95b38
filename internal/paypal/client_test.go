package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
)

// setupTestServer mimics the billing provider API.
func setupTestServer(t *testing.T, draftCapture *draftRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600}`)
			return
		}

		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid token"}`)
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/invoicing/generate-next-invoice-number":
			fmt.Fprint(w, `{"invoice_number":"0042"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v2/invoicing/invoices":
			if draftCapture != nil {
				err := json.NewDecoder(r.Body).Decode(draftCapture)
				require.NoError(t, err)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"href":"http://%s/v2/invoicing/invoices/INV2-TEST"}`, r.Host)
		case r.Method == http.MethodPost && r.URL.Path == "/v2/invoicing/invoices/INV2-TEST/send":
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodPost && r.URL.Path == "/v2/invoicing/invoices/INV2-TEST/generate-qr-code":
			png := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
			fmt.Fprintf(w, "qr\ncode\nresponse\nheader\n%s\n", png)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/invoicing/invoices/INV2-TEST":
			fmt.Fprint(w, `{"id":"INV2-TEST","status":"SENT",
				"detail":{"invoice_number":"0042","metadata":{"recipient_view_url":"https://pay.example/INV2-TEST"}},
				"due_amount":{"value":"38.00"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/reporting/transactions":
			fmt.Fprint(w, `{"transaction_details":[
				{"transaction_info":{"transaction_id":"T1","transaction_status":"S","custom_field":"storefront_purchase_1","transaction_amount":{"value":"10.00"},"transaction_initiation_date":"2024-03-01T10:00:00Z"},"payer_info":{"email_address":"buyer@example.com"}},
				{"transaction_info":{"transaction_id":"T2","transaction_status":"P","custom_field":"","transaction_amount":{"value":"5.00"},"transaction_initiation_date":"2024-03-02T10:00:00Z"},"payer_info":{"email_address":"other@example.com"}},
				{"transaction_info":{"transaction_id":"T3","transaction_status":"D","custom_field":"resource_purchase_9","transaction_amount":{"value":"7.50"},"transaction_initiation_date":"2024-03-03T10:00:00Z"},"payer_info":{"email_address":"buyer@example.com"}}
			]}`)
		default:
			t.Logf("unhandled request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(t *testing.T, serverURL string) *Client {
	c := New(&config.Config{
		PayPalClientID: "client-id",
		PayPalSecret:   "client-secret",
		PayPalURL:      serverURL,
		BusinessName:   "PlugSmith",
		BusinessEmail:  "billing@plugsmith.dev",
		TermsURL:       "https://www.plugsmith.dev/terms-of-service",
	})

	_, err := c.tokens.refresh(context.Background())
	require.NoError(t, err)
	return c
}

func TestTokenRefresh(t *testing.T) {
	server := setupTestServer(t, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Equal(t, "test-token", c.tokens.token())

	number, err := c.NextInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0042", number)
}

func TestCreateDraftHalvesPartialPayment(t *testing.T) {
	var captured draftRequest
	server := setupTestServer(t, &captured)
	defer server.Close()

	c := newTestClient(t, server.URL)

	hours := domain.UnitHours
	amount := domain.UnitAmount
	name1, desc1 := "Development", "Core plugin work"
	name2, desc2 := "Setup fee", "Environment setup"
	rate1 := decimal.NewFromInt(14)
	qty1 := decimal.NewFromInt(5)
	rate2 := decimal.NewFromInt(6)

	href, err := c.CreateDraft(context.Background(), Draft{
		InvoiceNumber: "0042",
		Customer: &domain.BillingContact{
			FirstName: "Erin", LastName: "Vos", Email: "erin@example.com",
		},
		Items: []*domain.LineItem{
			{Name: &name1, Description: &desc1, Unit: &hours, Rate: &rate1, Quantity: &qty1},
			{Name: &name2, Description: &desc2, Unit: &amount, Rate: &rate2},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, href, "/v2/invoicing/invoices/INV2-TEST")

	// total = 14*5 + 6 = 76, half = 38.00
	assert.Equal(t, "38.00", captured.Configuration.PartialPayment.MinimumAmountDue.Value)
	assert.True(t, captured.Configuration.PartialPayment.AllowPartialPayment)
	require.Len(t, captured.Items, 2)
	assert.Equal(t, "HOURS", captured.Items[0].UnitOfMeasure)
	assert.Equal(t, "5", captured.Items[0].Quantity)
	assert.Equal(t, "1", captured.Items[1].Quantity)
	assert.Equal(t, "0042", captured.Detail.InvoiceNumber)
	assert.Equal(t, "EUR", captured.Detail.CurrencyCode)
}

func TestGenerateQRCode(t *testing.T) {
	server := setupTestServer(t, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	png, err := c.GenerateQRCode(context.Background(), server.URL+"/v2/invoicing/invoices/INV2-TEST")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), png)
}

func TestGetInvoice(t *testing.T) {
	server := setupTestServer(t, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	record, err := c.GetInvoice(context.Background(), server.URL+"/v2/invoicing/invoices/INV2-TEST")
	require.NoError(t, err)

	assert.Equal(t, "INV2-TEST", record.ID)
	assert.Equal(t, "0042", record.Number)
	assert.False(t, record.FullyPaid())
	assert.True(t, decimal.NewFromInt(38).Equal(record.DueAmount))
	assert.Equal(t, "https://pay.example/INV2-TEST", record.PayLink)
}

func TestLookupTransactionsFiltersAndOrders(t *testing.T) {
	server := setupTestServer(t, nil)
	defer server.Close()

	c := newTestClient(t, server.URL)
	txns, err := c.LookupTransactions(context.Background(), "buyer@example.com", nil)
	require.NoError(t, err)

	require.Len(t, txns, 2)
	// newest first
	assert.Equal(t, "T3", txns[0].ID)
	assert.Equal(t, "T1", txns[1].ID)
	assert.Equal(t, "Resource market", txns[0].Origin())
	assert.Equal(t, "Storefront", txns[1].Origin())
	assert.Equal(t, "❌", txns[0].StatusMarker())
	assert.Equal(t, "✅", txns[1].StatusMarker())
}

func TestFormatTotal(t *testing.T) {
	assert.Equal(t, "FREE", FormatTotal(nil))

	rate := decimal.NewFromInt(12)
	qty := decimal.RequireFromString("1.5")
	hours := domain.UnitHours
	items := []*domain.LineItem{{Unit: &hours, Rate: &rate, Quantity: &qty}}
	assert.Equal(t, "18.00 EUR", FormatTotal(items))
}
