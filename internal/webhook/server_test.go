package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugsmith/orderdesk/internal/domain"
)

type recordingSink struct {
	pricingID string
	ticketID  int64
	sel       domain.PricingSelection
	calls     int
}

func (r *recordingSink) HandlePricingWebhook(_ context.Context, pricingID string, ticketID int64, sel domain.PricingSelection) error {
	r.pricingID = pricingID
	r.ticketID = ticketID
	r.sel = sel
	r.calls++
	return nil
}

func post(t *testing.T, handler http.Handler, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Auth", auth)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestPricingUpdateForwarded(t *testing.T) {
	sink := &recordingSink{}
	server := NewServer("sekrit", sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp := post(t, server.Handler(), "/ticketPricingUpdate/abc-123/42", "sekrit",
		`{"type":"premium","testing":"premium","messages":"budget","commands":"pro","versions":"budget","allow_publication":true,"ticket_id":42}`)

	assert.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, sink.calls)
	assert.Equal(t, "abc-123", sink.pricingID)
	assert.Equal(t, int64(42), sink.ticketID)
	assert.Equal(t, domain.TierPremium, sink.sel.Type)
	assert.True(t, sink.sel.AllowPublication)
}

func TestBadSecretRejected(t *testing.T) {
	sink := &recordingSink{}
	server := NewServer("sekrit", sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, auth := range []string{"", "wrong", "sekrit "} {
		resp := post(t, server.Handler(), "/ticketPricingUpdate/abc-123/42", auth, `{}`)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}
	assert.Zero(t, sink.calls)
}

func TestMalformedPayloadStillAccepted(t *testing.T) {
	sink := &recordingSink{}
	server := NewServer("sekrit", sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp := post(t, server.Handler(), "/ticketPricingUpdate/abc-123/notanumber", "sekrit", `{}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, sink.calls)

	resp = post(t, server.Handler(), "/ticketPricingUpdate/abc-123/42", "sekrit", `{not json`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, sink.calls)
}
