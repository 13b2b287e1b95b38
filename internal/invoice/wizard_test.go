package invoice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugsmith/orderdesk/internal/domain"
	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/gateway/gatewaytest"
	"github.com/plugsmith/orderdesk/internal/paypal"
)

type fakeBilling struct {
	mu         sync.Mutex
	failCreate bool
	created    []paypal.Draft
	txns       []paypal.Transaction
}

func (b *fakeBilling) NextInvoiceNumber(context.Context) (string, error) { return "0042", nil }

func (b *fakeBilling) CreateDraft(_ context.Context, draft paypal.Draft) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreate {
		return "", fmt.Errorf("provider unavailable")
	}
	b.created = append(b.created, draft)
	return "https://api.test/v2/invoicing/invoices/INV2-1", nil
}

func (b *fakeBilling) SendInvoice(context.Context, string) error { return nil }

func (b *fakeBilling) GenerateQRCode(context.Context, string) ([]byte, error) {
	return []byte("png"), nil
}

func (b *fakeBilling) GetInvoice(context.Context, string) (*domain.InvoiceRecord, error) {
	return &domain.InvoiceRecord{
		ID:        "INV2-1",
		Number:    "0042",
		Status:    "SENT",
		DueAmount: decimal.NewFromInt(38),
		PayLink:   "https://pay.test/INV2-1",
	}, nil
}

func (b *fakeBilling) LookupTransactions(context.Context, string, *time.Time) ([]paypal.Transaction, error) {
	return b.txns, nil
}

type fakeContacts struct {
	contacts map[string]*domain.BillingContact
}

func (c *fakeContacts) ContactByChatUser(_ context.Context, chatUserID string) (*domain.BillingContact, error) {
	contact, ok := c.contacts[chatUserID]
	if !ok {
		return nil, domain.ErrContactNotFound
	}
	return contact, nil
}

func newTestWizard(t *testing.T) (*Wizard, *fakeBilling, *gatewaytest.Fake) {
	t.Helper()
	fake := gatewaytest.New()
	fake.Staff["op-1"] = true
	billing := &fakeBilling{}
	contacts := &fakeContacts{contacts: map[string]*domain.BillingContact{
		"cust-1": {AccountID: 7, ChatUserID: "cust-1", FirstName: "Erin", LastName: "Vos", Email: "erin@example.com"},
	}}
	w := New(Deps{
		Gateway:  fake,
		Billing:  billing,
		Contacts: contacts,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return w, billing, fake
}

func startDraft(t *testing.T, w *Wizard) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.Start(ctx, "op-1", "billing"))
	require.NoError(t, w.HandleSelect(ctx, gateway.SelectMenuChoice{
		ID: SelCustomer, UserID: "op-1", ChannelID: "billing", Values: []string{"cust-1"},
	}))
}

func click(t *testing.T, w *Wizard, id string) {
	t.Helper()
	require.NoError(t, w.HandleButton(context.Background(), gateway.ButtonClick{
		ID: id, UserID: "op-1", ChannelID: "billing",
	}))
}

func chat(t *testing.T, w *Wizard, content string) {
	t.Helper()
	require.NoError(t, w.HandleChatMessage(context.Background(), gateway.ChatMessage{
		MessageID: "chat-msg", ChannelID: "billing", UserID: "op-1", Content: content,
	}))
}

func addHourlyItem(t *testing.T, w *Wizard, name string, rate, hours string) {
	t.Helper()
	click(t, w, BtnAddItem)
	chat(t, w, name)
	chat(t, w, name+" work")
	click(t, w, BtnUnitHours)
	chat(t, w, rate)
	chat(t, w, hours)
	click(t, w, BtnSubmitItem)
}

func TestStartRefusedForNonStaff(t *testing.T) {
	w, _, fake := newTestWizard(t)
	require.NoError(t, w.Start(context.Background(), "member-1", "billing"))
	assert.Nil(t, w.sessions.get("member-1"))

	last := fake.Last("billing")
	require.NotNil(t, last)
	assert.True(t, last.Msg.Error)
}

func TestCustomerSelectionBuildsSummary(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)

	draft := w.sessions.get("op-1")
	require.NotNil(t, draft)
	assert.Equal(t, StepAddItems, draft.Step)
	assert.Equal(t, "0042", draft.InvoiceNumber)
	require.NotNil(t, draft.Customer)

	summary := fake.Message(draft.SummaryMessageID)
	require.NotNil(t, summary)
	assert.Equal(t, "Invoice #0042", summary.Msg.Title)
	require.NotEmpty(t, summary.Msg.Fields)
	assert.Contains(t, summary.Msg.Fields[0].Value, "Erin Vos")

	// No complete items yet, so only the add-item action is offered.
	require.Len(t, summary.Msg.Buttons, 1)
	require.Len(t, summary.Msg.Buttons[0], 1)
	assert.Equal(t, BtnAddItem, summary.Msg.Buttons[0][0].ID)
}

func TestUnknownCustomerRejected(t *testing.T) {
	w, _, fake := newTestWizard(t)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx, "op-1", "billing"))
	require.NoError(t, w.HandleSelect(ctx, gateway.SelectMenuChoice{
		ID: SelCustomer, UserID: "op-1", ChannelID: "billing", Values: []string{"stranger"},
	}))

	draft := w.sessions.get("op-1")
	require.NotNil(t, draft)
	assert.Equal(t, StepCustomer, draft.Step)
	assert.Nil(t, draft.Customer)

	last := fake.Last("billing")
	require.NotNil(t, last)
	assert.True(t, last.Msg.Error)
}

func TestItemSubFlowAndSubmitInvoice(t *testing.T) {
	w, billing, fake := newTestWizard(t)
	startDraft(t, w)
	addHourlyItem(t, w, "Development", "14", "5")

	// The draft was sent and discarded.
	draft := w.sessions.get("op-1")
	require.NotNil(t, draft)
	assert.Equal(t, StepAddItems, draft.Step)
	require.Len(t, draft.Items, 1)
	assert.True(t, draft.Items[0].Complete())

	summaryID := draft.SummaryMessageID
	click(t, w, BtnSubmitInvoice)

	assert.Nil(t, w.sessions.get("op-1"))
	require.Len(t, billing.created, 1)
	assert.Equal(t, "0042", billing.created[0].InvoiceNumber)
	require.Len(t, billing.created[0].Items, 1)

	summary := fake.Message(summaryID)
	require.NotNil(t, summary)
	assert.Contains(t, summary.Msg.Footer, "Sent.")
	assert.Equal(t, []byte("png"), summary.Msg.Thumbnail)
	require.Len(t, summary.Msg.Buttons, 1)
	assert.Equal(t, "https://pay.test/INV2-1", summary.Msg.Buttons[0][0].URL)

	// The customer got exactly one DM copy.
	require.Len(t, fake.Directs("cust-1"), 1)

	// A share picker follows the sent invoice.
	last := fake.Last("billing")
	require.NotNil(t, last)
	assert.Equal(t, SelShareChannel, last.Msg.ChannelSelectID)
}

func TestGoBackInverseChain(t *testing.T) {
	w, _, _ := newTestWizard(t)
	startDraft(t, w)

	click(t, w, BtnAddItem)
	chat(t, w, "Development")
	chat(t, w, "Core work")
	click(t, w, BtnUnitHours)
	chat(t, w, "14")
	chat(t, w, "5")

	draft := w.sessions.get("op-1")
	require.Equal(t, StepReviewItem, draft.Step)
	item := draft.current()

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemQuantity, draft.Step)
	assert.Nil(t, item.Quantity)

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemRate, draft.Step)
	assert.Nil(t, item.Rate)

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemUnit, draft.Step)
	assert.Nil(t, item.Unit)

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemDescription, draft.Step)
	assert.Nil(t, item.Description)

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemName, draft.Step)
	assert.Nil(t, item.Name)
}

func TestGoBackFromReviewOnFixedAmountRemovesRate(t *testing.T) {
	w, _, _ := newTestWizard(t)
	startDraft(t, w)

	click(t, w, BtnAddItem)
	chat(t, w, "Setup fee")
	chat(t, w, "One time")
	click(t, w, BtnUnitAmount)
	chat(t, w, "6")

	draft := w.sessions.get("op-1")
	require.Equal(t, StepReviewItem, draft.Step)

	click(t, w, BtnGoBack)
	assert.Equal(t, StepItemRate, draft.Step)
	assert.Nil(t, draft.current().Rate)
}

func TestCancelItemConfirm(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)
	addHourlyItem(t, w, "Development", "14", "5")

	click(t, w, BtnAddItem)
	chat(t, w, "Extra thing")

	draft := w.sessions.get("op-1")
	require.Len(t, draft.Items, 2)
	promptID := draft.PromptMessageID

	click(t, w, BtnCancelItem)
	assert.True(t, draft.CancellingItem)

	// While confirming, normal input is suspended.
	chat(t, w, "this should be ignored")
	assert.Nil(t, draft.Items[1].Description)

	click(t, w, BtnCancelItemYes)
	assert.Len(t, draft.Items, 1)
	assert.Equal(t, StepAddItems, draft.Step)
	assert.False(t, draft.CancellingItem)
	assert.True(t, fake.Message(promptID).Deleted)
}

func TestCancelItemContinueResumesPrompt(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)

	click(t, w, BtnAddItem)
	chat(t, w, "Development")

	draft := w.sessions.get("op-1")
	click(t, w, BtnCancelItem)
	click(t, w, BtnCancelItemNo)

	assert.False(t, draft.CancellingItem)
	assert.Equal(t, StepItemDescription, draft.Step)
	require.Len(t, draft.Items, 1)

	prompt := fake.Message(draft.PromptMessageID)
	require.NotNil(t, prompt)
	assert.Contains(t, prompt.Msg.Body, "description")
}

func TestIncompleteItemBlocksSubmit(t *testing.T) {
	w, billing, fake := newTestWizard(t)
	startDraft(t, w)

	click(t, w, BtnAddItem)
	chat(t, w, "Development")

	draft := w.sessions.get("op-1")
	assert.False(t, draft.canSubmit())

	click(t, w, BtnSubmitInvoice)
	assert.Empty(t, billing.created)

	// The press explains itself instead of dying silently.
	last := fake.Last("billing")
	require.NotNil(t, last)
	assert.Contains(t, last.Msg.Body, "line item")
	assert.True(t, last.Msg.Error)
}

func TestInvalidRateRejected(t *testing.T) {
	w, _, _ := newTestWizard(t)
	startDraft(t, w)

	click(t, w, BtnAddItem)
	chat(t, w, "Development")
	chat(t, w, "Core work")
	click(t, w, BtnUnitHours)

	draft := w.sessions.get("op-1")
	chat(t, w, "not a number")
	assert.Equal(t, StepItemRate, draft.Step)
	assert.Nil(t, draft.current().Rate)

	chat(t, w, "-3")
	assert.Equal(t, StepItemRate, draft.Step)
	assert.Nil(t, draft.current().Rate)

	chat(t, w, "14")
	assert.Equal(t, StepItemQuantity, draft.Step)
}

func TestSubmissionFailureRecoversToAddItems(t *testing.T) {
	w, billing, _ := newTestWizard(t)
	startDraft(t, w)
	addHourlyItem(t, w, "Development", "14", "5")
	billing.failCreate = true

	click(t, w, BtnSubmitInvoice)

	draft := w.sessions.get("op-1")
	require.NotNil(t, draft)
	assert.Equal(t, StepAddItems, draft.Step)
	assert.False(t, draft.Sending)
	assert.False(t, draft.Sent)
	assert.True(t, draft.canSubmit())

	// Fixing the provider makes the same draft submittable again.
	billing.failCreate = false
	click(t, w, BtnSubmitInvoice)
	assert.Nil(t, w.sessions.get("op-1"))
	assert.Len(t, billing.created, 1)
}

func TestStartWithExistingDraftNeedsConfirmation(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)
	first := w.sessions.get("op-1")
	summaryID := first.SummaryMessageID

	// Second start only prompts.
	require.NoError(t, w.Start(context.Background(), "op-1", "billing"))
	assert.Same(t, first, w.sessions.get("op-1"))

	// Declining keeps the draft.
	click(t, w, BtnKeepDraft)
	assert.Same(t, first, w.sessions.get("op-1"))

	// Confirming replaces it and removes its rendered messages.
	require.NoError(t, w.Start(context.Background(), "op-1", "billing"))
	click(t, w, BtnDiscardDraft)

	draft := w.sessions.get("op-1")
	require.NotNil(t, draft)
	assert.NotSame(t, first, draft)
	assert.Equal(t, StepCustomer, draft.Step)
	assert.True(t, fake.Message(summaryID).Deleted)
}

func TestCancelKeywordDiscardsDraft(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)
	draft := w.sessions.get("op-1")
	summaryID := draft.SummaryMessageID

	chat(t, w, "CANCEL")

	assert.Nil(t, w.sessions.get("op-1"))
	assert.True(t, fake.Message(summaryID).Deleted)
}

func TestShareChannelSelectRepostsInvoice(t *testing.T) {
	w, _, fake := newTestWizard(t)
	startDraft(t, w)
	addHourlyItem(t, w, "Development", "14", "5")
	click(t, w, BtnSubmitInvoice)

	prompt := fake.Last("billing")
	require.NotNil(t, prompt)
	require.Equal(t, SelShareChannel, prompt.Msg.ChannelSelectID)

	require.NoError(t, w.HandleChannelSelect(context.Background(), gateway.ChannelSelectChoice{
		ID: SelShareChannel, UserID: "op-1", ChannelID: "billing",
		MessageID: prompt.MessageID, TargetChannelID: "announcements",
	}))

	shared := fake.Last("announcements")
	require.NotNil(t, shared)
	assert.Equal(t, "Invoice #0042", shared.Msg.Title)
	assert.Empty(t, shared.Msg.ChannelSelectID)
}

func TestLookupRendersTransactions(t *testing.T) {
	w, billing, fake := newTestWizard(t)
	billing.txns = []paypal.Transaction{
		{ID: "T3", Date: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("7.50"), CustomField: "resource_purchase_9", Status: "D"},
		{ID: "T1", Date: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(10), CustomField: "storefront_purchase_1", Status: "S"},
	}

	require.NoError(t, w.HandleLookup(context.Background(), gateway.Command{
		Name: "lookup-transaction", UserID: "op-1", ChannelID: "billing",
		Args: map[string]string{"email": "buyer@example.com"},
	}))

	result := fake.Last("billing")
	require.NotNil(t, result)
	require.Len(t, result.Msg.Fields, 2)
	assert.Contains(t, result.Msg.Fields[0].Name, "T3")
	assert.Contains(t, result.Msg.Fields[0].Value, "Resource market")
	assert.Contains(t, result.Msg.Fields[1].Value, "Storefront")
}

func TestLookupRefusedForNonStaff(t *testing.T) {
	w, _, fake := newTestWizard(t)

	require.NoError(t, w.HandleLookup(context.Background(), gateway.Command{
		Name: "lookup-transaction", UserID: "member-1", ChannelID: "billing",
		Args: map[string]string{"email": "buyer@example.com"},
	}))

	last := fake.Last("billing")
	require.NotNil(t, last)
	assert.True(t, last.Msg.Error)
}
