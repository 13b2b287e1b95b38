// Package invoice drives an operator through building and sending an
// invoice: pick a customer, add line items one field at a time, submit to the
// billing provider, and follow up with the payment artifacts.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/paypal"
)

// Interaction ids routed back to the wizard by the adapter.
const (
	BtnAddItem       = "invoice:add-item"
	BtnSubmitInvoice = "invoice:submit"
	BtnSubmitItem    = "invoice:submit-item"
	BtnGoBack        = "invoice:go-back"
	BtnCancelItem    = "invoice:cancel-item"
	BtnCancelItemYes = "invoice:cancel-item-confirm"
	BtnCancelItemNo  = "invoice:cancel-item-continue"
	BtnUnitHours     = "invoice:unit-hours"
	BtnUnitAmount    = "invoice:unit-amount"
	BtnDiscardDraft  = "invoice:discard-draft"
	BtnKeepDraft     = "invoice:keep-draft"
	SelCustomer      = "invoice:customer"
	SelShareChannel  = "invoice:share-channel"
)

// Billing is the slice of the provider client the wizard needs.
type Billing interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
	CreateDraft(ctx context.Context, draft paypal.Draft) (string, error)
	SendInvoice(ctx context.Context, href string) error
	GenerateQRCode(ctx context.Context, href string) ([]byte, error)
	GetInvoice(ctx context.Context, hrefOrID string) (*domain.InvoiceRecord, error)
	LookupTransactions(ctx context.Context, email string, around *time.Time) ([]paypal.Transaction, error)
}

// Contacts resolves chat users to verified billing contacts.
type Contacts interface {
	ContactByChatUser(ctx context.Context, chatUserID string) (*domain.BillingContact, error)
}

type Deps struct {
	Gateway  gateway.Gateway
	Billing  Billing
	Contacts Contacts
	Logger   *slog.Logger
}

// sharedInvoice is one sent invoice retained for the share-to-channel
// follow-up. Entries expire a fixed time after sending.
type sharedInvoice struct {
	invoiceID       string
	content         gateway.Message
	promptChannelID string
	promptMessageID string
}

// pendingStart remembers where a new invoice should begin while the operator
// decides whether to discard the current draft.
type pendingStart struct {
	channelID string
	promptID  string
}

// Wizard handles every invoice-scoped event. One draft exists per operator;
// transitions are serialized.
type Wizard struct {
	gw       gateway.Gateway
	billing  Billing
	contacts Contacts
	log      *slog.Logger

	sessions *sessions

	mu      sync.Mutex
	shared  map[string]*sharedInvoice // invoice id -> entry
	pending map[string]*pendingStart  // operator id -> pending new draft
}

func New(deps Deps) *Wizard {
	return &Wizard{
		gw:       deps.Gateway,
		billing:  deps.Billing,
		contacts: deps.Contacts,
		log:      deps.Logger,
		sessions: newSessions(),
		shared:   map[string]*sharedInvoice{},
		pending:  map[string]*pendingStart{},
	}
}

// StartEvictor starts the background sweep of abandoned drafts.
func (w *Wizard) StartEvictor(ctx context.Context) {
	w.sessions.startEvictor(ctx)
}

// Start begins a new invoice for a staff operator. An unfinished draft must
// be discarded explicitly first.
func (w *Wizard) Start(ctx context.Context, operatorID, channelID string) error {
	if !w.gw.IsStaff(operatorID) {
		w.notify(ctx, channelID, "Only invoicing staff can create invoices.", config.ErrorMessageTTL, true)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if draft := w.sessions.get(operatorID); draft != nil {
		promptID, err := w.gw.SendMessage(ctx, channelID, discardPromptMessage())
		if err != nil {
			return fmt.Errorf("send discard prompt: %w", err)
		}
		w.pending[operatorID] = &pendingStart{channelID: channelID, promptID: promptID}
		return nil
	}

	return w.begin(ctx, operatorID, channelID)
}

// begin assumes w.mu is held and no draft exists for the operator.
func (w *Wizard) begin(ctx context.Context, operatorID, channelID string) error {
	draft := &Draft{OperatorID: operatorID, ChannelID: channelID, Step: StepCustomer}

	promptID, err := w.gw.SendMessage(ctx, channelID, customerPromptMessage())
	if err != nil {
		w.fail(ctx, channelID, err, "send customer prompt")
		return err
	}
	draft.PromptMessageID = promptID
	w.sessions.put(draft)
	return nil
}

// HandleButton dispatches a button press against the operator's draft.
func (w *Wizard) HandleButton(ctx context.Context, ev gateway.ButtonClick) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev.ID {
	case BtnDiscardDraft:
		return w.confirmDiscard(ctx, ev)
	case BtnKeepDraft:
		if pending, ok := w.pending[ev.UserID]; ok {
			w.gw.TryDelete(ctx, pending.channelID, pending.promptID)
			delete(w.pending, ev.UserID)
		}
		return nil
	}

	draft := w.sessions.get(ev.UserID)
	if draft == nil || draft.ChannelID != ev.ChannelID {
		return nil
	}

	if draft.CancellingItem {
		switch ev.ID {
		case BtnCancelItemYes:
			draft.Items = draft.Items[:len(draft.Items)-1]
			draft.CancellingItem = false
			draft.Step = StepAddItems
			if draft.PromptMessageID != "" {
				w.gw.TryDelete(ctx, draft.ChannelID, draft.PromptMessageID)
				draft.PromptMessageID = ""
			}
			return w.renderSummary(ctx, draft)
		case BtnCancelItemNo:
			draft.CancellingItem = false
			return w.renderItemPrompt(ctx, draft)
		}
		return nil
	}

	switch ev.ID {
	case BtnAddItem:
		if draft.Step != StepAddItems || draft.Sending || draft.Sent {
			return nil
		}
		draft.Items = append(draft.Items, &domain.LineItem{})
		draft.Step = StepItemName
		draft.PromptMessageID = ""
		return w.renderItemPrompt(ctx, draft)

	case BtnUnitHours, BtnUnitAmount:
		if draft.Step != StepItemUnit {
			return nil
		}
		unit := domain.UnitAmount
		if ev.ID == BtnUnitHours {
			unit = domain.UnitHours
		}
		draft.current().Unit = &unit
		draft.Step = StepItemRate
		return w.renderItemPrompt(ctx, draft)

	case BtnGoBack:
		return w.goBack(ctx, draft)

	case BtnCancelItem:
		if draft.current() == nil || draft.Step == StepAddItems {
			return nil
		}
		draft.CancellingItem = true
		return w.renderItemPrompt(ctx, draft)

	case BtnSubmitItem:
		if draft.Step != StepReviewItem || !draft.current().Complete() {
			return nil
		}
		draft.Step = StepAddItems
		if draft.PromptMessageID != "" {
			w.gw.TryDelete(ctx, draft.ChannelID, draft.PromptMessageID)
			draft.PromptMessageID = ""
		}
		return w.renderSummary(ctx, draft)

	case BtnSubmitInvoice:
		if err := draft.submitError(); err != nil {
			// A double press while sending stays silent, anything else gets
			// an explanation.
			if errors.Is(err, domain.ErrItemIncomplete) {
				w.notify(ctx, draft.ChannelID, "Finish at least one line item before submitting.", config.ErrorMessageTTL, true)
			}
			return nil
		}
		return w.submit(ctx, draft)
	}

	return nil
}

// confirmDiscard drops the current draft and its rendered messages, then
// starts the new invoice the operator asked for.
func (w *Wizard) confirmDiscard(ctx context.Context, ev gateway.ButtonClick) error {
	pending, ok := w.pending[ev.UserID]
	if !ok {
		return nil
	}
	delete(w.pending, ev.UserID)
	w.gw.TryDelete(ctx, pending.channelID, pending.promptID)

	if draft := w.sessions.get(ev.UserID); draft != nil {
		w.deleteDraftMessages(ctx, draft)
		w.sessions.drop(ev.UserID)
	}
	return w.begin(ctx, ev.UserID, pending.channelID)
}

// goBack removes the most recently filled field on the in-progress item and
// returns to the step that asks for it. The mapping is the exact inverse of
// the forward order.
func (w *Wizard) goBack(ctx context.Context, draft *Draft) error {
	item := draft.current()
	if item == nil {
		return nil
	}

	switch draft.Step {
	case StepReviewItem:
		if item.Unit != nil && *item.Unit == domain.UnitHours {
			item.Quantity = nil
			draft.Step = StepItemQuantity
		} else {
			item.Rate = nil
			draft.Step = StepItemRate
		}
	case StepItemQuantity:
		item.Rate = nil
		draft.Step = StepItemRate
	case StepItemRate:
		item.Unit = nil
		draft.Step = StepItemUnit
	case StepItemUnit:
		item.Description = nil
		draft.Step = StepItemDescription
	case StepItemDescription:
		item.Name = nil
		draft.Step = StepItemName
	default:
		return nil
	}
	return w.renderItemPrompt(ctx, draft)
}

// HandleSelect resolves the customer pick.
func (w *Wizard) HandleSelect(ctx context.Context, ev gateway.SelectMenuChoice) error {
	if ev.ID != SelCustomer || len(ev.Values) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	draft := w.sessions.get(ev.UserID)
	if draft == nil || draft.ChannelID != ev.ChannelID || draft.Step != StepCustomer {
		return nil
	}

	contact, err := w.contacts.ContactByChatUser(ctx, ev.Values[0])
	if err != nil {
		if errors.Is(err, domain.ErrContactNotFound) {
			w.notify(ctx, ev.ChannelID, "That user has no verified billing account.", config.NotFoundMessageTTL, true)
			return nil
		}
		w.fail(ctx, ev.ChannelID, err, "resolve billing contact")
		return err
	}
	draft.Customer = contact

	// Best effort; retried during submission if it fails here.
	if number, err := w.billing.NextInvoiceNumber(ctx); err != nil {
		w.log.Warn("reserve invoice number", "error", err)
	} else {
		draft.InvoiceNumber = number
	}

	draft.Step = StepAddItems
	if draft.PromptMessageID != "" {
		w.gw.TryDelete(ctx, draft.ChannelID, draft.PromptMessageID)
		draft.PromptMessageID = ""
	}
	return w.renderSummary(ctx, draft)
}

// HandleChannelSelect re-posts a sent invoice into the picked channel.
func (w *Wizard) HandleChannelSelect(ctx context.Context, ev gateway.ChannelSelectChoice) error {
	if ev.ID != SelShareChannel {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, entry := range w.shared {
		if entry.promptMessageID == ev.MessageID {
			content := entry.content
			content.ChannelSelectID = ""
			if _, err := w.gw.SendMessage(ctx, ev.TargetChannelID, content); err != nil {
				w.log.Warn("share invoice", "invoice_id", entry.invoiceID, "error", err)
			}
			return nil
		}
	}
	return nil
}

// HandleChatMessage feeds free-text input into the item sub-flow. The
// "cancel" keyword discards the whole draft.
func (w *Wizard) HandleChatMessage(ctx context.Context, ev gateway.ChatMessage) error {
	if ev.FromBot || ev.FromWebhook {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	draft := w.sessions.get(ev.UserID)
	if draft == nil || draft.ChannelID != ev.ChannelID {
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(ev.Content), "cancel") {
		w.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		w.deleteDraftMessages(ctx, draft)
		w.sessions.drop(ev.UserID)
		w.notify(ctx, ev.ChannelID, "Invoice draft discarded.", config.CancelNoticeTTL, false)
		return nil
	}

	if draft.CancellingItem {
		return nil
	}

	item := draft.current()
	if item == nil {
		return nil
	}

	switch draft.Step {
	case StepItemName:
		w.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		name := ev.Content
		item.Name = &name
		draft.Step = StepItemDescription

	case StepItemDescription:
		w.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		description := ev.Content
		item.Description = &description
		draft.Step = StepItemUnit

	case StepItemRate:
		w.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		rate, err := parseAmount(ev.Content)
		if err != nil {
			w.notify(ctx, ev.ChannelID, "Please send a non-negative number for the rate.", config.ErrorMessageTTL, true)
			return nil
		}
		item.Rate = &rate
		if *item.Unit == domain.UnitHours {
			draft.Step = StepItemQuantity
		} else {
			draft.Step = StepReviewItem
		}

	case StepItemQuantity:
		w.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		quantity, err := parseAmount(ev.Content)
		if err != nil {
			w.notify(ctx, ev.ChannelID, "Please send a non-negative number of hours.", config.ErrorMessageTTL, true)
			return nil
		}
		item.Quantity = &quantity
		draft.Step = StepReviewItem

	default:
		return nil
	}

	return w.renderItemPrompt(ctx, draft)
}

// submit runs the full submission sequence. Any failure transitions the
// draft back to AddItems with sending cleared, so the submit action stays
// reachable.
func (w *Wizard) submit(ctx context.Context, draft *Draft) error {
	draft.Sending = true
	if err := w.renderSummary(ctx, draft); err != nil {
		draft.Sending = false
		return err
	}

	err := w.performSend(ctx, draft)
	if err != nil {
		w.log.Error("send invoice", "operator_id", draft.OperatorID, "error", err)
		draft.Sending = false
		draft.Step = StepAddItems
		if rerr := w.renderSummary(ctx, draft); rerr != nil {
			w.log.Warn("re-render summary after failure", "error", rerr)
		}
		w.notify(ctx, draft.ChannelID, "Something went wrong sending the invoice, please try again.", config.ErrorMessageTTL, true)
		return nil
	}

	draft.Sending = false
	draft.Sent = true
	if err := w.renderSummary(ctx, draft); err != nil {
		w.log.Warn("render sent summary", "error", err)
	}

	w.sendCustomerCopy(ctx, draft)
	w.offerShare(ctx, draft)
	w.sessions.drop(draft.OperatorID)
	return nil
}

func (w *Wizard) performSend(ctx context.Context, draft *Draft) error {
	if draft.InvoiceNumber == "" {
		number, err := w.billing.NextInvoiceNumber(ctx)
		if err != nil {
			return fmt.Errorf("invoice number: %w", err)
		}
		draft.InvoiceNumber = number
	}

	href, err := w.billing.CreateDraft(ctx, paypal.Draft{
		InvoiceNumber: draft.InvoiceNumber,
		Customer:      draft.Customer,
		Items:         draft.completeItems(),
	})
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	draft.InvoiceHref = href

	if err := w.billing.SendInvoice(ctx, href); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qr, err := w.billing.GenerateQRCode(gctx, href)
		if err != nil {
			return fmt.Errorf("qr code: %w", err)
		}
		draft.QR = qr
		return nil
	})
	g.Go(func() error {
		record, err := w.billing.GetInvoice(gctx, href)
		if err != nil {
			return fmt.Errorf("invoice record: %w", err)
		}
		draft.Record = record
		return nil
	})
	return g.Wait()
}

// sendCustomerCopy DMs the final invoice to the customer once; a re-render
// during the same send edits the existing copy.
func (w *Wizard) sendCustomerCopy(ctx context.Context, draft *Draft) {
	msg := customerCopyMessage(draft)
	if draft.CustomerDMID != "" {
		if err := w.gw.EditDirect(ctx, draft.Customer.ChatUserID, draft.CustomerDMID, msg); err != nil {
			w.log.Warn("edit customer copy", "error", err)
		}
		return
	}
	id, err := w.gw.SendDirect(ctx, draft.Customer.ChatUserID, msg)
	if err != nil {
		w.log.Warn("send customer copy", "error", err)
		return
	}
	draft.CustomerDMID = id
}

// offerShare posts the channel picker and retains the sent content for a
// fixed window; on expiry the entry and the picker disappear.
func (w *Wizard) offerShare(ctx context.Context, draft *Draft) {
	if draft.Record == nil {
		return
	}

	promptID, err := w.gw.SendMessage(ctx, draft.ChannelID, sharePromptMessage())
	if err != nil {
		w.log.Warn("send share prompt", "error", err)
		return
	}

	invoiceID := draft.Record.ID
	w.shared[invoiceID] = &sharedInvoice{
		invoiceID:       invoiceID,
		content:         summaryMessage(draft),
		promptChannelID: draft.ChannelID,
		promptMessageID: promptID,
	}

	time.AfterFunc(config.SharedInvoiceTTL, func() {
		w.mu.Lock()
		entry, ok := w.shared[invoiceID]
		if ok {
			delete(w.shared, invoiceID)
		}
		w.mu.Unlock()
		if ok {
			w.gw.TryDelete(context.Background(), entry.promptChannelID, entry.promptMessageID)
		}
	})
}

func (w *Wizard) renderSummary(ctx context.Context, draft *Draft) error {
	msg := summaryMessage(draft)
	if draft.SummaryMessageID == "" {
		id, err := w.gw.SendMessage(ctx, draft.ChannelID, msg)
		if err != nil {
			w.fail(ctx, draft.ChannelID, err, "send summary")
			return err
		}
		draft.SummaryMessageID = id
		return nil
	}
	w.gw.TryEdit(ctx, draft.ChannelID, draft.SummaryMessageID, msg)
	return nil
}

func (w *Wizard) renderItemPrompt(ctx context.Context, draft *Draft) error {
	msg := itemPromptMessage(draft)
	if draft.PromptMessageID == "" {
		id, err := w.gw.SendMessage(ctx, draft.ChannelID, msg)
		if err != nil {
			w.fail(ctx, draft.ChannelID, err, "send item prompt")
			return err
		}
		draft.PromptMessageID = id
		return nil
	}
	w.gw.TryEdit(ctx, draft.ChannelID, draft.PromptMessageID, msg)
	return nil
}

func (w *Wizard) deleteDraftMessages(ctx context.Context, draft *Draft) {
	if draft.SummaryMessageID != "" {
		w.gw.TryDelete(ctx, draft.ChannelID, draft.SummaryMessageID)
	}
	if draft.PromptMessageID != "" {
		w.gw.TryDelete(ctx, draft.ChannelID, draft.PromptMessageID)
	}
}

func (w *Wizard) notify(ctx context.Context, channelID, text string, ttl time.Duration, isError bool) {
	msgID, err := w.gw.SendMessage(ctx, channelID, gateway.Message{Body: text, Error: isError})
	if err != nil {
		w.log.Warn("send notice", "channel_id", channelID, "error", err)
		return
	}
	time.AfterFunc(ttl, func() {
		w.gw.TryDelete(context.Background(), channelID, msgID)
	})
}

func (w *Wizard) fail(ctx context.Context, channelID string, err error, op string) {
	w.log.Error(op, "channel_id", channelID, "error", err)
	w.notify(ctx, channelID, "Something went wrong, please try again.", config.ErrorMessageTTL, true)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount")
	}
	return d, nil
}
