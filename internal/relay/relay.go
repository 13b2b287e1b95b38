// Package relay turns payment notifications posted on the payment feed
// channel into direct confirmation messages. Best effort: any lookup that
// fails logs and aborts, nothing is retried.
package relay

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/plugsmith/orderdesk/internal/domain"
	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/paypal"
)

// paymentPrefix marks feed messages this relay handles. The rest of the
// content is the transaction id and, for invoice payments, the invoice id.
const paymentPrefix = "new:payment|"

// accountField is the structured field the storefront attaches to each feed
// message, carrying the paying account's id.
const accountField = "account_id"

// Directory resolves storefront accounts and transactions.
type Directory interface {
	ChatUserByAccount(ctx context.Context, accountID int64) (string, error)
	TransactionByID(ctx context.Context, txnID string) (*domain.TransactionRecord, error)
}

// InvoiceSource fetches the canonical invoice record for paid-status checks.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, hrefOrID string) (*domain.InvoiceRecord, error)
}

type Deps struct {
	Gateway   gateway.Gateway
	Directory Directory
	Invoices  InvoiceSource
	// FeedChannelID is the only channel the relay reads.
	FeedChannelID string
	Logger        *slog.Logger
}

type Relay struct {
	gw       gateway.Gateway
	dir      Directory
	invoices InvoiceSource
	feedID   string
	log      *slog.Logger
}

func New(deps Deps) *Relay {
	return &Relay{
		gw:       deps.Gateway,
		dir:      deps.Directory,
		invoices: deps.Invoices,
		feedID:   deps.FeedChannelID,
		log:      deps.Logger,
	}
}

// HandleChatMessage processes one feed message. Messages that are not
// payment notifications, or that fail any resolution step, are dropped.
func (r *Relay) HandleChatMessage(ctx context.Context, ev gateway.ChatMessage) error {
	if ev.ChannelID != r.feedID || !ev.FromWebhook {
		return nil
	}
	if !strings.HasPrefix(ev.Content, paymentPrefix) {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(ev.Content, paymentPrefix), "|")
	txnID := parts[0]
	invoiceID := ""
	if len(parts) > 1 {
		invoiceID = parts[1]
	}
	if txnID == "" {
		r.log.Warn("payment notification without transaction id")
		return nil
	}

	accountID, err := strconv.ParseInt(ev.Fields[accountField], 10, 64)
	if err != nil {
		r.log.Warn("payment notification without account id", "txn_id", txnID)
		return nil
	}

	chatUser, err := r.dir.ChatUserByAccount(ctx, accountID)
	if err != nil {
		r.log.Warn("no chat identity for account", "account_id", accountID, "txn_id", txnID, "error", err)
		return nil
	}

	txn, err := r.dir.TransactionByID(ctx, txnID)
	if err != nil {
		r.log.Warn("no transaction record", "txn_id", txnID, "error", err)
		return nil
	}

	var record *domain.InvoiceRecord
	if invoiceID != "" {
		record, err = r.invoices.GetInvoice(ctx, invoiceID)
		if err != nil {
			r.log.Warn("invoice lookup failed", "invoice_id", invoiceID, "error", err)
			return nil
		}
	}

	if _, err := r.gw.SendDirect(ctx, chatUser, confirmationMessage(txn, record)); err != nil {
		r.log.Warn("send payment confirmation", "chat_user", chatUser, "error", err)
	}
	return nil
}

func confirmationMessage(txn *domain.TransactionRecord, record *domain.InvoiceRecord) gateway.Message {
	item := "Your purchase"
	if txn.PluginTitle != nil {
		item = *txn.PluginTitle
	}

	msg := gateway.Message{
		Title: "Payment received",
		Body:  "Thanks! We received your payment.",
		Fields: []gateway.Field{
			{Name: "Item", Value: item},
			{Name: "Amount", Value: paypal.FormatAmount(txn.Amount) + " EUR"},
		},
	}

	if record != nil {
		if record.FullyPaid() {
			msg.Fields = append(msg.Fields, gateway.Field{
				Name: "Invoice #" + record.Number, Value: "Fully paid, thank you!",
			})
		} else {
			msg.Fields = append(msg.Fields, gateway.Field{
				Name:  "Invoice #" + record.Number,
				Value: "Remaining balance: " + paypal.FormatAmount(record.DueAmount) + " EUR",
			})
		}
	}
	return msg
}
