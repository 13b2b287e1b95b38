package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugsmith/orderdesk/internal/domain"
)

// Billing reads the storefront's account and transaction tables. The bot
// never writes them; they are maintained by the website backend.
type Billing struct {
	db *pgxpool.Pool
}

func NewBilling(db *pgxpool.Pool) *Billing {
	return &Billing{db: db}
}

// ContactByChatUser resolves a chat user to their verified billing identity.
func (b *Billing) ContactByChatUser(ctx context.Context, chatUserID string) (*domain.BillingContact, error) {
	contact := &domain.BillingContact{}
	err := b.db.QueryRow(ctx, `SELECT id, chat_user_id, first_name, last_name, email, business
		FROM billing_accounts WHERE chat_user_id = $1 AND verified LIMIT 1`, chatUserID).
		Scan(&contact.AccountID, &contact.ChatUserID, &contact.FirstName,
			&contact.LastName, &contact.Email, &contact.Business)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		return nil, fmt.Errorf("fetch billing contact for %s: %w", chatUserID, err)
	}
	return contact, nil
}

// ChatUserByAccount resolves a storefront account id to its linked chat user.
func (b *Billing) ChatUserByAccount(ctx context.Context, accountID int64) (string, error) {
	var chatUserID string
	err := b.db.QueryRow(ctx, `SELECT chat_user_id FROM billing_accounts WHERE id = $1`,
		accountID).Scan(&chatUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrContactNotFound
		}
		return "", fmt.Errorf("fetch chat user for account %d: %w", accountID, err)
	}
	if chatUserID == "" {
		return "", domain.ErrContactNotFound
	}
	return chatUserID, nil
}

// TransactionByID looks up the business context of a payment transaction.
func (b *Billing) TransactionByID(ctx context.Context, txnID string) (*domain.TransactionRecord, error) {
	rec := &domain.TransactionRecord{}
	err := b.db.QueryRow(ctx, `SELECT txn_id, account_id, plugin_title, amount, invoice_id
		FROM billing_transactions WHERE txn_id = $1`, txnID).
		Scan(&rec.TxnID, &rec.AccountID, &rec.PluginTitle, &rec.Amount, &rec.InvoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionMissing
		}
		return nil, fmt.Errorf("fetch transaction %s: %w", txnID, err)
	}
	return rec, nil
}
