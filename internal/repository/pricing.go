package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugsmith/orderdesk/internal/domain"
)

// PricingRequests stores the one-time id/token pairs handed to the external
// pricing form.
type PricingRequests struct {
	db *pgxpool.Pool
}

func NewPricingRequests(db *pgxpool.Pool) *PricingRequests {
	return &PricingRequests{db: db}
}

func (p *PricingRequests) Create(ctx context.Context, ticketID int64) (*domain.PricingRequest, error) {
	req := &domain.PricingRequest{
		ID:       uuid.NewString(),
		Token:    uuid.NewString(),
		TicketID: ticketID,
	}

	err := p.db.QueryRow(ctx, `INSERT INTO pricing_requests (id, token, ticket_id)
		VALUES ($1, $2, $3) RETURNING created_at`,
		req.ID, req.Token, req.TicketID).Scan(&req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create pricing request: %w", err)
	}
	return req, nil
}

func (p *PricingRequests) FetchByID(ctx context.Context, id string) (*domain.PricingRequest, error) {
	req := &domain.PricingRequest{}
	var selections []byte

	err := p.db.QueryRow(ctx, `SELECT id, token, ticket_id, selections,
		allow_publication, consumed_at, created_at
		FROM pricing_requests WHERE id = $1`, id).
		Scan(&req.ID, &req.Token, &req.TicketID, &selections,
			&req.AllowPublication, &req.ConsumedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPricingNotFound
		}
		return nil, fmt.Errorf("fetch pricing request %s: %w", id, err)
	}

	if len(selections) > 0 {
		sel := &domain.PricingSelection{}
		if err := json.Unmarshal(selections, sel); err == nil {
			req.Selections = sel
		}
	}
	return req, nil
}

// Consume records the form submission on the request. It succeeds exactly
// once per request; a second call reports domain.ErrPricingConsumed.
func (p *PricingRequests) Consume(ctx context.Context, id string, sel domain.PricingSelection) error {
	payload, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("marshal selections: %w", err)
	}

	tag, err := p.db.Exec(ctx, `UPDATE pricing_requests
		SET selections = $1, allow_publication = $2, consumed_at = now()
		WHERE id = $3 AND consumed_at IS NULL`,
		payload, sel.AllowPublication, id)
	if err != nil {
		return fmt.Errorf("consume pricing request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPricingConsumed
	}
	return nil
}
