package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
)

const ticketColumns = `id, requester_id, channel_id, status, setup_status,
	name, deadline, description, last_message_id, created_at, updated_at`

// Tickets stores project-request tickets. A small in-memory cache sits in
// front of the table so the state machine can re-read the authoritative setup
// status cheaply between messages; idle entries are evicted on a timer so the
// cache lifetime is an explicit rule rather than unbounded growth.
type Tickets struct {
	db *pgxpool.Pool

	mu        sync.Mutex
	cache     map[int64]*cachedTicket
	byChannel map[string]int64
}

type cachedTicket struct {
	ticket  *domain.Ticket
	touched time.Time
}

func NewTickets(db *pgxpool.Pool) *Tickets {
	return &Tickets{
		db:        db,
		cache:     map[int64]*cachedTicket{},
		byChannel: map[string]int64{},
	}
}

// StartEvictor sweeps idle cache entries until ctx is done.
func (t *Tickets) StartEvictor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.TicketCacheSweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.evictIdle()
			}
		}
	}()
}

func (t *Tickets) evictIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-config.TicketCacheIdle)
	for id, entry := range t.cache {
		if entry.touched.Before(cutoff) {
			delete(t.byChannel, entry.ticket.ChannelID)
			delete(t.cache, id)
		}
	}
}

// Create inserts a new open ticket. The partial unique index on open tickets
// is the final arbiter for the one-open-ticket-per-requester rule; a
// violation maps to domain.ErrOpenTicketExists.
func (t *Tickets) Create(ctx context.Context, requesterID, channelID string) (*domain.Ticket, error) {
	row := t.db.QueryRow(ctx, fmt.Sprintf(`INSERT INTO tickets (requester_id, channel_id)
		VALUES ($1, $2) RETURNING %s`, ticketColumns), requesterID, channelID)

	ticket, err := scanTicket(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrOpenTicketExists
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	t.store(ticket)
	return ticket, nil
}

func (t *Tickets) FetchByID(ctx context.Context, id int64, fresh bool) (*domain.Ticket, error) {
	if !fresh {
		if ticket := t.cached(id); ticket != nil {
			return ticket, nil
		}
	}

	row := t.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM tickets WHERE id = $1`, ticketColumns), id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("fetch ticket %d: %w", id, err)
	}

	t.store(ticket)
	return ticket, nil
}

func (t *Tickets) FetchByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	t.mu.Lock()
	id, ok := t.byChannel[channelID]
	t.mu.Unlock()
	if ok {
		if ticket := t.cached(id); ticket != nil {
			return ticket, nil
		}
	}

	row := t.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM tickets WHERE channel_id = $1`, ticketColumns), channelID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("fetch ticket by channel %s: %w", channelID, err)
	}

	t.store(ticket)
	return ticket, nil
}

// HasOpenTicket is the best-effort pre-check before creating a ticket; the
// unique index backs it up.
func (t *Tickets) HasOpenTicket(ctx context.Context, requesterID string) (bool, error) {
	var count int
	err := t.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE requester_id = $1 AND status = $2`,
		requesterID, domain.TicketOpen).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count open tickets: %w", err)
	}
	return count > 0, nil
}

// Update persists every mutable field of the ticket and refreshes updated_at.
func (t *Tickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	_, err := t.db.Exec(ctx, `UPDATE tickets
		SET channel_id = $1, status = $2, setup_status = $3, name = $4,
		    deadline = $5, description = $6, last_message_id = $7, updated_at = now()
		WHERE id = $8`,
		ticket.ChannelID, ticket.Status, ticket.SetupStatus, ticket.Name,
		ticket.Deadline, ticket.Description, ticket.LastMessageID, ticket.ID)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}

	ticket.UpdatedAt = time.Now()
	t.store(ticket)
	return nil
}

// Evict drops a ticket from the cache, e.g. after it is closed.
func (t *Tickets) Evict(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.cache[id]; ok {
		delete(t.byChannel, entry.ticket.ChannelID)
		delete(t.cache, id)
	}
}

func (t *Tickets) cached(id int64) *domain.Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.cache[id]
	if !ok {
		return nil
	}
	entry.touched = time.Now()
	return entry.ticket
}

func (t *Tickets) store(ticket *domain.Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache[ticket.ID] = &cachedTicket{ticket: ticket, touched: time.Now()}
	if ticket.ChannelID != "" {
		t.byChannel[ticket.ChannelID] = ticket.ID
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	err := row.Scan(&ticket.ID, &ticket.RequesterID, &ticket.ChannelID,
		&ticket.Status, &ticket.SetupStatus, &ticket.Name, &ticket.Deadline,
		&ticket.Description, &ticket.LastMessageID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
