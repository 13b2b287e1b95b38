// Package ticket drives a requester through the fixed project-intake
// sequence: pricing form, project name, deadline, description. The persisted
// setup status is the single source of truth for which input the channel
// currently expects.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/domain"
	"github.com/plugsmith/orderdesk/internal/gateway"
)

// Interaction ids routed back to this machine by the adapter.
const (
	BtnNoDeadline = "ticket:no-deadline"
)

// Store is the ticket persistence surface the machine drives.
type Store interface {
	Create(ctx context.Context, requesterID, channelID string) (*domain.Ticket, error)
	FetchByID(ctx context.Context, id int64, fresh bool) (*domain.Ticket, error)
	FetchByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	HasOpenTicket(ctx context.Context, requesterID string) (bool, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	Evict(id int64)
}

// PricingStore issues and consumes the one-time pricing-form links.
type PricingStore interface {
	Create(ctx context.Context, ticketID int64) (*domain.PricingRequest, error)
	FetchByID(ctx context.Context, id string) (*domain.PricingRequest, error)
	Consume(ctx context.Context, id string, sel domain.PricingSelection) error
}

type Deps struct {
	Gateway gateway.Gateway
	Tickets Store
	Pricing PricingStore
	Config  *config.Config
	Logger  *slog.Logger
}

// Machine handles every ticket-scoped event. Transitions are serialized so
// two messages arriving back to back cannot both satisfy the same step.
type Machine struct {
	gw      gateway.Gateway
	tickets Store
	pricing PricingStore
	cfg     *config.Config
	log     *slog.Logger

	mu sync.Mutex
}

func New(deps Deps) *Machine {
	return &Machine{
		gw:      deps.Gateway,
		tickets: deps.Tickets,
		pricing: deps.Pricing,
		cfg:     deps.Config,
		log:     deps.Logger,
	}
}

// Open creates a new ticket for the requester: a dedicated channel, the
// persisted row, the one-time pricing link, and the welcome prompt. A
// requester already holding an open ticket is rejected with an explanation
// and nothing changes.
func (m *Machine) Open(ctx context.Context, requesterID, originChannelID string) error {
	hasOpen, err := m.tickets.HasOpenTicket(ctx, requesterID)
	if err != nil {
		m.fail(ctx, originChannelID, err, "check open tickets")
		return err
	}
	if hasOpen {
		m.notify(ctx, originChannelID, "You already have an open order. Finish or close it before opening another.", config.ErrorMessageTTL, true)
		return nil
	}

	channelID, err := m.gw.CreateTicketChannel(ctx, "new-order", "Custom plugin order", requesterID)
	if err != nil {
		m.fail(ctx, originChannelID, err, "create ticket channel")
		return err
	}

	ticket, err := m.tickets.Create(ctx, requesterID, channelID)
	if err != nil {
		// The channel has no ticket row; do not leave it behind.
		if derr := m.gw.DeleteChannel(ctx, channelID); derr != nil {
			m.log.Warn("delete orphaned ticket channel", "channel_id", channelID, "error", derr)
		}
		if errors.Is(err, domain.ErrOpenTicketExists) {
			m.notify(ctx, originChannelID, "You already have an open order. Finish or close it before opening another.", config.ErrorMessageTTL, true)
			return nil
		}
		m.fail(ctx, originChannelID, err, "create ticket")
		return err
	}

	if err := m.gw.RenameChannel(ctx, channelID, fmt.Sprintf("order-%d", ticket.ID)); err != nil {
		m.log.Warn("rename ticket channel", "ticket_id", ticket.ID, "error", err)
	}

	link, err := m.pricing.Create(ctx, ticket.ID)
	if err != nil {
		m.fail(ctx, channelID, err, "create pricing request")
		return err
	}

	msgID, err := m.gw.SendMessage(ctx, channelID, welcomeMessage(m.cfg.PricingFormURL(link.ID, link.Token, ticket.ID)))
	if err != nil {
		m.fail(ctx, channelID, err, "send welcome")
		return err
	}

	ticket.LastMessageID = msgID
	if err := m.tickets.Update(ctx, ticket); err != nil {
		m.log.Error("persist welcome message id", "ticket_id", ticket.ID, "error", err)
		return err
	}

	m.notify(ctx, originChannelID, "Your order channel is ready.", config.CancelNoticeTTL, false)
	return nil
}

// HandleChatMessage interprets a channel message against the ticket's
// current setup step. Messages in channels without a ticket are ignored.
func (m *Machine) HandleChatMessage(ctx context.Context, ev gateway.ChatMessage) error {
	if ev.FromBot || ev.FromWebhook {
		return nil
	}

	ticket, err := m.tickets.FetchByChannel(ctx, ev.ChannelID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil
		}
		return fmt.Errorf("resolve ticket channel: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-read the authoritative row inside the lock so a message that raced
	// a previous step's write sees the advanced status. Work on a copy: the
	// store may hand out a cached object, and a transition only becomes real
	// once Update succeeds.
	ticket, err = m.tickets.FetchByID(ctx, ticket.ID, true)
	if err != nil {
		return fmt.Errorf("refresh ticket %d: %w", ticket.ID, err)
	}
	ticket = ticket.Clone()

	switch ticket.SetupStatus {
	case domain.SetupSubmitted:
		// Free-form conversation from here on.
		return nil

	case domain.SetupBudgeting:
		// The operator is waiting on the pricing form. Staff may talk; member
		// messages are removed.
		if !m.gw.IsStaff(ev.UserID) {
			m.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		}
		return nil

	case domain.SetupEnterName:
		m.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		if ev.UserID != ticket.RequesterID {
			return nil
		}
		if utf8.RuneCountInString(ev.Content) > config.MaxProjectNameLen {
			m.notifyInvalid(ctx, ev.ChannelID, domain.ErrNameTooLong)
			return nil
		}
		name := ev.Content
		ticket.Name = &name
		return m.advance(ctx, ticket)

	case domain.SetupEnterDeadline:
		m.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		if ev.UserID != ticket.RequesterID {
			return nil
		}
		if utf8.RuneCountInString(ev.Content) > config.MaxDeadlineLen {
			m.notifyInvalid(ctx, ev.ChannelID, domain.ErrDeadlineTooLong)
			return nil
		}
		deadline := ev.Content
		ticket.Deadline = &deadline
		return m.advance(ctx, ticket)

	case domain.SetupEnterDescription:
		m.gw.TryDelete(ctx, ev.ChannelID, ev.MessageID)
		if ev.UserID != ticket.RequesterID {
			return nil
		}
		description := ev.Content
		ticket.Description = &description
		return m.advance(ctx, ticket)
	}

	return nil
}

// HandleNoDeadline is the shortcut button on the deadline prompt. The
// deadline stays empty and the summary later shows the placeholder.
func (m *Machine) HandleNoDeadline(ctx context.Context, ev gateway.ButtonClick) error {
	ticket, err := m.tickets.FetchByChannel(ctx, ev.ChannelID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil
		}
		return fmt.Errorf("resolve ticket channel: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, err = m.tickets.FetchByID(ctx, ticket.ID, true)
	if err != nil {
		return fmt.Errorf("refresh ticket %d: %w", ticket.ID, err)
	}
	if ticket.SetupStatus != domain.SetupEnterDeadline || ev.UserID != ticket.RequesterID {
		return nil
	}

	return m.advance(ctx, ticket.Clone())
}

// HandlePricingWebhook attaches the form's selections to the ticket. It is a
// no-op unless the ticket still sits in the budgeting step, so a replay or a
// late callback can never move a ticket backwards.
func (m *Machine) HandlePricingWebhook(ctx context.Context, pricingID string, ticketID int64, sel domain.PricingSelection) error {
	if !sel.Valid() {
		m.log.Warn("pricing webhook with invalid selection", "pricing_id", pricingID)
		return nil
	}

	request, err := m.pricing.FetchByID(ctx, pricingID)
	if err != nil {
		if errors.Is(err, domain.ErrPricingNotFound) {
			m.log.Warn("pricing webhook for unknown request", "pricing_id", pricingID)
			return nil
		}
		return fmt.Errorf("fetch pricing request: %w", err)
	}
	if request.TicketID != ticketID {
		m.log.Warn("pricing webhook ticket mismatch", "pricing_id", pricingID, "ticket_id", ticketID, "expected", request.TicketID)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, err := m.tickets.FetchByID(ctx, ticketID, true)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			m.log.Warn("pricing webhook for missing ticket", "ticket_id", ticketID)
			return nil
		}
		return fmt.Errorf("fetch ticket %d: %w", ticketID, err)
	}
	if ticket.SetupStatus != domain.SetupBudgeting {
		m.log.Info("pricing webhook outside budgeting, ignored", "ticket_id", ticketID, "setup_status", ticket.SetupStatus)
		return nil
	}

	if err := m.pricing.Consume(ctx, pricingID, sel); err != nil {
		if errors.Is(err, domain.ErrPricingConsumed) {
			m.log.Warn("pricing webhook replayed", "pricing_id", pricingID)
			return nil
		}
		return fmt.Errorf("consume pricing request: %w", err)
	}

	quoteID, err := m.gw.SendMessage(ctx, ticket.ChannelID, quoteMessage(sel))
	if err != nil {
		m.fail(ctx, ticket.ChannelID, err, "send quote")
		return err
	}
	m.gw.TryPin(ctx, ticket.ChannelID, quoteID)

	return m.advance(ctx, ticket.Clone())
}

// Close ends a ticket. Staff may approve or deny via the approve flag;
// anyone else, or staff omitting the flag, takes the plain closed path. Write
// access is revoked and the channel renamed either way.
func (m *Machine) Close(ctx context.Context, callerID, channelID string, approve *bool) error {
	ticket, err := m.managedTicket(ctx, callerID, channelID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotTicketChannel):
			m.notify(ctx, channelID, "This command only works inside an order channel.", config.NotFoundMessageTTL, true)
			return nil
		case errors.Is(err, domain.ErrNotPermitted):
			m.notify(ctx, channelID, "Only the requester or staff can close an order.", config.ErrorMessageTTL, true)
			return nil
		}
		return err
	}

	status := domain.TicketClosed
	notice := "Order closed."
	if staff := m.gw.IsStaff(callerID); staff && approve != nil {
		if *approve {
			status, notice = domain.TicketApproved, "Order approved and closed."
		} else {
			status, notice = domain.TicketDenied, "Order denied and closed."
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ticket = ticket.Clone()
	ticket.Status = status
	if err := m.tickets.Update(ctx, ticket); err != nil {
		m.fail(ctx, channelID, err, "persist close")
		return err
	}

	if err := m.gw.RevokeWrite(ctx, channelID); err != nil {
		m.log.Warn("revoke write on closed ticket", "ticket_id", ticket.ID, "error", err)
	}
	if err := m.gw.RenameChannel(ctx, channelID, fmt.Sprintf("order-%d-closed", ticket.ID)); err != nil {
		m.log.Warn("rename closed ticket channel", "ticket_id", ticket.ID, "error", err)
	}

	if _, err := m.gw.SendMessage(ctx, channelID, gateway.Message{Body: notice}); err != nil {
		m.log.Warn("send close notice", "ticket_id", ticket.ID, "error", err)
	}

	m.tickets.Evict(ticket.ID)
	return nil
}

// AddUser grants another member access to the ticket channel.
func (m *Machine) AddUser(ctx context.Context, callerID, channelID, targetID string) error {
	if _, err := m.managedTicket(ctx, callerID, channelID); err != nil {
		m.notifyModerationErr(ctx, channelID, err)
		return nil
	}

	switch {
	case targetID == callerID:
		m.notify(ctx, channelID, "You cannot add yourself.", config.ErrorMessageTTL, true)
		return nil
	case m.gw.IsBotUser(targetID):
		m.notify(ctx, channelID, "Bots cannot be added to an order.", config.ErrorMessageTTL, true)
		return nil
	}

	has, err := m.gw.HasAccess(ctx, channelID, targetID)
	if err != nil {
		m.fail(ctx, channelID, err, "check access")
		return err
	}
	if has {
		m.notify(ctx, channelID, "That user already has access to this order.", config.ErrorMessageTTL, true)
		return nil
	}

	if err := m.gw.GrantAccess(ctx, channelID, targetID); err != nil {
		m.fail(ctx, channelID, err, "grant access")
		return err
	}
	m.notify(ctx, channelID, "User added to the order.", config.CancelNoticeTTL, false)
	return nil
}

// RemoveUser revokes a member's access to the ticket channel.
func (m *Machine) RemoveUser(ctx context.Context, callerID, channelID, targetID string) error {
	ticket, err := m.managedTicket(ctx, callerID, channelID)
	if err != nil {
		m.notifyModerationErr(ctx, channelID, err)
		return nil
	}

	switch {
	case targetID == callerID:
		m.notify(ctx, channelID, "You cannot remove yourself.", config.ErrorMessageTTL, true)
		return nil
	case targetID == ticket.RequesterID:
		m.notify(ctx, channelID, "The requester cannot be removed from their own order.", config.ErrorMessageTTL, true)
		return nil
	case m.gw.IsBotUser(targetID):
		m.notify(ctx, channelID, "Bots cannot be removed from an order.", config.ErrorMessageTTL, true)
		return nil
	case m.gw.IsStaff(targetID):
		m.notify(ctx, channelID, "Staff members cannot be removed from an order.", config.ErrorMessageTTL, true)
		return nil
	}

	has, err := m.gw.HasAccess(ctx, channelID, targetID)
	if err != nil {
		m.fail(ctx, channelID, err, "check access")
		return err
	}
	if !has {
		m.notify(ctx, channelID, "That user does not have access to this order.", config.ErrorMessageTTL, true)
		return nil
	}

	if err := m.gw.RemoveAccess(ctx, channelID, targetID); err != nil {
		m.fail(ctx, channelID, err, "remove access")
		return err
	}
	m.notify(ctx, channelID, "User removed from the order.", config.CancelNoticeTTL, false)
	return nil
}

// managedTicket resolves the command's ticket and checks the caller may act
// on it. Reports ErrNotTicketChannel for channels without a ticket and
// ErrNotPermitted for callers who are neither the requester nor staff.
func (m *Machine) managedTicket(ctx context.Context, callerID, channelID string) (*domain.Ticket, error) {
	ticket, err := m.tickets.FetchByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil, domain.ErrNotTicketChannel
		}
		return nil, fmt.Errorf("resolve ticket channel: %w", err)
	}
	if callerID != ticket.RequesterID && !m.gw.IsStaff(callerID) {
		return nil, domain.ErrNotPermitted
	}
	return ticket, nil
}

// notifyModerationErr shows the notice matching a managedTicket failure.
func (m *Machine) notifyModerationErr(ctx context.Context, channelID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotTicketChannel):
		m.notify(ctx, channelID, "This command only works inside an order channel.", config.NotFoundMessageTTL, true)
	case errors.Is(err, domain.ErrNotPermitted):
		m.notify(ctx, channelID, "Only the requester or staff can manage order members.", config.ErrorMessageTTL, true)
	}
}

// advance moves the ticket to its next setup step, persists it, replaces the
// outstanding prompt and, on reaching the final step, posts the pinned
// summary with a staff notification.
func (m *Machine) advance(ctx context.Context, ticket *domain.Ticket) error {
	next, ok := ticket.SetupStatus.Next()
	if !ok {
		return nil
	}
	ticket.SetupStatus = next

	if ticket.LastMessageID != "" {
		m.gw.TryDelete(ctx, ticket.ChannelID, ticket.LastMessageID)
		ticket.LastMessageID = ""
	}

	var msg gateway.Message
	if next == domain.SetupSubmitted {
		msg = summaryMessage(ticket)
	} else {
		msg = promptMessage(next)
	}

	msgID, err := m.gw.SendMessage(ctx, ticket.ChannelID, msg)
	if err != nil {
		m.fail(ctx, ticket.ChannelID, err, "send step prompt")
		return err
	}

	if next == domain.SetupSubmitted {
		m.gw.TryPin(ctx, ticket.ChannelID, msgID)
	} else {
		ticket.LastMessageID = msgID
	}

	if err := m.tickets.Update(ctx, ticket); err != nil {
		m.fail(ctx, ticket.ChannelID, err, "persist step")
		return err
	}
	return nil
}

// notifyInvalid shows the notice matching a rejected intake input. The
// ticket does not advance; the requester just tries again.
func (m *Machine) notifyInvalid(ctx context.Context, channelID string, err error) {
	text := "That input is not valid, please try again."
	switch {
	case errors.Is(err, domain.ErrNameTooLong):
		text = fmt.Sprintf("Project names are limited to %d characters, please try again.", config.MaxProjectNameLen)
	case errors.Is(err, domain.ErrDeadlineTooLong):
		text = fmt.Sprintf("Deadlines are limited to %d characters, please try again.", config.MaxDeadlineLen)
	}
	m.notify(ctx, channelID, text, config.ErrorMessageTTL, true)
}

// notify sends a transient message that cleans itself up after ttl.
func (m *Machine) notify(ctx context.Context, channelID, text string, ttl time.Duration, isError bool) {
	msgID, err := m.gw.SendMessage(ctx, channelID, gateway.Message{Body: text, Error: isError})
	if err != nil {
		m.log.Warn("send notice", "channel_id", channelID, "error", err)
		return
	}
	time.AfterFunc(ttl, func() {
		m.gw.TryDelete(context.Background(), channelID, msgID)
	})
}

// fail logs a remote-dependency failure and shows the generic retry message.
func (m *Machine) fail(ctx context.Context, channelID string, err error, op string) {
	m.log.Error(op, "channel_id", channelID, "error", err)
	m.notify(ctx, channelID, "Something went wrong, please try again.", config.ErrorMessageTTL, true)
}
