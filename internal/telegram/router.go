package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/plugsmith/orderdesk/internal/gateway"
	"github.com/plugsmith/orderdesk/internal/invoice"
	"github.com/plugsmith/orderdesk/internal/relay"
	"github.com/plugsmith/orderdesk/internal/ticket"
)

// Handlers are the components updates get routed into.
type Handlers struct {
	Ticket  *ticket.Machine
	Invoice *invoice.Wizard
	Relay   *relay.Relay
}

// Router translates raw Telegram updates into gateway events, exactly once
// at the boundary, and dispatches them.
type Router struct {
	a   *Adapter
	h   Handlers
	log *slog.Logger
}

func NewRouter(a *Adapter, h Handlers, log *slog.Logger) *Router {
	return &Router{a: a, h: h, log: log}
}

// HandleUpdate is the bot's default handler.
func (r *Router) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	}
}

// channelIDFor maps a Telegram message location onto a gateway channel id.
func (r *Router) channelIDFor(msg *models.Message) string {
	if msg.Chat.ID == r.a.cfg.TicketGroupID && msg.MessageThreadID != 0 {
		return topicPrefix + strconv.Itoa(msg.MessageThreadID)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}

func (r *Router) handleCallback(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
		r.log.Warn("answer callback query", "error", err)
	}

	msg := cq.Message.Message
	if msg == nil {
		return
	}
	channelID := r.channelIDFor(msg)
	userID := strconv.FormatInt(cq.From.ID, 10)
	messageID := strconv.Itoa(msg.ID)

	data := cq.Data
	switch {
	case strings.HasPrefix(data, channelSelectPrefix):
		parts := strings.SplitN(strings.TrimPrefix(data, channelSelectPrefix), "|", 2)
		if len(parts) != 2 {
			return
		}
		err := r.h.Invoice.HandleChannelSelect(ctx, gateway.ChannelSelectChoice{
			ID:              parts[0],
			UserID:          userID,
			ChannelID:       channelID,
			MessageID:       messageID,
			TargetChannelID: parts[1],
		})
		if err != nil {
			r.log.Error("channel select", "error", err)
		}

	case data == ticket.BtnNoDeadline:
		err := r.h.Ticket.HandleNoDeadline(ctx, gateway.ButtonClick{
			ID: data, UserID: userID, ChannelID: channelID, MessageID: messageID,
		})
		if err != nil {
			r.log.Error("ticket button", "button", data, "error", err)
		}

	case strings.HasPrefix(data, "invoice:"):
		err := r.h.Invoice.HandleButton(ctx, gateway.ButtonClick{
			ID: data, UserID: userID, ChannelID: channelID, MessageID: messageID,
		})
		if err != nil {
			r.log.Error("invoice button", "button", data, "error", err)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *models.Message) {
	channelID := r.channelIDFor(msg)

	var userID string
	fromBot, fromWebhook := false, false
	switch {
	case msg.From == nil:
		fromWebhook = true
	case msg.From.IsBot && msg.From.ID == r.a.selfID:
		fromBot = true
		userID = strconv.FormatInt(msg.From.ID, 10)
	case msg.From.IsBot:
		fromWebhook = true
		userID = strconv.FormatInt(msg.From.ID, 10)
		r.a.markBot(userID)
	default:
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	if !fromBot && !fromWebhook && strings.HasPrefix(msg.Text, "/") {
		r.handleCommand(ctx, msg, userID, channelID)
		return
	}

	// A reply to an outstanding user-select prompt resolves the selection.
	if msg.ReplyToMessage != nil {
		replyID := strconv.Itoa(msg.ReplyToMessage.ID)
		if selID, ok := r.a.takePendingSelect(channelID, replyID); ok {
			r.a.TryDelete(ctx, channelID, strconv.Itoa(msg.ID))
			err := r.h.Invoice.HandleSelect(ctx, gateway.SelectMenuChoice{
				ID:        selID,
				UserID:    userID,
				ChannelID: channelID,
				MessageID: replyID,
				Values:    []string{selectedUser(msg)},
			})
			if err != nil {
				r.log.Error("user select", "error", err)
			}
			return
		}
	}

	content := msg.Text
	var fields map[string]string
	if channelID == r.a.cfg.PaymentFeedID {
		content, fields = parseFeedMessage(msg.Text)
	}

	ev := gateway.ChatMessage{
		MessageID:   strconv.Itoa(msg.ID),
		ChannelID:   channelID,
		UserID:      userID,
		Content:     content,
		FromBot:     fromBot,
		FromWebhook: fromWebhook,
		Fields:      fields,
	}

	if err := r.h.Ticket.HandleChatMessage(ctx, ev); err != nil {
		r.log.Error("ticket message", "error", err)
	}
	if err := r.h.Invoice.HandleChatMessage(ctx, ev); err != nil {
		r.log.Error("invoice message", "error", err)
	}
	if err := r.h.Relay.HandleChatMessage(ctx, ev); err != nil {
		r.log.Error("relay message", "error", err)
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *models.Message, userID, channelID string) {
	tokens := strings.Fields(msg.Text)
	name := strings.TrimPrefix(tokens[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	args := tokens[1:]

	var err error
	switch name {
	case "order":
		err = r.handleOrderCommand(ctx, msg, userID, channelID, args)
	case "create_invoice":
		err = r.h.Invoice.Start(ctx, userID, channelID)
	case "lookup_transaction":
		cmd := gateway.Command{Name: name, UserID: userID, ChannelID: channelID, Args: map[string]string{}}
		if len(args) > 0 {
			cmd.Args["email"] = args[0]
		}
		if len(args) > 1 {
			cmd.Args["date"] = args[1]
		}
		err = r.h.Invoice.HandleLookup(ctx, cmd)
	}
	if err != nil {
		r.log.Error("command failed", "command", name, "error", err)
	}
}

func (r *Router) handleOrderCommand(ctx context.Context, msg *models.Message, userID, channelID string, args []string) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "create":
		// New orders start from the public order channel only.
		if r.a.cfg.OrderChannelID != "" && channelID != r.a.cfg.OrderChannelID {
			return nil
		}
		return r.h.Ticket.Open(ctx, userID, channelID)
	case "close":
		var approve *bool
		if len(args) > 1 {
			switch args[1] {
			case "approve":
				v := true
				approve = &v
			case "deny":
				v := false
				approve = &v
			}
		}
		return r.h.Ticket.Close(ctx, userID, channelID, approve)
	case "adduser":
		target := targetUser(msg, args[1:])
		if target == "" {
			return nil
		}
		return r.h.Ticket.AddUser(ctx, userID, channelID, target)
	case "removeuser":
		target := targetUser(msg, args[1:])
		if target == "" {
			return nil
		}
		return r.h.Ticket.RemoveUser(ctx, userID, channelID, target)
	}
	return nil
}

// targetUser resolves the user a moderation command refers to: a mention
// entity, a reply, or a plain numeric id.
func targetUser(msg *models.Message, args []string) string {
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeTextMention && e.User != nil {
			return strconv.FormatInt(e.User.ID, 10)
		}
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return strconv.FormatInt(msg.ReplyToMessage.From.ID, 10)
	}
	if len(args) > 0 {
		if _, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			return args[0]
		}
	}
	return ""
}

// selectedUser extracts the picked user from a reply to a select prompt.
func selectedUser(msg *models.Message) string {
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeTextMention && e.User != nil {
			return strconv.FormatInt(e.User.ID, 10)
		}
	}
	return strings.TrimSpace(msg.Text)
}

// parseFeedMessage splits a storefront feed post into its payload line and
// the key=value lines that follow it.
func parseFeedMessage(text string) (string, map[string]string) {
	lines := strings.Split(text, "\n")
	fields := map[string]string{}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return lines[0], fields
}
