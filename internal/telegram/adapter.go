// Package telegram implements the gateway over the Telegram Bot API. Ticket
// channels are forum topics in the configured order group; invoices and
// notifications go to regular chats and DMs.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/gateway"
)

// topicPrefix marks channel ids that live as forum topics inside the ticket
// group rather than as standalone chats.
const topicPrefix = "topic:"

type Adapter struct {
	b   *bot.Bot
	cfg *config.Config
	log *slog.Logger

	selfID int64

	mu sync.Mutex
	// access tracks who may interact with each ticket topic; Telegram has no
	// per-topic permissions, so the adapter keeps the list itself.
	access map[string]map[string]bool
	// bots holds user ids observed as bot accounts.
	bots map[string]bool
	// pendingSelects maps a select-prompt message id to its interaction id,
	// so a reply to the prompt can be translated into a menu choice.
	pendingSelects map[string]string
}

func NewAdapter(b *bot.Bot, cfg *config.Config, log *slog.Logger) *Adapter {
	return &Adapter{
		b:              b,
		cfg:            cfg,
		log:            log,
		access:         map[string]map[string]bool{},
		bots:           map[string]bool{},
		pendingSelects: map[string]string{},
	}
}

// SetSelf records the bot's own identity after GetMe.
func (a *Adapter) SetSelf(id int64) {
	a.selfID = id
	a.mu.Lock()
	a.bots[strconv.FormatInt(id, 10)] = true
	a.mu.Unlock()
}

// resolve splits a gateway channel id into a Telegram chat and, for forum
// topics, a thread.
func (a *Adapter) resolve(channelID string) (int64, int, error) {
	if rest, ok := strings.CutPrefix(channelID, topicPrefix); ok {
		threadID, err := strconv.Atoi(rest)
		if err != nil {
			return 0, 0, fmt.Errorf("bad topic id %q: %w", channelID, err)
		}
		return a.cfg.TicketGroupID, threadID, nil
	}
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad channel id %q: %w", channelID, err)
	}
	return chatID, 0, nil
}

func (a *Adapter) SendMessage(ctx context.Context, channelID string, msg gateway.Message) (string, error) {
	chatID, threadID, err := a.resolve(channelID)
	if err != nil {
		return "", err
	}
	return a.send(ctx, chatID, threadID, channelID, msg)
}

func (a *Adapter) send(ctx context.Context, chatID int64, threadID int, channelID string, msg gateway.Message) (string, error) {
	markup := a.keyboardFor(msg)
	text := a.renderText(msg)

	var sent *models.Message
	var err error
	if len(msg.Thumbnail) > 0 {
		caption := truncate(text, MaxCaptionLen)
		sent, err = a.b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          chatID,
			MessageThreadID: threadID,
			Photo:           &models.InputFileUpload{Filename: "invoice-qr.png", Data: bytes.NewReader(msg.Thumbnail)},
			Caption:         caption,
			ParseMode:       models.ParseModeMarkdownV1,
			ReplyMarkup:     markup,
		})
		if err != nil {
			sent, err = a.b.SendPhoto(ctx, &bot.SendPhotoParams{
				ChatID:          chatID,
				MessageThreadID: threadID,
				Photo:           &models.InputFileUpload{Filename: "invoice-qr.png", Data: bytes.NewReader(msg.Thumbnail)},
				Caption:         caption,
				ReplyMarkup:     markup,
			})
		}
	} else {
		// Long content is split across messages; the keyboard and select
		// prompt attach to the final chunk.
		parts := SplitMessage(text, MaxMessageLen)
		for i, part := range parts {
			params := &bot.SendMessageParams{
				ChatID:          chatID,
				MessageThreadID: threadID,
				Text:            part,
				ParseMode:       models.ParseModeMarkdownV1,
			}
			if i == len(parts)-1 {
				params.ReplyMarkup = markup
			}
			sent, err = a.b.SendMessage(ctx, params)
			if err != nil {
				// Fallback to plain text when the markdown does not parse.
				params.ParseMode = ""
				sent, err = a.b.SendMessage(ctx, params)
			}
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	msgID := strconv.Itoa(sent.ID)
	if msg.UserSelectID != "" {
		a.mu.Lock()
		a.pendingSelects[channelID+"/"+msgID] = msg.UserSelectID
		a.mu.Unlock()
	}
	return msgID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, msg gateway.Message) error {
	chatID, threadID, err := a.resolve(channelID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("bad message id %q: %w", messageID, err)
	}

	// A text message cannot gain a photo through an edit; replace it.
	if len(msg.Thumbnail) > 0 {
		a.TryDelete(ctx, channelID, messageID)
		_, err := a.send(ctx, chatID, threadID, channelID, msg)
		return err
	}

	params := &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        truncate(a.renderText(msg), MaxMessageLen),
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: a.keyboardFor(msg),
	}
	if _, err = a.b.EditMessageText(ctx, params); err != nil {
		params.ParseMode = ""
		if _, err = a.b.EditMessageText(ctx, params); err != nil {
			return fmt.Errorf("edit message: %w", err)
		}
	}
	return nil
}

func (a *Adapter) TryDelete(ctx context.Context, channelID, messageID string) bool {
	chatID, _, err := a.resolve(channelID)
	if err != nil {
		a.log.Warn("delete message", "channel_id", channelID, "error", err)
		return false
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return false
	}
	ok, err := a.b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: msgID})
	if err != nil {
		a.log.Warn("delete message", "channel_id", channelID, "message_id", messageID, "error", err)
		return false
	}
	return ok
}

func (a *Adapter) TryEdit(ctx context.Context, channelID, messageID string, msg gateway.Message) bool {
	if err := a.EditMessage(ctx, channelID, messageID, msg); err != nil {
		a.log.Warn("edit message", "channel_id", channelID, "message_id", messageID, "error", err)
		return false
	}
	return true
}

func (a *Adapter) TryPin(ctx context.Context, channelID, messageID string) bool {
	chatID, _, err := a.resolve(channelID)
	if err != nil {
		return false
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return false
	}
	ok, err := a.b.PinChatMessage(ctx, &bot.PinChatMessageParams{
		ChatID:              chatID,
		MessageID:           msgID,
		DisableNotification: true,
	})
	if err != nil {
		a.log.Warn("pin message", "channel_id", channelID, "message_id", messageID, "error", err)
		return false
	}
	return ok
}

func (a *Adapter) SendDirect(ctx context.Context, userID string, msg gateway.Message) (string, error) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad user id %q: %w", userID, err)
	}
	return a.send(ctx, chatID, 0, userID, msg)
}

func (a *Adapter) EditDirect(ctx context.Context, userID, messageID string, msg gateway.Message) error {
	return a.EditMessage(ctx, userID, messageID, msg)
}

// CreateTicketChannel opens a forum topic in the order group and seeds its
// access list with the requester.
func (a *Adapter) CreateTicketChannel(ctx context.Context, name, _ string, requesterID string) (string, error) {
	topic, err := a.b.CreateForumTopic(ctx, &bot.CreateForumTopicParams{
		ChatID: a.cfg.TicketGroupID,
		Name:   name,
	})
	if err != nil {
		return "", fmt.Errorf("create forum topic: %w", err)
	}

	channelID := topicPrefix + strconv.Itoa(topic.MessageThreadID)
	a.mu.Lock()
	a.access[channelID] = map[string]bool{requesterID: true}
	a.mu.Unlock()
	return channelID, nil
}

// DeleteChannel removes the forum topic and forgets its access list.
func (a *Adapter) DeleteChannel(ctx context.Context, channelID string) error {
	rest, ok := strings.CutPrefix(channelID, topicPrefix)
	if !ok {
		return fmt.Errorf("channel %q is not a ticket topic", channelID)
	}
	threadID, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("bad topic id %q: %w", channelID, err)
	}
	if _, err := a.b.DeleteForumTopic(ctx, &bot.DeleteForumTopicParams{
		ChatID:          a.cfg.TicketGroupID,
		MessageThreadID: threadID,
	}); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	a.mu.Lock()
	delete(a.access, channelID)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) RenameChannel(ctx context.Context, channelID, name string) error {
	rest, ok := strings.CutPrefix(channelID, topicPrefix)
	if !ok {
		return fmt.Errorf("channel %q is not a ticket topic", channelID)
	}
	threadID, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("bad topic id %q: %w", channelID, err)
	}
	_, err = a.b.EditForumTopic(ctx, &bot.EditForumTopicParams{
		ChatID:          a.cfg.TicketGroupID,
		MessageThreadID: threadID,
		Name:            name,
	})
	if err != nil {
		return fmt.Errorf("rename topic: %w", err)
	}
	return nil
}

func (a *Adapter) GrantAccess(_ context.Context, channelID, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.access[channelID] == nil {
		a.access[channelID] = map[string]bool{}
	}
	a.access[channelID][userID] = true
	return nil
}

func (a *Adapter) RemoveAccess(_ context.Context, channelID, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.access[channelID], userID)
	return nil
}

// RevokeWrite closes the forum topic; members can still read the history.
func (a *Adapter) RevokeWrite(ctx context.Context, channelID string) error {
	rest, ok := strings.CutPrefix(channelID, topicPrefix)
	if !ok {
		return fmt.Errorf("channel %q is not a ticket topic", channelID)
	}
	threadID, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("bad topic id %q: %w", channelID, err)
	}
	_, err = a.b.CloseForumTopic(ctx, &bot.CloseForumTopicParams{
		ChatID:          a.cfg.TicketGroupID,
		MessageThreadID: threadID,
	})
	if err != nil {
		return fmt.Errorf("close topic: %w", err)
	}
	return nil
}

func (a *Adapter) HasAccess(_ context.Context, channelID, userID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.access[channelID][userID], nil
}

func (a *Adapter) IsStaff(userID string) bool {
	return a.cfg.IsStaffUser(userID)
}

func (a *Adapter) IsBotUser(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bots[userID]
}

// markBot remembers that a user id belongs to a bot account.
func (a *Adapter) markBot(userID string) {
	a.mu.Lock()
	a.bots[userID] = true
	a.mu.Unlock()
}

// takePendingSelect pops the select id waiting on a reply to the given
// prompt, if any.
func (a *Adapter) takePendingSelect(channelID, messageID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := channelID + "/" + messageID
	id, ok := a.pendingSelects[key]
	if ok {
		delete(a.pendingSelects, key)
	}
	return id, ok
}
