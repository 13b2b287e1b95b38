package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/plugsmith/orderdesk/internal/gateway"
)

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL inline keyboard button.
func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text: text,
		URL:  url,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// keyboardFor translates a gateway message's interactive parts into a
// Telegram reply markup. Channel pickers become one button per configured
// share channel; user pickers become a force-reply prompt answered in chat.
func (a *Adapter) keyboardFor(msg gateway.Message) models.ReplyMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, row := range msg.Buttons {
		var btns []models.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, URLButton(b.Label, b.URL))
				continue
			}
			btns = append(btns, InlineButton(b.Label, b.ID))
		}
		rows = append(rows, btns)
	}

	if msg.ChannelSelectID != "" {
		for _, chatID := range a.cfg.ShareChannelIDs {
			rows = append(rows, []models.InlineKeyboardButton{
				InlineButton("Share to "+chatID, channelSelectData(msg.ChannelSelectID, chatID)),
			})
		}
	}

	if len(rows) > 0 {
		return InlineKeyboard(rows...)
	}
	if msg.UserSelectID != "" {
		return &models.ForceReply{ForceReply: true, Selective: true}
	}
	return nil
}

// channelSelectPrefix marks callback data produced by channel pickers; the
// payload carries the interaction id and the target chat.
const channelSelectPrefix = "chansel|"

func channelSelectData(selectID, chatID string) string {
	return channelSelectPrefix + selectID + "|" + chatID
}
