package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/plugsmith/orderdesk/internal/gateway"
)

// Telegram's hard limits: message text and photo captions.
const (
	MaxMessageLen = 4096
	MaxCaptionLen = 1024
)

// renderText flattens a gateway message into one text block. Callers split
// or truncate it to fit the limit of the method they send it with.
func (a *Adapter) renderText(msg gateway.Message) string {
	var b strings.Builder

	if msg.Error {
		b.WriteString("⚠️ ")
	}
	if msg.Title != "" {
		b.WriteString("*" + msg.Title + "*\n\n")
	}
	if msg.Body != "" {
		b.WriteString(msg.Body + "\n")
	}
	for _, f := range msg.Fields {
		b.WriteString("\n*" + f.Name + "*\n" + f.Value + "\n")
	}
	if msg.Footer != "" {
		b.WriteString("\n_" + msg.Footer + "_")
	}
	if msg.Mention != "" {
		b.WriteString("\n\n" + a.mentionLine(msg.Mention))
	}

	return strings.TrimRight(b.String(), "\n")
}

// mentionLine renders a notifying mention. A staff mention expands into one
// link per admin so everyone gets pinged.
func (a *Adapter) mentionLine(mention string) string {
	if mention == gateway.MentionStaff {
		links := make([]string, 0, len(a.cfg.AdminIDs))
		for _, id := range a.cfg.AdminIDs {
			links = append(links, fmt.Sprintf("[staff](tg://user?id=%d)", id))
		}
		return "📣 " + strings.Join(links, " ")
	}
	return fmt.Sprintf("[notification](tg://user?id=%s)", mention)
}

func truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// SplitMessage splits a message into chunks of maxLen characters, trying to
// split at newlines when possible.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if utf8.RuneCountInString(text) <= maxLen {
			parts = append(parts, text)
			break
		}

		runes := []rune(text)
		splitAt := maxLen

		chunk := string(runes[:maxLen])
		lastNewline := strings.LastIndex(chunk, "\n")
		if lastNewline > maxLen/2 {
			splitAt = lastNewline + 1
		}

		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}

	return parts
}
