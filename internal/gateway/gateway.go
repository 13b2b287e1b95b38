// Package gateway models the chat platform as the minimal surface the
// ticket and invoice state machines consume: an event union going in and a
// small capability interface going out.
package gateway

import "context"

// Field is one name/value pair on a rendered message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Button is one inline button. A button either carries an interaction ID or,
// for external links, a URL.
type Button struct {
	ID    string
	Label string
	URL   string
}

// MentionStaff in Message.Mention asks the adapter to notify the staff group
// instead of a single user.
const MentionStaff = "staff"

// Message is the embed-like content unit the state machines render. The
// adapter decides how to express it on the concrete platform.
type Message struct {
	Title  string
	Body   string
	Footer string
	Fields []Field
	// Mention renders a visible notification for a user or the staff group.
	Mention string
	Buttons [][]Button
	// UserSelectID, when set, renders a single-user picker that reports back
	// as a SelectMenuChoice with this interaction id.
	UserSelectID string
	// ChannelSelectID, when set, renders a channel picker that reports back
	// as a ChannelSelectChoice with this interaction id.
	ChannelSelectID string
	// Thumbnail is an optional PNG shown beside the message.
	Thumbnail []byte
	Error     bool
}

// Gateway is the outbound capability surface. Send/Edit report hard errors;
// the Try variants are soft: they report success without raising, so a
// cleanup failure can never abort the state transition around it.
type Gateway interface {
	SendMessage(ctx context.Context, channelID string, msg Message) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error

	TryDelete(ctx context.Context, channelID, messageID string) bool
	TryEdit(ctx context.Context, channelID, messageID string, msg Message) bool
	TryPin(ctx context.Context, channelID, messageID string) bool

	SendDirect(ctx context.Context, userID string, msg Message) (messageID string, err error)
	EditDirect(ctx context.Context, userID, messageID string, msg Message) error

	CreateTicketChannel(ctx context.Context, name, topic, requesterID string) (channelID string, err error)
	// DeleteChannel removes a ticket channel, e.g. one whose ticket row was
	// never created.
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	GrantAccess(ctx context.Context, channelID, userID string) error
	RemoveAccess(ctx context.Context, channelID, userID string) error
	// RevokeWrite leaves the channel readable but stops further member
	// messages; used when a ticket is closed.
	RevokeWrite(ctx context.Context, channelID string) error
	HasAccess(ctx context.Context, channelID, userID string) (bool, error)

	IsStaff(userID string) bool
	IsBotUser(userID string) bool
}
