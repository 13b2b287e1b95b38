package gateway

// Event is the tagged union of inbound chat-platform events. Each variant
// carries only the fields that exist for that interaction subtype; the
// adapter dispatches on the concrete type exactly once, at the boundary.
type Event interface {
	isEvent()
}

// Command is a slash-style command invocation.
type Command struct {
	Name       string
	Subcommand string
	UserID     string
	ChannelID  string
	// Args holds named options as entered; boolean options are "true"/"false"
	// and absent when omitted by the caller.
	Args map[string]string
}

// ButtonClick is a press of an inline button previously sent by the bot.
type ButtonClick struct {
	ID        string
	UserID    string
	ChannelID string
	MessageID string
}

// SelectMenuChoice is a selection from a user/value select menu.
type SelectMenuChoice struct {
	ID        string
	UserID    string
	ChannelID string
	MessageID string
	Values    []string
}

// ChannelSelectChoice is a selection from a channel-picker menu.
type ChannelSelectChoice struct {
	ID              string
	UserID          string
	ChannelID       string
	MessageID       string
	TargetChannelID string
}

// ChatMessage is a plain message posted in a channel the bot can read.
type ChatMessage struct {
	MessageID string
	ChannelID string
	UserID    string
	Content   string
	FromBot   bool
	// FromWebhook marks messages delivered by an integration rather than a
	// human; the payment feed only accepts these.
	FromWebhook bool
	// Fields carries structured key/value attachments on the message, as
	// posted by integrations on the payment feed.
	Fields map[string]string
}

func (Command) isEvent()             {}
func (ButtonClick) isEvent()         {}
func (SelectMenuChoice) isEvent()    {}
func (ChannelSelectChoice) isEvent() {}
func (ChatMessage) isEvent()         {}
