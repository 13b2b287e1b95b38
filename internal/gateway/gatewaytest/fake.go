// Package gatewaytest provides an in-memory Gateway for state machine tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/plugsmith/orderdesk/internal/gateway"
)

// SentMessage is one recorded outbound message.
type SentMessage struct {
	ChannelID string
	MessageID string
	Msg       gateway.Message
	Deleted   bool
	Pinned    bool
	Edits     []gateway.Message
}

// Fake records every outbound call and answers access/staff queries from
// plain maps. Safe for concurrent use; the wizard fires cleanup timers.
type Fake struct {
	mu sync.Mutex

	nextID   int
	messages map[string]*SentMessage // messageID -> record
	order    []string
	directs  map[string][]string // userID -> messageIDs

	Staff           map[string]bool
	Bots            map[string]bool
	Access          map[string]map[string]bool // channelID -> userID -> true
	Closed          map[string]bool            // channels with write revoked
	Renames         map[string]string
	Channels        []string
	DeletedChannels map[string]bool

	// FailSend makes SendMessage return an error, to exercise remote-failure
	// paths.
	FailSend bool
}

func New() *Fake {
	return &Fake{
		messages:        map[string]*SentMessage{},
		directs:         map[string][]string{},
		Staff:           map[string]bool{},
		Bots:            map[string]bool{},
		Access:          map[string]map[string]bool{},
		Closed:          map[string]bool{},
		Renames:         map[string]string{},
		DeletedChannels: map[string]bool{},
	}
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg gateway.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return "", fmt.Errorf("gateway unavailable")
	}
	return f.record(channelID, msg), nil
}

func (f *Fake) EditMessage(_ context.Context, _ string, messageID string, msg gateway.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.messages[messageID]
	if !ok {
		return fmt.Errorf("unknown message %s", messageID)
	}
	rec.Msg = msg
	rec.Edits = append(rec.Edits, msg)
	return nil
}

func (f *Fake) TryDelete(_ context.Context, _ string, messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.messages[messageID]
	if !ok || rec.Deleted {
		return false
	}
	rec.Deleted = true
	return true
}

func (f *Fake) TryEdit(ctx context.Context, channelID, messageID string, msg gateway.Message) bool {
	return f.EditMessage(ctx, channelID, messageID, msg) == nil
}

func (f *Fake) TryPin(_ context.Context, _ string, messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.messages[messageID]
	if !ok {
		return false
	}
	rec.Pinned = true
	return true
}

func (f *Fake) SendDirect(_ context.Context, userID string, msg gateway.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.record("dm:"+userID, msg)
	f.directs[userID] = append(f.directs[userID], id)
	return id, nil
}

func (f *Fake) EditDirect(ctx context.Context, userID, messageID string, msg gateway.Message) error {
	return f.EditMessage(ctx, "dm:"+userID, messageID, msg)
}

func (f *Fake) CreateTicketChannel(_ context.Context, name, _ string, requesterID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("chan-%d", len(f.Channels)+1)
	f.Channels = append(f.Channels, id)
	f.Access[id] = map[string]bool{requesterID: true}
	f.Renames[id] = name
	return id, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedChannels[channelID] = true
	delete(f.Access, channelID)
	return nil
}

func (f *Fake) RenameChannel(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Renames[channelID] = name
	return nil
}

func (f *Fake) GrantAccess(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Access[channelID] == nil {
		f.Access[channelID] = map[string]bool{}
	}
	f.Access[channelID][userID] = true
	return nil
}

func (f *Fake) RemoveAccess(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Access[channelID], userID)
	return nil
}

func (f *Fake) RevokeWrite(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed[channelID] = true
	return nil
}

func (f *Fake) HasAccess(_ context.Context, channelID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Access[channelID][userID], nil
}

func (f *Fake) IsStaff(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Staff[userID]
}

func (f *Fake) IsBotUser(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Bots[userID]
}

// record assumes f.mu is held.
func (f *Fake) record(channelID string, msg gateway.Message) string {
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages[id] = &SentMessage{ChannelID: channelID, MessageID: id, Msg: msg}
	f.order = append(f.order, id)
	return id
}

// Sent returns all live (non-deleted) messages sent to a channel, in order.
func (f *Fake) Sent(channelID string) []*SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*SentMessage
	for _, id := range f.order {
		rec := f.messages[id]
		if rec.ChannelID == channelID && !rec.Deleted {
			out = append(out, rec)
		}
	}
	return out
}

// Last returns the most recent live message in a channel, or nil.
func (f *Fake) Last(channelID string) *SentMessage {
	sent := f.Sent(channelID)
	if len(sent) == 0 {
		return nil
	}
	return sent[len(sent)-1]
}

// Message returns the record for a message id, deleted or not.
func (f *Fake) Message(messageID string) *SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[messageID]
}

// Directs returns the ids of direct messages sent to a user.
func (f *Fake) Directs(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.directs[userID]...)
}
