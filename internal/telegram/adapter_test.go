package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugsmith/orderdesk/internal/config"
	"github.com/plugsmith/orderdesk/internal/gateway"
)

// apiRecorder answers the Bot API over HTTP and keeps every method call with
// its form fields, so tests can assert on what actually went over the wire.
type apiRecorder struct {
	mu     sync.Mutex
	calls  []string
	texts  []string
	nextID int
}

func (r *apiRecorder) handler(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseMultipartForm(1 << 20)
	method := path.Base(req.URL.Path)

	r.mu.Lock()
	r.calls = append(r.calls, method)
	if text := req.FormValue("text"); text != "" {
		r.texts = append(r.texts, text)
	}
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "deleteMessage", "pinChatMessage", "deleteForumTopic":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":1,"chat":{"id":10}}}`, id)
	}
}

func (r *apiRecorder) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == method {
			n++
		}
	}
	return n
}

func newTestAdapter(t *testing.T) (*Adapter, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)

	cfg := &config.Config{TicketGroupID: -100, AdminIDs: []int64{7}}
	return NewAdapter(b, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), rec
}

func TestSendSplitsLongMessages(t *testing.T) {
	a, rec := newTestAdapter(t)

	body := strings.TrimRight(strings.Repeat(strings.Repeat("x", 50)+"\n", 200), "\n")
	msgID, err := a.SendMessage(context.Background(), "10", gateway.Message{Body: body})
	require.NoError(t, err)

	require.Equal(t, 3, rec.count("sendMessage"))
	for _, text := range rec.texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), MaxMessageLen)
	}
	assert.Equal(t, body, strings.Join(rec.texts, ""))

	// The returned id is the final chunk's, where the keyboard lives.
	assert.Equal(t, "3", msgID)
}

func TestSendShortMessageSingleCall(t *testing.T) {
	a, rec := newTestAdapter(t)

	_, err := a.SendMessage(context.Background(), "10", gateway.Message{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("sendMessage"))
}

func TestEditWithThumbnailReplacesMessage(t *testing.T) {
	a, rec := newTestAdapter(t)

	msgID, err := a.SendMessage(context.Background(), "10", gateway.Message{Title: "Invoice draft"})
	require.NoError(t, err)

	err = a.EditMessage(context.Background(), "10", msgID, gateway.Message{
		Title:     "Invoice sent",
		Thumbnail: []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)

	// An edit cannot attach a photo, so the original goes away and the
	// summary comes back as a photo message.
	assert.Equal(t, 0, rec.count("editMessageText"))
	assert.Equal(t, 1, rec.count("deleteMessage"))
	assert.Equal(t, 1, rec.count("sendPhoto"))
}

func TestEditWithoutThumbnailEditsInPlace(t *testing.T) {
	a, rec := newTestAdapter(t)

	msgID, err := a.SendMessage(context.Background(), "10", gateway.Message{Title: "Invoice draft"})
	require.NoError(t, err)

	require.NoError(t, a.EditMessage(context.Background(), "10", msgID, gateway.Message{Title: "Invoice draft", Body: "updated"}))
	assert.Equal(t, 1, rec.count("editMessageText"))
	assert.Equal(t, 0, rec.count("deleteMessage"))
}

func TestDeleteChannelRemovesTopic(t *testing.T) {
	a, rec := newTestAdapter(t)

	require.NoError(t, a.DeleteChannel(context.Background(), "topic:42"))
	assert.Equal(t, 1, rec.count("deleteForumTopic"))
}
