package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/megarelay/internal/common"
	"github.com/dmitrijs2005/megarelay/internal/logging"
	"github.com/dmitrijs2005/megarelay/internal/media"
	"github.com/dmitrijs2005/megarelay/internal/transfer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

type fakeBotAPI struct {
	mu       sync.Mutex
	calls    map[string][]map[string]string
	fileBody []byte
}

func (f *fakeBotAPI) record(method string, r *http.Request) map[string]string {
	_ = r.ParseForm()
	params := map[string]string{}
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}
	f.mu.Lock()
	f.calls[method] = append(f.calls[method], params)
	f.mu.Unlock()
	return params
}

func (f *fakeBotAPI) last(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.calls[method]
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

func ok(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"result":%s}`, result)
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		w.Header().Set("Content-Length", fmt.Sprint(len(f.fileBody)))
		_, _ = w.Write(f.fileBody)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	params := f.record(method, r)

	switch method {
	case "getMe":
		ok(w, `{"id":1,"is_bot":true,"first_name":"Relay","username":"relay_bot"}`)
	case "sendMessage":
		ok(w, fmt.Sprintf(`{"message_id":77,"date":0,"chat":{"id":%s,"type":"private"},"text":"x"}`, params["chat_id"]))
	case "editMessageText":
		ok(w, `true`)
	case "answerCallbackQuery":
		ok(w, `true`)
	case "getFile":
		ok(w, fmt.Sprintf(`{"file_id":%q,"file_unique_id":"u","file_size":%d,"file_path":"documents/file_1.bin"}`, params["file_id"], len(f.fileBody)))
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{calls: map[string][]map[string]string{}, fileBody: []byte(strings.Repeat("z", 150*1024))}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(testToken, srv.URL+"/bot%s/%s", srv.Client(), logging.NewNop())
	require.NoError(t, err)
	return c, fake
}

func TestFileEndpointFor(t *testing.T) {
	assert.Equal(t, "https://api.telegram.org/file/bot%s/%s", FileEndpointFor(tgbotapi.APIEndpoint))
	assert.Equal(t, "http://local:8081/file/bot%s/%s", FileEndpointFor("http://local:8081/bot%s/%s"))
}

func TestClient_New(t *testing.T) {
	c, fake := newTestClient(t)
	assert.Equal(t, "relay_bot", c.Username())
	assert.NotNil(t, fake.last("getMe"))
}

func TestClient_SendTextWithKeyboard(t *testing.T) {
	c, fake := newTestClient(t)

	ref, err := c.SendText(context.Background(), 42, "hello", transfer.Keyboard{
		{{Text: "Cancel", Data: "cancel:42:1"}},
		{{Text: "Open", URL: "https://example.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.MessageRef{ChatID: 42, MessageID: 77}, ref)

	params := fake.last("sendMessage")
	assert.Equal(t, "42", params["chat_id"])
	assert.Equal(t, "hello", params["text"])

	var markup tgbotapi.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(params["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "cancel:42:1", *markup.InlineKeyboard[0][0].CallbackData)
	require.NotNil(t, markup.InlineKeyboard[1][0].URL)
	assert.Equal(t, "https://example.com", *markup.InlineKeyboard[1][0].URL)
}

func TestClient_SendTextWithoutKeyboard(t *testing.T) {
	c, fake := newTestClient(t)

	_, err := c.SendText(context.Background(), 1, "plain", nil)
	require.NoError(t, err)
	assert.Empty(t, fake.last("sendMessage")["reply_markup"])
}

func TestClient_EditText(t *testing.T) {
	c, fake := newTestClient(t)

	require.NoError(t, c.EditText(context.Background(), transfer.MessageRef{ChatID: 5, MessageID: 9}, "progress", nil))

	params := fake.last("editMessageText")
	assert.Equal(t, "5", params["chat_id"])
	assert.Equal(t, "9", params["message_id"])
	assert.Equal(t, "progress", params["text"])
}

func TestClient_ContextDone(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SendText(ctx, 1, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.EditText(ctx, transfer.MessageRef{ChatID: 1, MessageID: 1}, "x", nil), context.Canceled)
}

func TestClient_AnswerCallback(t *testing.T) {
	c, fake := newTestClient(t)

	require.NoError(t, c.AnswerCallback(context.Background(), "cb-1", "Cancelling..."))
	params := fake.last("answerCallbackQuery")
	assert.Equal(t, "cb-1", params["callback_query_id"])
	assert.Equal(t, "Cancelling...", params["text"])
}

func TestClient_DownloadTo(t *testing.T) {
	c, fake := newTestClient(t)
	path := filepath.Join(t.TempDir(), "out.bin")

	var calls int
	var lastCur, lastTotal int64
	err := c.DownloadTo(context.Background(), media.Document{FileID: "doc-1"}, path, func(cur, total int64) bool {
		calls++
		lastCur, lastTotal = cur, total
		return true
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fake.fileBody, got)
	assert.Equal(t, int64(len(fake.fileBody)), lastCur)
	assert.Equal(t, int64(len(fake.fileBody)), lastTotal)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Equal(t, "doc-1", fake.last("getFile")["file_id"])
}

func TestClient_DownloadToCancelled(t *testing.T) {
	c, _ := newTestClient(t)
	path := filepath.Join(t.TempDir(), "out.bin")

	err := c.DownloadTo(context.Background(), media.Document{FileID: "doc-1"}, path, func(cur, total int64) bool {
		return cur == 0
	})
	assert.ErrorIs(t, err, common.ErrCancelled)
}

func TestSourceFromMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want media.Source
		ok   bool
	}{
		{"nil", nil, nil, false},
		{"text", &tgbotapi.Message{Text: "hi"}, nil, false},
		{
			"document",
			&tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", FileName: "a.pdf", MimeType: "application/pdf", FileSize: 10}},
			media.Document{FileID: "d", Name: "a.pdf", MimeType: "application/pdf", Size: 10},
			true,
		},
		{
			"video",
			&tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v", FileUniqueID: "vu", FileSize: 20}},
			media.Video{FileID: "v", UniqueID: "vu", Size: 20},
			true,
		},
		{
			"photo picks largest",
			&tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big", FileUniqueID: "bu", FileSize: 30}}},
			media.Generic{FileID: "big", UniqueID: "bu", MimeType: "image/jpeg", Size: 30},
			true,
		},
		{
			"voice",
			&tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "o", FileUniqueID: "ou", MimeType: "audio/ogg", FileSize: 5}},
			media.Generic{FileID: "o", UniqueID: "ou", MimeType: "audio/ogg", Size: 5},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SourceFromMessage(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
