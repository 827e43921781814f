package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tgrelay/internal/request"
	kit "tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

type apiCall struct {
	method string
	params map[string]string
}

// fakeBotAPI answers Bot API calls the way Telegram does for the methods the client uses.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
	fail  string // description returned for every call when non-empty
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		params := map[string]string{}

		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "multipart/form-data":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			for k, v := range r.MultipartForm.Value {
				params[k] = v[0]
			}
			for k := range r.MultipartForm.File {
				params[k] = "<file>"
			}
		default:
			body, _ := io.ReadAll(r.Body)
			var raw map[string]any
			if len(body) > 0 {
				if err := json.Unmarshal(body, &raw); err != nil {
					t.Errorf("decode body: %v", err)
				}
			}
			for k, v := range raw {
				switch vv := v.(type) {
				case string:
					params[k] = vv
				default:
					b, _ := json.Marshal(vv)
					params[k] = string(b)
				}
			}
		}

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{method: method, params: params})
		fail := f.fail
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"`+fail+`"}`)
			return
		}
		switch method {
		case "deleteMessage":
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		case "sendPhoto":
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":43,"chat":{"id":123,"type":"private"},"photo":[{"file_id":"p1","file_unique_id":"u1","width":1,"height":1}]}}`)
		case "sendVideo":
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":44,"chat":{"id":123,"type":"private"},"video":{"file_id":"v1","file_unique_id":"u2","width":1,"height":1,"duration":1}}}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"chat":{"id":123,"type":"private"}}}`)
		}
	}
}

func (f *fakeBotAPI) last(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("no Bot API calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeBotAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatalf("expected error for blank token")
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)

	ref, err := c.Send(context.Background(), &request.SendRequest{
		ChatID:  123,
		TopicID: 7,
		Text:    "*hello*",
		Kind:    request.Text,
		Buttons: [][]request.Button{{{Label: "Open", URL: "https://example.com"}}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ref.MessageID != 42 || ref.ChatID != 123 || ref.ThreadID != 7 {
		t.Fatalf("unexpected ref: %+v", ref)
	}

	call := fake.last(t)
	if call.method != "sendMessage" {
		t.Fatalf("method = %q, want sendMessage", call.method)
	}
	if call.params["text"] != "*hello*" {
		t.Fatalf("text = %q", call.params["text"])
	}
	if call.params["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %q", call.params["parse_mode"])
	}
	if call.params["message_thread_id"] != "7" {
		t.Fatalf("message_thread_id = %q", call.params["message_thread_id"])
	}
	if !strings.Contains(call.params["reply_markup"], "https://example.com") {
		t.Fatalf("reply_markup missing button url: %q", call.params["reply_markup"])
	}
}

func TestSendMedia(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	photo := filepath.Join(dir, "shot.png")
	video := filepath.Join(dir, "clip.mp4")
	for _, p := range []string{photo, video} {
		if err := os.WriteFile(p, []byte("data"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	tests := []struct {
		name       string
		kind       request.MediaKind
		path       string
		wantMethod string
		wantID     int
		field      string
		wantField  string
	}{
		{"local photo", request.Photo, photo, "sendPhoto", 43, "photo", "<file>"},
		{"remote photo", request.PhotoURL, "https://cdn.example.com/a.jpg", "sendPhoto", 43, "photo", "https://cdn.example.com/a.jpg"},
		{"local video", request.Video, video, "sendVideo", 44, "video", "<file>"},
		{"remote video", request.VideoURL, "https://cdn.example.com/a.mp4", "sendVideo", 44, "video", "https://cdn.example.com/a.mp4"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, fake := newTestClient(t)
			ref, err := c.Send(context.Background(), &request.SendRequest{
				ChatID: 123, Text: "cap", MediaPath: tt.path, Kind: tt.kind,
			})
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if ref.MessageID != tt.wantID {
				t.Fatalf("message id = %d, want %d", ref.MessageID, tt.wantID)
			}
			call := fake.last(t)
			if call.method != tt.wantMethod {
				t.Fatalf("method = %q, want %q", call.method, tt.wantMethod)
			}
			if call.params[tt.field] != tt.wantField {
				t.Fatalf("%s = %q, want %q", tt.field, call.params[tt.field], tt.wantField)
			}
			if call.params["caption"] != "cap" {
				t.Fatalf("caption = %q", call.params["caption"])
			}
		})
	}
}

func TestSendMissingFile(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)

	_, err := c.Send(context.Background(), &request.SendRequest{
		ChatID: 123, MediaPath: filepath.Join(t.TempDir(), "gone.png"), Kind: request.Photo,
	})
	if !errors.Is(err, kit.ErrFileMissing) {
		t.Fatalf("err = %v, want ErrFileMissing", err)
	}
	if fake.count() != 0 {
		t.Fatalf("no API call expected for a missing file")
	}
}

func TestSendAPIError(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	fake.fail = "Bad Request: chat not found"

	_, err := c.Send(context.Background(), &request.SendRequest{ChatID: 123, Text: "x", Kind: request.Text})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want chat not found", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)

	if err := c.Delete(context.Background(), 123, 99); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	call := fake.last(t)
	if call.method != "deleteMessage" {
		t.Fatalf("method = %q", call.method)
	}
	if call.params["chat_id"] != "123" || call.params["message_id"] != "99" {
		t.Fatalf("unexpected params: %v", call.params)
	}
}

func TestCanceledContextSkipsCall(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Send(ctx, &request.SendRequest{ChatID: 1, Text: "x", Kind: request.Text}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send err = %v", err)
	}
	if err := c.Delete(ctx, 1, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("Delete err = %v", err)
	}
	if fake.count() != 0 {
		t.Fatalf("expected no API calls")
	}
}

func TestBuildMarkup(t *testing.T) {
	t.Parallel()
	if buildMarkup(nil) != nil {
		t.Fatalf("nil rows should produce nil markup")
	}
	rm := buildMarkup([][]request.Button{
		{{Label: "a", URL: "https://a"}, {Label: "b", URL: "https://b"}},
		{{Label: "c", URL: "https://c"}},
	})
	if rm == nil || len(rm.InlineKeyboard) != 2 {
		t.Fatalf("unexpected markup: %+v", rm)
	}
	if len(rm.InlineKeyboard[0]) != 2 || rm.InlineKeyboard[1][0].URL != "https://c" {
		t.Fatalf("unexpected rows: %+v", rm.InlineKeyboard)
	}
}
