package request

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseSendDefaults(t *testing.T) {
	t.Parallel()
	p := &Resolver{Exists: existsOnly()}
	got := p.ParseSend(NewArgs(map[string]any{"TG_CHAT_ID": "123", "tg_text": "2 * 2"}))
	if !got.OK {
		t.Fatalf("unexpected failure: %s", got.Err)
	}
	req := got.Value
	if req.ChatID != 123 {
		t.Fatalf("ChatID = %d", req.ChatID)
	}
	if req.Text != `2 \* 2` {
		t.Fatalf("Text = %q, want sanitized", req.Text)
	}
	if req.Kind != Text {
		t.Fatalf("Kind = %v, want Text", req.Kind)
	}
	if !req.Notify {
		t.Fatal("Notify should default to true")
	}
	if req.ReplacePrevious || req.DeleteAll || req.DeleteFile || req.StateKey != "" || req.TopicID != 0 {
		t.Fatalf("unexpected flags: %+v", req)
	}
	if len(req.Buttons) != 0 {
		t.Fatalf("unexpected buttons: %v", req.Buttons)
	}
}

func TestParseSendTypedValues(t *testing.T) {
	t.Parallel()
	var raw map[string]any
	body := `{"tg_chat_id": -1001234567890, "tg_topic_id": 4, "tg_state_key": "status",
		"tg_delete_prev": true, "tg_notification": "False", "tg_delete_file": "true",
		"tg_btn_text0": "Watch", "tg_btn_url0": "https://twitch.tv/x",
		"tg_btn_text1": "Chat", "tg_btn_url1": "https://t.me/x",
		"tg_btn_text2": "VOD", "tg_btn_url2": "https://youtube.com/x",
		"tg_layout": "2"}`
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := (&Resolver{Exists: existsOnly()}).ParseSend(NewArgs(raw))
	if !got.OK {
		t.Fatalf("unexpected failure: %s", got.Err)
	}
	req := got.Value
	if req.ChatID != -1001234567890 || req.TopicID != 4 {
		t.Fatalf("ids = %d/%d", req.ChatID, req.TopicID)
	}
	if req.StateKey != "status" || !req.ReplacePrevious || req.Notify || !req.DeleteFile {
		t.Fatalf("flags = %+v", req)
	}
	if len(req.Buttons) != 2 || len(req.Buttons[0]) != 2 || len(req.Buttons[1]) != 1 {
		t.Fatalf("rows = %v", req.Buttons)
	}
}

func TestParseSendFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing chat", args: map[string]any{"tg_text": "hi"}, want: "tg_chat_id is missing or invalid"},
		{name: "bad chat", args: map[string]any{"tg_chat_id": "abc"}, want: "tg_chat_id is missing or invalid"},
		{name: "fractional chat", args: map[string]any{"tg_chat_id": 1.5}, want: "tg_chat_id is missing or invalid"},
		{name: "unknown media type", args: map[string]any{"tg_chat_id": 1, "tg_media_type": "audio"}, want: "unknown media type"},
		{name: "explicit photo no path", args: map[string]any{"tg_chat_id": 1, "tg_media_type": "photo"}, want: "path is empty"},
		{name: "bad button", args: map[string]any{"tg_chat_id": 1, "tg_btn_text0": "x"}, want: "missing URL"},
	}
	p := &Resolver{Exists: existsOnly()}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.ParseSend(NewArgs(tt.args))
			if got.OK {
				t.Fatal("expected failure")
			}
			if !strings.Contains(got.Err, tt.want) {
				t.Fatalf("err = %q, want substring %q", got.Err, tt.want)
			}
		})
	}
}

func TestParseSendMediaWarning(t *testing.T) {
	t.Parallel()
	p := &Resolver{Exists: existsOnly()}
	got := p.ParseSend(NewArgs(map[string]any{"tg_chat_id": 1, "tg_media_path": "/nope.png"}))
	if !got.OK {
		t.Fatalf("unexpected failure: %s", got.Err)
	}
	if got.Value.Kind != Text || !got.HasWarning() || got.Value.Warning == "" {
		t.Fatalf("got %+v, want text with warning", got)
	}
	if got.Value.MediaPath != "/nope.png" {
		t.Fatalf("MediaPath = %q", got.Value.MediaPath)
	}
}

func TestParseDelete(t *testing.T) {
	t.Parallel()
	p := NewResolver()

	got := p.ParseDelete(NewArgs(map[string]any{"tg_chat_id": "123", "tg_state_key": "menu_key", "tg_delete_all": false}))
	if !got.OK || got.Value.StateKey != "menu_key" || got.Value.DeleteAll {
		t.Fatalf("got %+v", got)
	}

	got = p.ParseDelete(NewArgs(map[string]any{"tg_chat_id": 123, "tg_delete_all": true, "tg_topic_id": "7"}))
	if !got.OK || !got.Value.DeleteAll || got.Value.TopicID != 7 {
		t.Fatalf("got %+v", got)
	}

	got = p.ParseDelete(NewArgs(map[string]any{"tg_chat_id": 123, "tg_state_key": "   "}))
	if got.OK {
		t.Fatal("expected failure without state key or delete all")
	}

	got = p.ParseDelete(NewArgs(map[string]any{"tg_state_key": "x"}))
	if got.OK || !strings.Contains(got.Err, "tg_chat_id") {
		t.Fatalf("got %+v, want chat id failure", got)
	}
}
