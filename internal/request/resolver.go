package request

import (
	"strings"

	"tgrelay/internal/result"
	"tgrelay/pkg/tgmd"
)

var sendFields = []field[SendRequest]{
	{key: KeyChatID, kind: kindInt64, required: true, set: func(r *SendRequest, v any) { r.ChatID = v.(int64) }},
	{key: KeyTopicID, kind: kindInt64, set: func(r *SendRequest, v any) { r.TopicID = int(v.(int64)) }},
	{key: KeyText, kind: kindString, set: func(r *SendRequest, v any) { r.Text = tgmd.Escape(v.(string)) }},
	{key: KeyMediaPath, kind: kindString, set: func(r *SendRequest, v any) { r.MediaPath = strings.TrimSpace(v.(string)) }},
	{key: KeyStateKey, kind: kindString, set: func(r *SendRequest, v any) { r.StateKey = slotKey(v.(string)) }},
	{key: KeyDeletePrevious, kind: kindBool, set: func(r *SendRequest, v any) { r.ReplacePrevious = v.(bool) }},
	{key: KeyDeleteAll, kind: kindBool, set: func(r *SendRequest, v any) { r.DeleteAll = v.(bool) }},
	{key: KeyDeleteFile, kind: kindBool, set: func(r *SendRequest, v any) { r.DeleteFile = v.(bool) }},
	{key: KeyNotification, kind: kindBool, def: true, set: func(r *SendRequest, v any) { r.Notify = v.(bool) }},
}

var deleteFields = []field[DeleteRequest]{
	{key: KeyChatID, kind: kindInt64, required: true, set: func(r *DeleteRequest, v any) { r.ChatID = v.(int64) }},
	{key: KeyTopicID, kind: kindInt64, set: func(r *DeleteRequest, v any) { r.TopicID = int(v.(int64)) }},
	{key: KeyStateKey, kind: kindString, set: func(r *DeleteRequest, v any) { r.StateKey = slotKey(v.(string)) }},
	{key: KeyDeleteAll, kind: kindBool, set: func(r *DeleteRequest, v any) { r.DeleteAll = v.(bool) }},
	{key: KeyNotification, kind: kindBool, def: true, set: func(r *DeleteRequest, v any) { r.Notify = v.(bool) }},
}

// Resolver parses argument bags. The zero value checks the real filesystem.
type Resolver struct {
	// Exists overrides the local file check (tests).
	Exists FileChecker
}

func NewResolver() *Resolver { return &Resolver{} }

// ParseSend validates args into a SendRequest. A resolution warning (e.g.
// media degraded to text) is returned on the result and copied to the request.
func (p *Resolver) ParseSend(args Args) result.Result[*SendRequest] {
	req := &SendRequest{}
	if err := extract(args, sendFields, req); err != nil {
		return result.Failure[*SendRequest](err.Error())
	}

	rawHint := args.String(KeyMediaType)
	hint, ok := ParseHint(rawHint)
	if !ok {
		return result.Failure[*SendRequest]("unknown media type: " + rawHint)
	}
	media := ResolveMedia(MediaRef{Path: req.MediaPath, Present: args.Has(KeyMediaPath), Hint: hint}, p.Exists)
	if !media.OK {
		return result.Failure[*SendRequest](media.Err)
	}
	req.Kind = media.Value
	req.Warning = media.Warning

	buttons := CollectButtons(args)
	if !buttons.OK {
		return result.Failure[*SendRequest](buttons.Err)
	}
	req.Buttons = ApplyLayout(buttons.Value, args.String(KeyLayout))

	if req.Warning != "" {
		return result.SuccessWarn(req, req.Warning)
	}
	return result.Success(req)
}

// ParseDelete validates args into a DeleteRequest.
func (p *Resolver) ParseDelete(args Args) result.Result[*DeleteRequest] {
	req := &DeleteRequest{}
	if err := extract(args, deleteFields, req); err != nil {
		return result.Failure[*DeleteRequest](err.Error())
	}
	if req.StateKey == "" && !req.DeleteAll {
		return result.Failure[*DeleteRequest](KeyStateKey + " or " + KeyDeleteAll + " is required")
	}
	return result.Success(req)
}

// slotKey drops whitespace-only keys; anything else is kept verbatim.
func slotKey(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
