// Package tgmd prepares free-form text for Telegram's legacy Markdown parse mode.
//
// Telegram rejects a whole message when a `*`, `_` or backtick toggle is left
// unmatched, or when a `[` does not start a link. Escape keeps every delimiter
// that has a partner later in the text and backslash-escapes the orphans, so
// user supplied text can be sent with ParseMode=Markdown without failing.
package tgmd
