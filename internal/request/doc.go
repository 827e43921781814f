// Package request turns a loosely typed argument bag into validated dispatch
// requests.
//
// Automation hosts hand over a flat, case-insensitive map of strings, booleans
// and numbers (tg_chat_id, tg_text, tg_media_path, tg_btn_text0, ...). Nothing
// past this package sees that map: ParseSend and ParseDelete extract every
// field through an explicit table, infer the media kind, assemble inline
// button rows and sanitize the text for Telegram Markdown.
package request
