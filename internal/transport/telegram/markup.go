package telegram

import (
	tele "gopkg.in/telebot.v4"

	"tgrelay/internal/request"
)

// inline is a small builder for URL-button inline keyboards.
// Rows are kept as tele.Row and applied via ReplyMarkup.Inline().
type inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func newInline() *inline {
	return &inline{rm: &tele.ReplyMarkup{}}
}

func (i *inline) row(btn ...tele.Btn) *inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

func urlBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}

// buildMarkup returns nil when there is nothing to attach.
func buildMarkup(rows [][]request.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := newInline()
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		btns := make([]tele.Btn, 0, len(r))
		for _, b := range r {
			btns = append(btns, urlBtn(b.Label, b.URL))
		}
		kb.row(btns...)
	}
	if len(kb.rows) == 0 {
		return nil
	}
	return kb.rm
}
