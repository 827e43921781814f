package request

import (
	"fmt"
	"strconv"
	"strings"

	"tgrelay/internal/result"
)

// CollectButtons reads tg_btn_text<i>/tg_btn_url<i> pairs starting at 0 and
// stops at the first index without a label. Later indices are ignored even if
// present, so a gap in numbering silently truncates the list.
func CollectButtons(args Args) result.Result[[]Button] {
	var out []Button
	for i := 0; ; i++ {
		idx := strconv.Itoa(i)
		rawText, ok := args.Lookup(buttonTextPrefix + idx)
		if !ok {
			break
		}
		label := toString(rawText)
		if strings.TrimSpace(label) == "" {
			return result.Failure[[]Button](fmt.Sprintf("button text at index %d is empty", i))
		}

		rawURL, ok := args.Lookup(buttonURLPrefix + idx)
		if !ok {
			return result.Failure[[]Button](fmt.Sprintf("missing URL for button '%s' (index %d)", label, i))
		}
		u := strings.TrimSpace(toString(rawURL))
		if u == "" {
			return result.Failure[[]Button](fmt.Sprintf("URL is empty for button '%s' (index %d)", label, i))
		}
		out = append(out, Button{Label: label, URL: u})
	}
	return result.Success(out)
}

// ApplyLayout slices flat into rows. layout lists row sizes ("2,1 3" or
// "2;1"); non-positive or non-numeric entries are skipped, a size larger than
// what is left takes the rest, and whatever remains after the list becomes a
// single final row.
func ApplyLayout(flat []Button, layout string) [][]Button {
	if len(flat) == 0 {
		return nil
	}
	sizes := parseLayout(layout)

	rows := make([][]Button, 0, len(sizes)+1)
	done := 0
	for done < len(flat) {
		take := len(flat) - done
		if len(sizes) > 0 {
			take = min(sizes[0], take)
			sizes = sizes[1:]
		}
		row := make([]Button, take)
		copy(row, flat[done:done+take])
		rows = append(rows, row)
		done += take
	}
	return rows
}

func parseLayout(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	sizes := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			continue
		}
		sizes = append(sizes, n)
	}
	return sizes
}
