package tgmd

import (
	"strings"
	"testing"
)

func TestEscape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "valid bold", in: "*bold*", want: "*bold*"},
		{name: "valid italic", in: "_italic text_", want: "_italic text_"},
		{name: "valid code", in: "`code`", want: "`code`"},
		{name: "valid link", in: "[Link](url)", want: "[Link](url)"},
		{name: "multiple tags", in: "*bold* _italic_", want: "*bold* _italic_"},
		{name: "snake case pairs", in: "var_name_style", want: "var_name_style"},
		{name: "single underscore", in: "file_name.txt", want: `file\_name.txt`},
		{name: "single asterisk", in: "2 * 2", want: `2 \* 2`},
		{name: "unclosed code", in: "`code", want: "\\`code"},
		{name: "underscore in code", in: "`val_name`", want: "`val_name`"},
		{name: "asterisk in code", in: "`var x = *y;`", want: "`var x = *y;`"},
		{name: "orphan inside pair", in: "*b _ i*", want: `*b \_ i*`},
		{name: "open bracket", in: "[Link", want: `\[Link`},
		{name: "broken link keeps bracket", in: "[Google](google.com", want: "[Google](google.com"},
		{name: "escaped stays", in: `\*text`, want: `\*text`},
		{name: "escaped pair", in: `\*not bold\*`, want: `\*not bold\*`},
		{name: "greedy math", in: "a * b + c * d", want: "a * b + c * d"},
		{name: "hardcore broken", in: "* _ ` [", want: "\\* \\_ \\` \\["},
		{name: "literal newline", in: `line\nnext *bold`, want: "line\nnext \\*bold"},
		{name: "literal carriage return", in: `a\rb`, want: "a\rb"},
		{name: "real newline", in: "\n text *bold", want: "\n text \\*bold"},
		{name: "lookahead skips escaped", in: `*a \* b`, want: `\*a \* b`},
		{name: "unicode passthrough", in: "привет *мир*", want: "привет *мир*"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Escape(tt.in); got != tt.want {
				t.Fatalf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEscapeIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"*bold text",
		"_italic",
		"`code block",
		"2 * 2 = 4",
		"file_name.txt",
		"[ text",
		"*bold _text*",
		`\n Double text *bold`,
		"* _ ` [",
		"*a* *b",
		"mixed `co*de` and _x",
		"",
	}
	for _, in := range inputs {
		once := Escape(in)
		if twice := Escape(once); twice != once {
			t.Fatalf("Escape not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestEscapeLoneAsteriskAlwaysEscaped(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"*", "a*", "*b", "x * y", "end *"} {
		got := Escape(in)
		if strings.Count(got, `\*`) != 1 {
			t.Fatalf("Escape(%q) = %q, want exactly one escaped asterisk", in, got)
		}
	}
}

func TestEscapeKeepsEvenPairs(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"*", "_", "`"} {
		in := "x " + d + "one" + d + " y " + d + "two" + d
		if got := Escape(in); got != in {
			t.Fatalf("Escape(%q) = %q, want unchanged", in, got)
		}
	}
}
