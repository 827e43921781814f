package request

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Args is a case-insensitive argument bag. NewArgs stores keys lower-cased;
// a literal Args with mixed-case keys is still matched by Lookup.
type Args map[string]any

// NewArgs copies raw into a case-insensitive bag. When several keys differ
// only in case, the already lower-cased spelling wins, otherwise the
// lexically smallest one.
func NewArgs(raw map[string]any) Args {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	a := make(Args, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		isExact := lk == k
		if _, seen := a[lk]; seen && (exact[lk] || !isExact) {
			continue
		}
		a[lk] = raw[k]
		exact[lk] = isExact
	}
	return a
}

// Lookup returns the value for key and whether it was present and non-nil.
func (a Args) Lookup(key string) (any, bool) {
	lk := strings.ToLower(strings.TrimSpace(key))
	v, ok := a[lk]
	if !ok {
		v, ok = a.fold(lk)
	}
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// fold scans for a key equal to lk under case folding, using the same
// precedence as NewArgs.
func (a Args) fold(lk string) (any, bool) {
	best, found := "", false
	for k := range a {
		if !strings.EqualFold(strings.TrimSpace(k), lk) {
			continue
		}
		if !found || k < best {
			best, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return a[best], true
}

// String returns the value for key as a string, or "" when absent.
func (a Args) String(key string) string {
	v, ok := a.Lookup(key)
	if !ok {
		return ""
	}
	return toString(v)
}

func (a Args) Has(key string) bool {
	_, ok := a.Lookup(key)
	return ok
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt64
	kindBool
)

// field is one row of an extraction table: which key, how to read it, what
// to use when it is absent or unreadable, and where to put it.
type field[R any] struct {
	key      string
	kind     fieldKind
	def      any
	required bool
	set      func(r *R, v any)
}

// extract fills dst from args following fields. A required field that is
// missing or unparsable is an error; optional ones fall back to their default.
func extract[R any](args Args, fields []field[R], dst *R) error {
	for _, f := range fields {
		raw, present := args.Lookup(f.key)
		var (
			v  any
			ok bool
		)
		if present {
			v, ok = convert(raw, f.kind)
		}
		if !ok {
			if f.required {
				return fmt.Errorf("%s is missing or invalid", f.key)
			}
			v = f.def
			if v == nil {
				v = zeroOf(f.kind)
			}
		}
		f.set(dst, v)
	}
	return nil
}

func zeroOf(k fieldKind) any {
	switch k {
	case kindInt64:
		return int64(0)
	case kindBool:
		return false
	default:
		return ""
	}
}

func convert(v any, k fieldKind) (any, bool) {
	switch k {
	case kindInt64:
		return toInt64(v)
	case kindBool:
		return toBool(v)
	default:
		return toString(v), true
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) (any, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.Abs(x) >= 1<<63 {
			return nil, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	default:
		return nil, false
	}
}

func toBool(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(x)))
		return b, err == nil
	default:
		// Numeric flags: 0 is false, anything else true.
		n, ok := toInt64(v)
		if !ok {
			return nil, false
		}
		return n.(int64) != 0, true
	}
}
