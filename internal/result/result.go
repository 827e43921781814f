// Package result carries expected success/failure outcomes as values.
//
// A Result never wraps a Go error: failures that the caller is expected to
// report (bad input, a rejected API call) travel as Err strings, and a
// successful Result may still carry a non-fatal Warning.
package result

type Result[T any] struct {
	OK      bool
	Value   T
	Err     string
	Warning string
}

func Success[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// SuccessWarn is a success that degraded somewhere along the way.
func SuccessWarn[T any](v T, warning string) Result[T] {
	return Result[T]{OK: true, Value: v, Warning: warning}
}

func Failure[T any](msg string) Result[T] {
	return Result[T]{Err: msg}
}

func (r Result[T]) HasWarning() bool { return r.Warning != "" }
