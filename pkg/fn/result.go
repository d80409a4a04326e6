// Package fn provides small generic building blocks: a Result type,
// composable pipeline stages with tracing, retry, and slice helpers.
package fn

import "fmt"

// Result carries either a value or an error, never both.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err wraps a failure.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Errf wraps a formatted failure.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// FromPair lifts a conventional (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports success.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports failure.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the underlying pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value, or fallback on failure.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.val
}

// MapResult converts Result[T] to Result[U], preserving failure.
func MapResult[T, U any](r Result[T], f func(T) U) Result[U] {
	if !r.ok {
		return Err[U](r.err)
	}
	return Ok(f(r.val))
}

// Collect flattens a slice of results into one: all values on success,
// the first error otherwise.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, len(results))
	for i, r := range results {
		if !r.ok {
			return Err[[]T](r.err)
		}
		out[i] = r.val
	}
	return Ok(out)
}
