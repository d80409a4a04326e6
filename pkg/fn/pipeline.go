package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "otoasist/fn"

// Stage transforms In to Out within a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then composes two stages, short-circuiting on error.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		r := first(ctx, a)
		if r.IsErr() {
			_, err := r.Unwrap()
			return Err[C](err)
		}
		v, _ := r.Unwrap()
		return second(ctx, v)
	}
}

// Pipeline composes same-typed stages in order, stopping at the first
// error.
func Pipeline[T any](stages ...Stage[T, T]) Stage[T, T] {
	return func(ctx context.Context, t T) Result[T] {
		r := Ok(t)
		for _, s := range stages {
			if r.IsErr() {
				return r
			}
			v, _ := r.Unwrap()
			r = s(ctx, v)
		}
		return r
	}
}

// MapStage lifts a pure function into a Stage.
func MapStage[In, Out any](f func(In) Out) Stage[In, Out] {
	return func(_ context.Context, in In) Result[Out] {
		return Ok(f(in))
	}
}

// TapStage runs a side effect and passes the value through unchanged.
func TapStage[T any](f func(context.Context, T)) Stage[T, T] {
	return func(ctx context.Context, t T) Result[T] {
		f(ctx, t)
		return Ok(t)
	}
}

// TracedStage wraps a stage in an OTel span named name, recording the
// error on failure.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer(tracerName).Start(ctx, name)
		defer span.End()
		r := stage(ctx, in)
		if r.IsErr() {
			_, err := r.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return r
	}
}
