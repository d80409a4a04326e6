package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Error("Ok flags wrong")
	}
	if v, err := ok.Unwrap(); v != 42 || err != nil {
		t.Errorf("Unwrap = %v, %v", v, err)
	}

	boom := errors.New("boom")
	bad := Err[int](boom)
	if bad.IsOk() {
		t.Error("Err flags wrong")
	}
	if bad.UnwrapOr(7) != 7 {
		t.Error("UnwrapOr fallback not used")
	}
	if _, err := Errf[int]("code %d", 5).Unwrap(); err == nil || err.Error() != "code 5" {
		t.Errorf("Errf = %v", err)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Error("nil error should be Ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("non-nil error should be Err")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(21), func(v int) int { return v * 2 })
	if v, _ := r.Unwrap(); v != 42 {
		t.Errorf("mapped = %d", v)
	}
	bad := MapResult(Err[int](errors.New("x")), func(v int) int { return v })
	if bad.IsOk() {
		t.Error("error must propagate through MapResult")
	}
}

func TestCollect(t *testing.T) {
	r := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	if vals, _ := r.Unwrap(); len(vals) != 3 || vals[2] != 3 {
		t.Errorf("collected = %v", vals)
	}
	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("x")), Ok(3)})
	if bad.IsOk() {
		t.Error("Collect must surface the first error")
	}
}

func TestThenShortCircuits(t *testing.T) {
	var secondRan bool
	first := Stage[int, int](func(_ context.Context, _ int) Result[int] {
		return Err[int](errors.New("first failed"))
	})
	second := Stage[int, string](func(_ context.Context, v int) Result[string] {
		secondRan = true
		return Ok(strconv.Itoa(v))
	})

	if r := Then(first, second)(context.Background(), 1); r.IsOk() {
		t.Error("composed stage should fail")
	}
	if secondRan {
		t.Error("second stage must not run after a failure")
	}
}

func TestThenComposes(t *testing.T) {
	double := MapStage(func(v int) int { return v * 2 })
	str := MapStage(strconv.Itoa)
	r := Then(double, str)(context.Background(), 21)
	if v, _ := r.Unwrap(); v != "42" {
		t.Errorf("composed = %q", v)
	}
}

func TestPipeline(t *testing.T) {
	inc := MapStage(func(v int) int { return v + 1 })
	r := Pipeline(inc, inc, inc)(context.Background(), 0)
	if v, _ := r.Unwrap(); v != 3 {
		t.Errorf("pipeline = %d", v)
	}
}

func TestTapStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, v int) { seen = v })
	if r := tap(context.Background(), 9); r.IsErr() {
		t.Fatal("tap must pass through")
	}
	if seen != 9 {
		t.Errorf("side effect saw %d", seen)
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	traced := TracedStage("test", MapStage(func(v int) int { return v + 1 }))
	if v, _ := traced(context.Background(), 1).Unwrap(); v != 2 {
		t.Errorf("traced = %d", v)
	}
	bad := TracedStage("test", Stage[int, int](func(context.Context, int) Result[int] {
		return Err[int](errors.New("x"))
	}))
	if bad(context.Background(), 1).IsOk() {
		t.Error("traced stage must preserve failure")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("transient"))
		}
		return Ok(attempts)
	})
	if v, _ := r.Unwrap(); v != 3 {
		t.Errorf("retry result = %v", v)
	}
}

func TestRetryExhausts(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("still down"))
	})
	if r.IsOk() || attempts != 2 {
		t.Errorf("attempts = %d, ok = %v", attempts, r.IsOk())
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Err[int](errors.New("down"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestSliceHelpers(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Errorf("Map = %v", doubled)
	}

	evens := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(evens) != 2 || evens[1] != 4 {
		t.Errorf("Filter = %v", evens)
	}

	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Errorf("Chunk = %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n<=0 must be nil")
	}

	uniq := UniqueBy([]string{"aa", "ab", "ba"}, func(s string) byte { return s[0] })
	if len(uniq) != 2 || uniq[0] != "aa" || uniq[1] != "ba" {
		t.Errorf("UniqueBy = %v", uniq)
	}
}
