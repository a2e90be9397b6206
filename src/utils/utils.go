package utils

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tcadamson/recap.agdg.app/src/oops"
)

// Returns the provided value, or a default value if the input was zero.
func OrDefault[T comparable](v T, def T) T {
	var zero T
	if v == zero {
		return def
	} else {
		return v
	}
}

func Must[E comparable](err E) {
	var zero E
	if err != zero {
		panic(err)
	}
}

func Must1[T any, E comparable](v T, err E) T {
	var zero E
	if err != zero {
		panic(err)
	}
	return v
}

func Must2[T1, T2 any, E comparable](v1 T1, v2 T2, err E) (T1, T2) {
	var zero E
	if err != zero {
		panic(err)
	}
	return v1, v2
}

// SortedUnique returns a new ascending slice with duplicates removed.
func SortedUnique[T cmp.Ordered](vals []T) []T {
	res := slices.Clone(vals)
	slices.Sort(res)
	return slices.Compact(res)
}

/*
Recover a panic and convert it to a returned error. Call it like so:

	func MyFunc() (err error) {
		defer utils.RecoverPanicAsError(&err)
	}

If an error was already present, the panicked error is wrapped around it, so
errors.Is still finds the original.
*/
func RecoverPanicAsError(err *error) {
	if r := recover(); r != nil {
		var recoveredErr error
		if rerr, ok := r.(error); ok {
			recoveredErr = rerr
		} else {
			recoveredErr = fmt.Errorf("panic with value: %v", r)
		}
		if *err != nil {
			recoveredErr = fmt.Errorf("%w (while returning: %w)", recoveredErr, *err)
		}
		*err = oops.New(recoveredErr, "panic recovered as error")
	}
}

var ErrSleepInterrupted = errors.New("sleep interrupted by context cancellation")

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrSleepInterrupted
	case <-timer.C:
		return nil
	}
}
