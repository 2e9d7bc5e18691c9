package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Attempt - 한 번의 생성 시도
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// ExhaustedError is returned when every attempt in a chain failed.
// Errs keeps each attempt's error in order, so errors.As can reach any of them.
type ExhaustedError struct {
	Label string
	Errs  []error
}

func (e *ExhaustedError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: all %d attempts failed: %s", e.Label, len(e.Errs), strings.Join(msgs, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	return e.Errs
}

// Last returns the error of the final attempt.
func (e *ExhaustedError) Last() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

// Result - 성공한 시도 정보
type Result[T any] struct {
	Value T
	// Index of the attempt that succeeded (0 = primary)
	Index int
	Name  string
}

// UsedFallback reports whether a non-primary attempt produced the value.
func (r Result[T]) UsedFallback() bool {
	return r.Index > 0
}

// Run - primary부터 순서대로 시도, 첫 성공 반환
// onFallback is called (if set) before each non-primary attempt with the previous error.
func Run[T any](ctx context.Context, label string, attempts []Attempt[T], onFallback func(next string, cause error)) (Result[T], error) {
	var zero Result[T]
	if len(attempts) == 0 {
		return zero, fmt.Errorf("%s: no attempts configured", label)
	}

	var errs []error
	for i, attempt := range attempts {
		if i > 0 {
			prev := errs[len(errs)-1]
			log.Printf("🔄 [Fallback] %s: %s failed, falling back to %s: %v", label, attempts[i-1].Name, attempt.Name, prev)
			if onFallback != nil {
				onFallback(attempt.Name, prev)
			}
		}

		value, err := attempt.Run(ctx)
		if err == nil {
			return Result[T]{Value: value, Index: i, Name: attempt.Name}, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 1 {
		return zero, errs[0]
	}
	log.Printf("❌ [Fallback] %s: all %d attempts failed", label, len(errs))
	return zero, &ExhaustedError{Label: label, Errs: errs}
}

// IsExhausted reports whether err came from a chain where every attempt failed.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
