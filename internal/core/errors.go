package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidInput marks a caller precondition violation. It is never retried
	// and always reaches the caller unmodified.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a failed or timed out embedding or vector
	// store call.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrPartialWrite marks a memory write batch where some turns failed.
	ErrPartialWrite = errors.New("partial write")
)

// PartialWriteError lists the turn indices that could not be stored.
// Records written for other turns are kept.
type PartialWriteError struct {
	Total   int
	Failed  []int
	Reasons map[int]error
}

func (e *PartialWriteError) Error() string {
	idx := make([]string, 0, len(e.Failed))
	for _, i := range e.Failed {
		idx = append(idx, fmt.Sprint(i))
	}
	return fmt.Sprintf("%s: %d of %d turns failed (indices %s)",
		ErrPartialWrite, len(e.Failed), e.Total, strings.Join(idx, ","))
}

func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

// Unwrap exposes the per-turn causes so errors.Is can see ErrProviderUnavailable.
func (e *PartialWriteError) Unwrap() []error {
	out := make([]error, 0, len(e.Reasons))
	for _, i := range e.Failed {
		if err, ok := e.Reasons[i]; ok {
			out = append(out, err)
		}
	}
	return out
}

func NewPartialWriteError(total int, reasons map[int]error) *PartialWriteError {
	failed := make([]int, 0, len(reasons))
	for i := range reasons {
		failed = append(failed, i)
	}
	sort.Ints(failed)
	return &PartialWriteError{Total: total, Failed: failed, Reasons: reasons}
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
