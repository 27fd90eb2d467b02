package mhdmem

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mhdmem/distance"
	"github.com/hupe1980/mhdmem/internal/store"
	"github.com/hupe1980/mhdmem/snapshot"
)

var (
	// ErrEmptyMemory is returned by Query and WeightedRead when the memory
	// holds no entries and at least one result was requested.
	ErrEmptyMemory = errors.New("memory is empty")

	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrNilStore is returned by SaveToStore and LoadFromStore for a nil blob store.
	ErrNilStore = errors.New("blob store is nil")

	// ErrBusy is returned by TryQuery when admission would have to wait.
	ErrBusy = errors.New("query admission limit reached")
)

// ErrDimensionMismatch indicates a record or mask whose width differs from
// the memory's configured width.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	// Field names the offending argument ("record", "mask", "pattern").
	Field    string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: %s has width %d, expected %d", e.Field, e.Actual, e.Expected)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidWidth indicates a configured width outside (0, snapshot.MaxWidth].
type ErrInvalidWidth struct {
	Width int
}

func (e *ErrInvalidWidth) Error() string {
	return fmt.Sprintf("invalid width: %d", e.Width)
}

// ErrInvalidCapacity indicates a configured capacity outside (0, snapshot.MaxCapacity].
type ErrInvalidCapacity struct {
	Capacity int
}

func (e *ErrInvalidCapacity) Error() string {
	return fmt.Sprintf("invalid capacity: %d", e.Capacity)
}

// ErrIndexOutOfRange indicates a bit index outside [0, Width).
type ErrIndexOutOfRange struct {
	Index int
	Width int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("bit index %d out of range for width %d", e.Index, e.Width)
}

func checkWidth(field string, expected, actual int) error {
	if expected == actual {
		return nil
	}
	return &ErrDimensionMismatch{Field: field, Expected: expected, Actual: actual, cause: distance.ErrWidthMismatch}
}

// translateError maps internal errors onto the package's error values.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	// A snapshot that decodes but cannot be restored is inconsistent.
	if errors.Is(err, store.ErrInvalidRestore) {
		return fmt.Errorf("%w: %w", snapshot.ErrCorrupt, err)
	}
	return err
}
