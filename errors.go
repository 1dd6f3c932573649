package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when inserting a key that is already present.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDimensionMismatch matches every *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyVector is returned when inserting a vector with no components.
	ErrEmptyVector = errors.New("empty vector")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrKeyNotFound is returned when a key is not in the graph.
	ErrKeyNotFound = errors.New("key not found")

	// ErrLayerOutOfRange is returned when asking for a layer above a node's level.
	ErrLayerOutOfRange = errors.New("layer out of range")

	// ErrUnknownDistance is returned when a distance function name is not registered.
	ErrUnknownDistance = errors.New("unknown distance function")

	// ErrInvalidConfig wraps every parameter validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// DimensionMismatchError indicates a vector whose length differs from the
// dimension the graph was established with.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
