package hunt

import (
	"errors"

	"go.uber.org/zap"
)

// Strategy is one tier of a fallback chain: a named, fallible way of
// producing a value.
type Strategy[T any] struct {
	Name string
	Run  func() (T, error)
}

// First tries strategies in order and returns the first success together with
// the name of the winning tier. Every tier's failure is logged before the next
// tier is attempted, so silent downgrades stay observable. When all tiers
// fail, the zero value is returned along with the joined errors.
func First[T any](logger *zap.Logger, field string, strategies []Strategy[T]) (T, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var errs []error
	for _, s := range strategies {
		v, err := s.Run()
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, err)
		logger.Debug("fallback tier failed",
			zap.String("field", field),
			zap.String("tier", s.Name),
			zap.Error(err),
		)
	}
	var zero T
	return zero, "", errors.Join(errs...)
}
