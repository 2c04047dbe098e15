package errors

import (
	"fmt"
	"math"
)

// NumericalInstabilityError reports a monitored metric that became NaN or Inf.
type NumericalInstabilityError struct {
	Metric string
	Value  float64
	Epoch  int
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("lightning: monitored metric '%s' = %v is not finite at epoch %d", e.Metric, e.Value, e.Epoch)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(metric string, value float64, epoch int) error {
	return WithStack(&NumericalInstabilityError{Metric: metric, Value: value, Epoch: epoch})
}

// CheckScalar checks a single monitored value for NaN or Inf.
func CheckScalar(metric string, value float64, epoch int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(metric, value, epoch)
	}
	return nil
}
