package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrInputShape means the feature matrix does not have the width or the
	// finite values the models were trained on.
	ErrInputShape = errors.New("invalid feature matrix")
	// ErrOutputShape means a model returned a matrix that is not N×10.
	ErrOutputShape = errors.New("invalid prediction matrix")
)

// ModelInvocationError is fatal to a run: a regressor rejected the input or
// failed. Model is empty when the input was rejected before any invocation.
type ModelInvocationError struct {
	Model string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("model input rejected: %v", e.Err)
	}
	return fmt.Sprintf("model %s failed: %v", e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }
