package engine

import "fmt"

// InferenceError wraps a pipeline failure during mandatory point
// prediction. Unlike attribution or counterfactual probes, a failed point
// prediction is never absorbed: the caller needs the underlying message.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
