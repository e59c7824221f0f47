package orchestrator

import "fmt"

// InputError reports a request that is missing required input.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// UpstreamError wraps a failure of the blob store or the findings store.
// Its message is the upstream message unchanged.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
