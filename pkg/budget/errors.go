package budget

import "fmt"

// ExceededError reports which budget dimension was exhausted. The tracker
// only constructs it for callers that treat exhaustion as exceptional (hard
// wrapper boundaries); it is never raised during normal admission flow.
type ExceededError struct {
	Resource string
	Used     int
	Limit    int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for %s: used %d of %d", e.Resource, e.Used, e.Limit)
}

// NewExceededError constructs an ExceededError for the given dimension.
func NewExceededError(resource string, used, limit int) *ExceededError {
	return &ExceededError{Resource: resource, Used: used, Limit: limit}
}
