package execution

import (
	"fmt"

	"github.com/netpad/api/pkg/domain/shared"
)

// QueueFullError is returned when an execution is rejected because the
// organization already has too many executions waiting in the queue.
type QueueFullError struct {
	Pending int64
	Limit   int64
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("execution queue full: %d of %d pending", e.Pending, e.Limit)
}

// Unwrap marks this as an admission rejection.
func (e *QueueFullError) Unwrap() error {
	return shared.ErrAdmission
}
