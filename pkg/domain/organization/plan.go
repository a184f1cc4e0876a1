package organization

import (
	"fmt"

	"github.com/netpad/api/pkg/domain/shared"
)

// Plan represents an organization's subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// IsValid checks if the plan is valid.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// MonthlyExecutionLimit returns the number of workflow executions the
// plan allows per calendar month. A negative value means unlimited.
func (p Plan) MonthlyExecutionLimit() int64 {
	switch p {
	case PlanFree:
		return 1000
	case PlanPro:
		return 10000
	case PlanEnterprise:
		return -1
	default:
		return 0
	}
}

// QuotaError is returned when an execution is rejected because the
// organization has exhausted its monthly execution quota. Current is
// the usage counter after the rejected attempt was counted.
type QuotaError struct {
	Current int64
	Limit   int64
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("execution quota exceeded: %d of %d used", e.Current, e.Limit)
}

// Unwrap marks this as an admission rejection.
func (e *QuotaError) Unwrap() error {
	return shared.ErrAdmission
}

// Remaining returns the quota still available, never negative.
func (e *QuotaError) Remaining() int64 {
	if r := e.Limit - e.Current; r > 0 {
		return r
	}
	return 0
}
