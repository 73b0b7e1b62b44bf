package events

import (
	"slices"

	audit "supplydash/pkg/platform/audit"
)

// Name identifies a domain event. The string value is the wire identifier
// stored as the audit action.
type Name string

const (
	ApprovalRequested         Name = "ApprovalRequested"
	ApprovalGranted           Name = "ApprovalGranted"
	ApprovalDenied            Name = "ApprovalDenied"
	ForecastRunStarted        Name = "ForecastRunStarted"
	ForecastRunCompleted      Name = "ForecastRunCompleted"
	ReplenishmentDraftCreated Name = "ReplenishmentDraftCreated"
)

var allNames = []Name{
	ApprovalRequested,
	ApprovalGranted,
	ApprovalDenied,
	ForecastRunStarted,
	ForecastRunCompleted,
	ReplenishmentDraftCreated,
}

// nameCategories maps each domain event to the audit category it is relayed
// under.
var nameCategories = map[Name]audit.Category{
	ApprovalRequested:         audit.CategoryCompliance,
	ApprovalGranted:           audit.CategoryCompliance,
	ApprovalDenied:            audit.CategoryCompliance,
	ForecastRunStarted:        audit.CategoryOperations,
	ForecastRunCompleted:      audit.CategoryOperations,
	ReplenishmentDraftCreated: audit.CategoryOperations,
}

// All returns every known event name in declaration order.
func All() []Name {
	return slices.Clone(allNames)
}

// Known reports whether n is one of the declared event names.
func (n Name) Known() bool {
	_, ok := nameCategories[n]
	return ok
}

// Category returns the audit category for n. Unknown names default to
// operations.
func (n Name) Category() audit.Category {
	if c, ok := nameCategories[n]; ok {
		return c
	}
	return audit.CategoryOperations
}

func (n Name) String() string { return string(n) }
