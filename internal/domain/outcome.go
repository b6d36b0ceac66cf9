package domain

// OutcomeStatus classifies the result of dispatching an action.
type OutcomeStatus string

const (
	// OutcomeAccepted means the venue acknowledged the action.
	OutcomeAccepted OutcomeStatus = "accepted"
	// OutcomeRejected means the venue refused the action. The engine logs
	// the reason and moves on; it never resubmits the same action.
	OutcomeRejected OutcomeStatus = "rejected"
	// OutcomeUnknown means no acknowledgement arrived within the configured
	// bound. The action's effect must not be assumed either way; any
	// reconciliation is adopter policy, not the engine's.
	OutcomeUnknown OutcomeStatus = "unknown"
)

// Outcome is the executor's report for one dispatched action.
type Outcome struct {
	Status  OutcomeStatus
	OrderID OrderID // set when Status is OutcomeAccepted for a placement
	Reason  string  // set when Status is OutcomeRejected
}

// Accepted builds an acceptance outcome carrying the assigned order id.
func Accepted(id OrderID) Outcome {
	return Outcome{Status: OutcomeAccepted, OrderID: id}
}

// Rejected builds a rejection outcome with a venue-side reason.
func Rejected(reason string) Outcome {
	return Outcome{Status: OutcomeRejected, Reason: reason}
}
