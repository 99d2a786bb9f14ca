package models

// BulkResult reports the outcome of an unordered bulk insert: every input
// record lands in exactly one of the two lists.
type BulkResult struct {
	Succeeded []Event
	Failed    []BulkFailure
}

// BulkFailure is one record the store refused, with the reason.
type BulkFailure struct {
	Event  Event
	Reason string
}
