package constants

// GroupStatus records what happened to one expense in a compilation run.
type GroupStatus string

// Stable values (written verbatim to manifests and events).
const (
	GroupIncluded         GroupStatus = "INCLUDED"
	GroupNoReceipts       GroupStatus = "SKIPPED_NO_RECEIPTS"
	GroupAllFetchesFailed GroupStatus = "SKIPPED_ALL_FETCHES_FAILED"
)
