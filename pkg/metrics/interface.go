package metrics

// Collector is the interface for metrics collection in relaykit.
// This interface allows for easy mocking in tests.
type Collector interface {
	// RecordDispatch counts one dispatch with its classified outcome
	// ("ok", "deferred", "transport", "auth", "permission", "application",
	// "storage").
	RecordDispatch(outcome string)

	// RecordEnqueue counts one call captured into the outbox
	RecordEnqueue()

	// SetOutboxDepth tracks the current persisted queue length
	SetOutboxDepth(depth int)

	// RecordSyncPass counts the outcome of one completed sync pass
	RecordSyncPass(synced, failed int)
}
