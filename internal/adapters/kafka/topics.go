package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicCrewRuns carries one record per completed or failed crew run
	TopicCrewRuns = "advisor.crew_runs"
)

// Consumer groups
const (
	GroupRunWatcher = "advisor-run-watcher"
)
