package pipeline

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Warren instances to safely coexist on a single Redis server.
//
// Key pattern: warren:{instance_name}:{entity}:{id}
// Channel pattern: warren:{instance_name}:{event_type}_events

// RunKey returns the Redis key for a pipeline run.
// Pattern: warren:{instance_name}:run:{request_id}
func RunKey(instanceName, requestID string) string {
	return fmt.Sprintf("warren:%s:run:%s", instanceName, requestID)
}

// RunLockKey returns the Redis key for a run's single-writer lock.
// The lock is claimed with SET NX so acquisition is an atomic test-and-set.
// Pattern: warren:{instance_name}:run:{request_id}:lock
func RunLockKey(instanceName, requestID string) string {
	return fmt.Sprintf("warren:%s:run:%s:lock", instanceName, requestID)
}

// ArtifactKey returns the Redis key for an artifact.
// Pattern: warren:{instance_name}:artifact:{artifact_id}
func ArtifactKey(instanceName, artifactID string) string {
	return fmt.Sprintf("warren:%s:artifact:%s", instanceName, artifactID)
}

// VersionsKey returns the Redis key for the version thread ZSET of a
// (run, kind) pair. Members are artifact IDs scored by version, so the
// highest score is always the current artifact.
// Pattern: warren:{instance_name}:versions:{request_id}:{kind}
func VersionsKey(instanceName, requestID string, kind ArtifactKind) string {
	return fmt.Sprintf("warren:%s:versions:%s:%s", instanceName, requestID, kind)
}

// AuditKey returns the Redis stream key for a run's append-only audit log.
// Pattern: warren:{instance_name}:audit:{request_id}
func AuditKey(instanceName, requestID string) string {
	return fmt.Sprintf("warren:%s:audit:%s", instanceName, requestID)
}

// ArtifactEventsChannel returns the Pub/Sub channel name for artifact events.
// Creation and status changes are published here for live monitoring.
// Pattern: warren:{instance_name}:artifact_events
func ArtifactEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:artifact_events", instanceName)
}
