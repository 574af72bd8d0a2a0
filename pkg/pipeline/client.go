package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ImmutableArtifactError is returned when a caller attempts to change the
// content, content hash, or parent hashes of an approved artifact. Approval
// is absolute: regeneration creates a new version instead.
type ImmutableArtifactError struct {
	ArtifactID string
	Field      string
}

func (e *ImmutableArtifactError) Error() string {
	return fmt.Sprintf("artifact %s is approved and immutable: cannot change %s", e.ArtifactID, e.Field)
}

// IsImmutable returns true if the error is an ImmutableArtifactError.
func IsImmutable(err error) bool {
	var target *ImmutableArtifactError
	return errors.As(err, &target)
}

// Client provides instance-scoped Redis operations for the pipeline store.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines; cross-call consistency within one run is the conductor's job.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new pipeline store client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Warren instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// CreateRun writes a new pipeline run to Redis.
// Returns an error if a run with the same request ID already exists.
func (c *Client) CreateRun(ctx context.Context, run *PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	key := RunKey(c.instanceName, run.RequestID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check run existence: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("run %s already exists", run.RequestID)
	}

	if err := c.rdb.HSet(ctx, key, RunToHash(run)).Err(); err != nil {
		return fmt.Errorf("failed to write run to Redis: %w", err)
	}

	return nil
}

// GetRun retrieves a pipeline run by request ID.
// Returns (nil, redis.Nil) if the run doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetRun(ctx context.Context, requestID string) (*PipelineRun, error) {
	key := RunKey(c.instanceName, requestID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToRun(hashData)
}

// UpdateRun replaces an existing run's fields (full HSET replacement).
// Only the conductor should call this; producers never mutate run state
// directly.
func (c *Client) UpdateRun(ctx context.Context, run *PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	key := RunKey(c.instanceName, run.RequestID)
	if err := c.rdb.HSet(ctx, key, RunToHash(run)).Err(); err != nil {
		return fmt.Errorf("failed to update run in Redis: %w", err)
	}

	return nil
}

// AcquireRunLock claims the single-writer lock for a run.
// The claim is an atomic test-and-set (SET NX): it never blocks and never
// queues. Returns (false, nil) if the lock is already held.
func (c *Client) AcquireRunLock(ctx context.Context, requestID, holder string) (bool, error) {
	key := RunLockKey(c.instanceName, requestID)
	ok, err := c.rdb.SetNX(ctx, key, holder, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// ReleaseRunLock releases the single-writer lock unconditionally.
// Idempotent: releasing an unheld lock is a no-op.
func (c *Client) ReleaseRunLock(ctx context.Context, requestID string) error {
	key := RunLockKey(c.instanceName, requestID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// RunLockHolder returns the current lock holder, or "" if the lock is free.
func (c *Client) RunLockHolder(ctx context.Context, requestID string) (string, error) {
	key := RunLockKey(c.instanceName, requestID)
	holder, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read run lock: %w", err)
	}
	return holder, nil
}

// CreateArtifact writes an artifact to Redis, adds it to the (run, kind)
// version thread, and publishes an event to artifact_events.
// Validates the artifact before writing.
func (c *Client) CreateArtifact(ctx context.Context, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid artifact: %w", err)
	}

	hash, err := ArtifactToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize artifact: %w", err)
	}

	key := ArtifactKey(c.instanceName, a.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write artifact to Redis: %w", err)
	}

	// Track in the version thread: highest score is the current artifact.
	versionsKey := VersionsKey(c.instanceName, a.RequestID, a.Kind)
	z := redis.Z{Score: float64(a.Version), Member: a.ID}
	if err := c.rdb.ZAdd(ctx, versionsKey, z).Err(); err != nil {
		return fmt.Errorf("failed to add artifact to version thread: %w", err)
	}

	return c.publishArtifactEvent(ctx, a)
}

// GetArtifact retrieves an artifact by ID.
// Returns (nil, redis.Nil) if the artifact doesn't exist.
func (c *Client) GetArtifact(ctx context.Context, artifactID string) (*Artifact, error) {
	key := ArtifactKey(c.instanceName, artifactID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToArtifact(hashData)
}

// CurrentArtifact retrieves the highest-version artifact of a kind for a run.
// Returns (nil, redis.Nil) if no artifact of that kind exists.
func (c *Client) CurrentArtifact(ctx context.Context, requestID string, kind ArtifactKind) (*Artifact, error) {
	versionsKey := VersionsKey(c.instanceName, requestID, kind)

	results, err := c.rdb.ZRevRangeWithScores(ctx, versionsKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read version thread: %w", err)
	}

	if len(results) == 0 {
		return nil, redis.Nil
	}

	return c.GetArtifact(ctx, results[0].Member.(string))
}

// NextVersion returns the next version number for a (run, kind) pair.
// Returns 1 when no artifact of that kind exists yet.
func (c *Client) NextVersion(ctx context.Context, requestID string, kind ArtifactKind) (int, error) {
	versionsKey := VersionsKey(c.instanceName, requestID, kind)

	results, err := c.rdb.ZRevRangeWithScores(ctx, versionsKey, 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read version thread: %w", err)
	}

	if len(results) == 0 {
		return 1, nil
	}

	return int(results[0].Score) + 1, nil
}

// ListArtifacts returns every version of a kind for a run, oldest first.
// Pass statusFilter == "" to include all statuses.
func (c *Client) ListArtifacts(ctx context.Context, requestID string, kind ArtifactKind, statusFilter ArtifactStatus) ([]*Artifact, error) {
	versionsKey := VersionsKey(c.instanceName, requestID, kind)

	ids, err := c.rdb.ZRange(ctx, versionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read version thread: %w", err)
	}

	artifacts := make([]*Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := c.GetArtifact(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch artifact %s: %w", id, err)
		}
		if statusFilter != "" && a.Status != statusFilter {
			continue
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, nil
}

// UpdateArtifact replaces an existing artifact's fields, enforcing the
// approval immutability invariant: once an artifact is approved, its content,
// content hash, and parent hashes can never change again. A second approval
// of the same artifact is rejected rather than re-hashed.
func (c *Client) UpdateArtifact(ctx context.Context, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid artifact: %w", err)
	}

	existing, err := c.GetArtifact(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch existing artifact: %w", err)
	}

	if existing.Status == StatusApproved {
		if field := approvedFieldChange(existing, a); field != "" {
			return &ImmutableArtifactError{ArtifactID: a.ID, Field: field}
		}
	}

	hash, err := ArtifactToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize artifact: %w", err)
	}

	key := ArtifactKey(c.instanceName, a.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to update artifact in Redis: %w", err)
	}

	return c.publishArtifactEvent(ctx, a)
}

// approvedFieldChange reports which locked field an update would change on an
// already-approved artifact, or "" if the update is harmless.
func approvedFieldChange(existing, updated *Artifact) string {
	if updated.Status != StatusApproved {
		return "status"
	}
	if updated.ContentHash != existing.ContentHash {
		return "content_hash"
	}

	existingContent, err := EncodeContract(existing.Content)
	if err != nil {
		return "content"
	}
	updatedContent, err := EncodeContract(updated.Content)
	if err != nil || string(existingContent) != string(updatedContent) {
		return "content"
	}

	if len(existing.ParentHashes) != len(updated.ParentHashes) {
		return "parent_hashes"
	}
	for kind, hash := range existing.ParentHashes {
		if updated.ParentHashes[kind] != hash {
			return "parent_hashes"
		}
	}

	return ""
}

// DeleteArtifact removes an artifact and its version-thread entry.
// Operator cleanup only: the normal rejection path retains the artifact with
// status rejected so the audit trail stays replayable.
func (c *Client) DeleteArtifact(ctx context.Context, artifactID string) error {
	a, err := c.GetArtifact(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact for deletion: %w", err)
	}

	versionsKey := VersionsKey(c.instanceName, a.RequestID, a.Kind)
	if err := c.rdb.ZRem(ctx, versionsKey, artifactID).Err(); err != nil {
		return fmt.Errorf("failed to remove artifact from version thread: %w", err)
	}

	key := ArtifactKey(c.instanceName, artifactID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	return nil
}

// AppendAudit appends an event to a run's audit stream.
// The stream is append-only; entries are never rewritten.
func (c *Client) AppendAudit(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	key := AuditKey(c.instanceName, event.RequestID)
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{
			"type":      event.Type,
			"agent":     event.Agent,
			"message":   event.Message,
			"timestamp": event.Timestamp,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// ReadAudit returns a run's audit events in insertion order.
func (c *Client) ReadAudit(ctx context.Context, requestID string) ([]*AuditEvent, error) {
	key := AuditKey(c.instanceName, requestID)

	messages, err := c.rdb.XRange(ctx, key, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}

	events := make([]*AuditEvent, 0, len(messages))
	for _, msg := range messages {
		event := &AuditEvent{
			RequestID: requestID,
			Type:      stringValue(msg.Values, "type"),
			Agent:     stringValue(msg.Values, "agent"),
			Message:   stringValue(msg.Values, "message"),
		}
		if ts := stringValue(msg.Values, "timestamp"); ts != "" {
			fmt.Sscanf(ts, "%d", &event.Timestamp)
		}
		events = append(events, event)
	}

	return events, nil
}

func stringValue(values map[string]interface{}, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

// publishArtifactEvent publishes the full artifact JSON to artifact_events.
func (c *Client) publishArtifactEvent(ctx context.Context, a *Artifact) error {
	artifactJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact for event: %w", err)
	}

	channel := ArtifactEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, artifactJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish artifact event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to artifact events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Artifact
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of artifact events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan *Artifact {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeArtifactEvents subscribes to artifact events for this instance.
// Returns a Subscription that delivers full artifact objects.
// Caller must call subscription.Close() when done.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeArtifactEvents(ctx context.Context) (*Subscription, error) {
	channel := ArtifactEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Artifact, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var artifact Artifact
				if err := json.Unmarshal([]byte(msg.Payload), &artifact); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal artifact event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &artifact:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetRun, GetArtifact, or CurrentArtifact
// returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
