// Package pipeline provides type-safe Go definitions and Redis schema patterns
// for the Warren pipeline state. The pipeline store is the shared state system
// where all Warren components (conductor, producers, CLI) interact via
// well-defined data structures stored in Redis.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Warren instances to safely coexist on a single Redis server.
//
// The two central entities are:
//
//   - PipelineRun: one per top-level request. Tracks the current stage, the
//     single-writer lock, and the awaiting-human gate. Mutated exclusively
//     through the conductor package.
//
//   - Artifact: one versioned, eventually-immutable work product per
//     (run, kind, version). Once approved, an artifact's content, content
//     hash, and parent hashes never change again; regeneration creates a new
//     version instead.
//
// Every artifact records the exact content hash of each upstream artifact it
// was derived from (the hash chain), never a copy of upstream content.
package pipeline
