// Package engine implements the danmaku scheduling engine.
//
// The engine decides, for every message on the wall, which lane it travels
// in, when it starts moving, how long its traversal takes, and how it is
// re-spawned to loop until the message is deleted.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All state transitions are triggers (a push event, a local action, a
// completion signal) applied one at a time by Engine.Run. This keeps the
// pool, lane and instance state consistent without fine-grained locking
// and makes every scenario reproducible with an injected clock.
//
// Trigger Flow:
//  1. Pool mutation (Load, Upsert, Remove) is the only way instances are
//     created or torn down.
//  2. Spawn measures the label, picks the earliest free lane and commits
//     the lane's occupancy window.
//  3. Observers are notified of every added and removed instance.
//  4. Complete removes the finished instance and respawns it if and only
//     if the message is still in the pool.
//
// Per-message state machine:
//
//	ABSENT -> SPAWNING -> TRAVERSING -> SPAWNING (loop) | ABSENT (deleted)
//
// Identity:
// Instance IDs come from a monotonic Clock, never from randomness, so
// successive loops of a message have strictly increasing IDs.
//
// Failure handling:
// Nothing in the engine is fatal. A message that cannot be measured is
// measured with a fallback approximation; a trigger that cannot be applied
// is logged and dropped; races between delete and spawn resolve to a no-op
// or an instance that stops looping.
package engine
