// Package detach removes an entity and everything reachable from it from a
// tracking context, leaving plain unmanaged data behind.
//
// Two entry points discover the object graph differently:
//
//   - Detach walks exported struct fields with reflection, following
//     pointer and interface fields and collections of them.
//   - DetachWithNavigations walks the relationships a tracking entry
//     declares through its context's metadata.
//
// Both run the same traversal: every node is visited at most once per
// call, keyed by identity rather than value, so shared references and
// cycles terminate. A node's state is set to detached after its related
// nodes have been walked, so lazily loaded relationships are read while the
// owner is still tracked.
//
// A Detacher keeps no state between calls and the traversal never spawns
// goroutines. Detaching the same graph from several goroutines at once is
// not supported; the tracking context is expected to have a single writer.
package detach
