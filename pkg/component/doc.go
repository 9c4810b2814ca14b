// Package component is the runtime for persistent, typed component nodes.
//
// A [Graph] owns an arena of [Node] values backed by a [Store]. Nodes form a
// general directed graph: a node may appear under several parents and may
// (directly or transitively) contain itself. The runtime never assumes a
// tree; traversals go through [Walk], which visits each reachable node once.
//
// # Identity
//
// Every node has a stable id assigned at creation by an [IdentitySource].
// Within one Graph, looking up the same id twice returns the same *Node for
// as long as the node is reachable from the caller. The arena holds nodes
// through weak pointers, so nodes nobody references are collected; nodes
// with unsaved changes are pinned until they are committed.
//
// # Child references
//
// A node's ordered child list is not held by the node. It lives in a soft
// cache keyed by (id, committed version) and is reloaded from the store on a
// miss. Structural mutations write to an uncommitted overlay on the node,
// which takes precedence over the cache until [Node.Save] commits it.
// Evicting a cache entry is therefore always safe.
//
// # Work units
//
// Each node may name a delegate. Dirty state is tracked per work unit: a
// node with a delegate reports the delegate's dirty status, and saving any
// member of a unit commits the whole unit. Saves of one unit are serialized;
// saves of unrelated units may run concurrently.
//
// # Policy
//
// Creation and every structural mutation consult a [PolicyGate] before
// anything changes. A denied proposal is a no-op that returns an error with
// code POLICY_DENIED carrying the gate's message.
package component
