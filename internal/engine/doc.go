// Package engine implements the redpath query planner and execution
// engine.
//
// The engine compiles a declarative query into per-subquery handles, then
// walks the remote Redfish resource tree depth-first, coalescing the
// fetches shared by subqueries with a common path prefix so the transport
// sees one request per unique node rather than one per subquery.
//
// ARCHITECTURE:
//
// Single-threaded cooperative traversal:
// One Execute call owns its traversal state and drives the recursion
// sequentially. The engine issues no goroutines; the only blocking calls
// are into the resource view (and through it, the transport). A
// cancellation token is checked between qualify iterations, returning a
// partial result early.
//
// Traversal flow per node:
//  1. deduplicate: group active handles by the node name each demands next
//  2. dispatch: fetch each unique child once; iterate collections,
//     qualify singletons directly
//  3. qualify: per handle, exactly one of three outcomes - the predicate
//     rejects, the final step matches (normalize and emit), or the cursor
//     advances into the recursion
//
// Handles move by value through the recursion, so each branch owns its
// cursor; a handle advanced down one collection member is untouched in
// its siblings.
//
// ERROR HANDLING: Per-branch failures (transport, shape, normalization)
// are logged and absorbed; traversal completes best-effort and Execute
// always returns a Result. Only a violated engine invariant aborts the
// current execution.
package engine
