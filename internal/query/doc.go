// Package query defines the compiled, in-memory form of a declarative
// platform query: a query identifier plus an ordered set of subqueries,
// each carrying a path expression over the Redfish resource tree and the
// typed properties to extract from matching resources.
//
// The types here are immutable inputs to the engine. Path expressions are
// carried as strings; compiling them into executable steps is the redpath
// package's job, so a query with a malformed path is still representable
// (the engine drops it with a diagnostic at plan construction).
package query
