package engine

import (
	"time"

	"github.com/roach88/redpath/internal/record"
)

// RecordSet is one output bucket: every record produced for a subquery id,
// in traversal order, plus the grouping metadata carried through verbatim.
type RecordSet struct {
	// RootSubqueryIDs is pass-through grouping metadata from the subquery
	// definition. The engine never interprets it.
	RootSubqueryIDs []string `json:"root_subquery_ids,omitempty"`

	// Records accumulates normalized records append-only.
	Records []record.Record `json:"records"`
}

// Result is the assembled output of one execution.
//
// Per-branch failures never appear here; they are reported through logs.
// A caller wishing to detect partial failure must compare record counts to
// its expectations.
type Result struct {
	// QueryIDs contains the originating query id exactly once.
	QueryIDs []string `json:"query_ids"`

	// TraceToken correlates this execution's log lines.
	TraceToken string `json:"trace_token,omitempty"`

	// Start and End are wall-clock bounds of the traversal, read from the
	// injected clock.
	Start time.Time `json:"start_timestamp"`
	End   time.Time `json:"end_timestamp"`

	// RecordsBySubqueryID maps each active subquery id to its bucket.
	// Buckets exist for every subquery that compiled, even when the
	// traversal produced no records for them.
	RecordsBySubqueryID map[string]*RecordSet `json:"records_by_subquery_id"`
}

func newResult(queryID, traceToken string) *Result {
	return &Result{
		QueryIDs:            []string{queryID},
		TraceToken:          traceToken,
		RecordsBySubqueryID: make(map[string]*RecordSet),
	}
}

// ensureBucket creates the bucket for a subquery id if it does not exist
// yet. Duplicate subquery ids alias the same bucket (map semantics); the
// first occurrence's grouping metadata wins.
func (r *Result) ensureBucket(subqueryID string, rootIDs []string) *RecordSet {
	if set, ok := r.RecordsBySubqueryID[subqueryID]; ok {
		return set
	}
	set := &RecordSet{RootSubqueryIDs: rootIDs, Records: []record.Record{}}
	r.RecordsBySubqueryID[subqueryID] = set
	return set
}

// appendRecord adds one normalized record to a subquery's bucket.
func (r *Result) appendRecord(subqueryID string, rootIDs []string, rec record.Record) {
	set := r.ensureBucket(subqueryID, rootIDs)
	set.Records = append(set.Records, rec)
}

// Snapshot renders the result as a plain map suitable for canonical
// marshalling, omitting timestamps and the trace token so two runs of the
// same query against the same tree compare bytewise equal.
func (r *Result) Snapshot() map[string]any {
	buckets := make(map[string]any, len(r.RecordsBySubqueryID))
	for id, set := range r.RecordsBySubqueryID {
		bucket := map[string]any{"records": set.Records}
		if len(set.RootSubqueryIDs) > 0 {
			bucket["root_subquery_ids"] = set.RootSubqueryIDs
		}
		buckets[id] = bucket
	}
	return map[string]any{
		"query_ids":              r.QueryIDs,
		"records_by_subquery_id": buckets,
	}
}
