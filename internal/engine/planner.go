package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/redfish"
	"github.com/roach88/redpath/internal/redpath"
)

// QueryPlanner owns the compiled plan for one query: a handle per
// subquery, ready to be driven against a resource tree.
//
// Construction compiles every subquery path; a subquery that fails to
// compile is logged and dropped, and execution continues with the rest.
//
// Thread-safety model:
//   - Execute() builds all per-traversal state fresh, so a planner may run
//     concurrent Execute calls only if the resource view and normalizer
//     passed to it are themselves safe to share; otherwise serialize
//     externally.
type QueryPlanner struct {
	query      query.Query
	handles    []redpath.Handle
	normalize  Normalizer
	tokens     TraceTokenGenerator
	maxFetches int
}

// Option allows configuration of planner parameters.
type Option func(*QueryPlanner)

// WithNormalizer overrides the default property normalizer.
func WithNormalizer(n Normalizer) Option {
	return func(p *QueryPlanner) {
		p.normalize = n
	}
}

// WithTraceTokens overrides the trace token generator.
// Tests use a fixed generator for deterministic results.
func WithTraceTokens(g TraceTokenGenerator) Option {
	return func(p *QueryPlanner) {
		p.tokens = g
	}
}

// WithMaxFetches sets the child fetch budget per execution.
//
// Default: 10000 fetches (DefaultMaxFetches).
// Use a small value in tests to exercise budget enforcement.
func WithMaxFetches(n int) Option {
	return func(p *QueryPlanner) {
		p.maxFetches = n
	}
}

// New compiles a query into a planner.
//
// Each subquery compiles independently: a malformed path or unknown
// predicate invalidates only that subquery, with an error logged carrying
// the compile diagnostic. The planner is usable even when every subquery
// failed to compile (Execute then returns an empty result).
func New(q query.Query, opts ...Option) *QueryPlanner {
	p := &QueryPlanner{
		query:      q,
		normalize:  NormalizeProperties,
		tokens:     UUIDv7Generator{},
		maxFetches: DefaultMaxFetches,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, sq := range q.Subqueries {
		handle, err := redpath.NewHandle(sq)
		if err != nil {
			slog.Error("dropping subquery",
				"query_id", q.ID,
				"subquery_id", sq.ID,
				"path", sq.Path,
				"error", err,
			)
			continue
		}
		p.handles = append(p.handles, handle)
	}

	return p
}

// QueryID returns the id of the compiled query.
func (p *QueryPlanner) QueryID() string { return p.query.ID }

// ActiveSubqueries returns the ids of the subqueries that compiled, in
// declaration order. Used for diagnostics and tests.
func (p *QueryPlanner) ActiveSubqueries() []string {
	ids := make([]string, 0, len(p.handles))
	for _, h := range p.handles {
		ids = append(ids, h.Subquery.ID)
	}
	return ids
}

// Execute drives one traversal of the resource tree rooted at root and
// returns the assembled result.
//
// Execute always returns a Result: per-branch failures (transport, shape,
// normalization) are absorbed and logged, and traversal continues with
// the remaining branches. Cancelling ctx stops the traversal early and
// returns the partial result. The clock is read exactly twice, around the
// traversal.
func (p *QueryPlanner) Execute(ctx context.Context, root redfish.Variant, clock Clock) *Result {
	result := newResult(p.query.ID, p.tokens.Generate())

	// Buckets exist for every compiled subquery, even when the traversal
	// matches nothing, so an empty collection still yields empty buckets.
	for _, h := range p.handles {
		result.ensureBucket(h.Subquery.ID, h.Subquery.RootSubqueryIDs)
	}

	result.Start = clock.Now()

	t := &traversal{
		queryID:   p.query.ID,
		normalize: p.normalize,
		budget:    newFetchBudget(p.maxFetches),
		result:    result,
	}
	t.run(ctx, root, slices.Clone(p.handles))

	result.End = clock.Now()
	return result
}

// traversal is the per-execution state: the result being assembled, the
// fetch budget, and the abort flag raised by budget exhaustion or an
// invariant violation.
type traversal struct {
	queryID   string
	normalize Normalizer
	budget    *fetchBudget
	result    *Result
	aborted   bool
}

// run recurses over one node of the tree: deduplicate the next-node
// demand across handles, fetch each unique child once, and qualify the
// sharing handles against what came back.
func (t *traversal) run(ctx context.Context, v redfish.Variant, handles []redpath.Handle) {
	if t.aborted || ctx.Err() != nil {
		return
	}

	nodeToHandles := deduplicate(handles)
	if len(nodeToHandles) == 0 {
		return
	}

	// Groups are visited in node-name order so traversal is reproducible
	// given the same remote content.
	names := make([]string, 0, len(nodeToHandles))
	for name := range nodeToHandles {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if t.aborted || ctx.Err() != nil {
			return
		}
		t.dispatch(ctx, v, name, nodeToHandles[name])
	}
}

// deduplicate pairs each node name with the handles demanding it next.
// One fetch per unique name serves every handle sharing that prefix.
func deduplicate(handles []redpath.Handle) map[string][]redpath.Handle {
	nodeToHandles := make(map[string][]redpath.Handle)
	for _, h := range handles {
		if name, ok := h.NextNode(); ok {
			nodeToHandles[name] = append(nodeToHandles[name], h)
		}
	}
	return nodeToHandles
}

// dispatch fetches one unique child and qualifies the handles that
// demanded it. Collections qualify per member; singletons qualify once;
// scalars and absent children end the branch without error.
func (t *traversal) dispatch(ctx context.Context, v redfish.Variant, name string, handles []redpath.Handle) {
	if err := t.budget.check(t.queryID); err != nil {
		slog.Warn("stopping traversal: fetch budget exceeded",
			"query_id", t.queryID,
			"error", err,
		)
		t.aborted = true
		return
	}

	child, err := v.Child(ctx, name)
	if err != nil {
		// Transport failure: this branch is skipped, siblings continue.
		slog.Warn("skipping branch",
			"error", &RuntimeError{
				Code:    ErrCodeTransport,
				Message: "child fetch failed",
				QueryID: t.queryID,
				Node:    name,
				Err:     err,
			},
		)
		return
	}

	switch {
	case child.IsIterable():
		for _, member := range child.Members(ctx) {
			if t.aborted || ctx.Err() != nil {
				return
			}
			t.qualify(ctx, member, handles)
		}
	case child.IsObject():
		t.qualify(ctx, child, handles)
	default:
		// Scalar or absent: nothing to navigate.
		slog.Debug("skipping non-navigable node",
			"error", &RuntimeError{
				Code:    ErrCodeShape,
				Message: "expected object or collection",
				QueryID: t.queryID,
				Node:    name,
			},
		)
	}
}

// qualify evaluates each handle's current predicate against one candidate
// resource. Exactly one of three outcomes applies per handle: the
// predicate rejects (handle dropped for this branch), the last step
// accepts (the resource is normalized and emitted), or an inner step
// accepts (the handle continues into the recursion with its cursor
// advanced).
//
// Handles arrive by value, so cursor movement here is invisible to the
// sibling branches qualifying the same handles against other members.
func (t *traversal) qualify(ctx context.Context, member redfish.Variant, handles []redpath.Handle) {
	qualified := make([]redpath.Handle, 0, len(handles))
	for _, h := range handles {
		if _, ok := h.NextNode(); !ok {
			// A terminal handle can never re-enter qualification; if one
			// does, the engine's own bookkeeping is broken.
			slog.Error("aborting execution",
				"error", newInvariantError(t.queryID, h.Subquery.ID, "cursor past end of path in qualify"),
			)
			t.aborted = true
			return
		}

		switch h.Qualify(member) {
		case redpath.EndByPredicate:
			// Dropped for this branch.

		case redpath.EndOfPath:
			rec, ok := t.normalize(member, h.Subquery)
			if !ok {
				slog.Warn("dropping record",
					"error", &RuntimeError{
						Code:       ErrCodeNormalization,
						Message:    "no property extracted",
						QueryID:    t.queryID,
						SubqueryID: h.Subquery.ID,
					},
				)
				continue
			}
			t.result.appendRecord(h.Subquery.ID, h.Subquery.RootSubqueryIDs, rec)

		case redpath.Continue:
			qualified = append(qualified, h)
		}
	}

	if len(qualified) == 0 {
		return
	}
	t.run(ctx, member, qualified)
}
