package engine

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/record"
	"github.com/roach88/redpath/internal/testutil"
)

// assertGolden executes a query against the chassis fixture and compares
// the canonical result snapshot against a golden file. To regenerate
// golden files, run:
//
//	go test ./internal/engine -update
func assertGolden(t *testing.T, name string, q query.Query) {
	t.Helper()

	planner := New(q, WithTraceTokens(testutil.NewFixedTokenGenerator("golden")))
	result := planner.Execute(context.Background(), chassisTree(t), fixedClock(t))

	canonical, err := record.MarshalCanonical(result.Snapshot())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, name, canonical)
}

func TestGolden_SingleStep(t *testing.T) {
	assertGolden(t, "single_step", query.Query{
		ID: "Q1",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	})
}

func TestGolden_NestedStatus(t *testing.T) {
	assertGolden(t, "nested_status", query.Query{
		ID: "Q2",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
		},
	})
}

func TestGolden_SharedPrefix(t *testing.T) {
	assertGolden(t, "shared_prefix", query.Query{
		ID: "Q3",
		Subqueries: []query.Subquery{
			{ID: "Ids", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Id")}},
			{ID: "Names", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	})
}
