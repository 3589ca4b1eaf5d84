package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/redpath/internal/mockup"
	"github.com/roach88/redpath/internal/query"
	"github.com/roach88/redpath/internal/record"
	"github.com/roach88/redpath/internal/redfish"
	"github.com/roach88/redpath/internal/testutil"
)

// chassisTree is the literal fixture used across executor tests: one
// chassis member in the Chassis collection, standby-offline.
func chassisTree(t *testing.T) redfish.Variant {
	t.Helper()
	return decodeVariant(t, `{
		"Chassis": {
			"Members": [
				{
					"Name": "chassis",
					"Id": "chassis",
					"Status": {"State": "StandbyOffline"}
				}
			],
			"Members@odata.count": 1
		}
	}`)
}

func stringProp(path string) query.Property {
	return query.Property{Path: path, Type: query.PrimitiveString}
}

func fixedClock(t *testing.T) *testutil.FakeClock {
	t.Helper()
	return testutil.NewFakeClock(time.Date(2022, 7, 5, 12, 0, 0, 0, time.UTC))
}

func TestExecute_SingleStepCollection(t *testing.T) {
	q := query.Query{
		ID: "Q1",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q).Execute(context.Background(), chassisTree(t), fixedClock(t))

	assert.Equal(t, []string{"Q1"}, result.QueryIDs)
	require.Contains(t, result.RecordsBySubqueryID, "S1")
	require.Len(t, result.RecordsBySubqueryID["S1"].Records, 1)
	assert.Equal(t,
		record.Record{"Name": record.String("chassis")},
		result.RecordsBySubqueryID["S1"].Records[0])
}

func TestExecute_TwoStepPath(t *testing.T) {
	q := query.Query{
		ID: "Q2",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
		},
	}

	result := New(q).Execute(context.Background(), chassisTree(t), fixedClock(t))

	require.Len(t, result.RecordsBySubqueryID["S1"].Records, 1)
	assert.Equal(t,
		record.Record{"State": record.String("StandbyOffline")},
		result.RecordsBySubqueryID["S1"].Records[0])
}

func TestExecute_SharedPrefixFetchedOnce(t *testing.T) {
	service, err := mockup.NewService(map[string]any{
		"/redfish/v1": map[string]any{
			"Chassis": map[string]any{"@odata.id": "/redfish/v1/Chassis"},
		},
		"/redfish/v1/Chassis": map[string]any{
			"Members": []any{
				map[string]any{"@odata.id": "/redfish/v1/Chassis/chassis"},
			},
			"Members@odata.count": 1,
		},
		"/redfish/v1/Chassis/chassis": map[string]any{
			"Name":   "chassis",
			"Id":     "chassis",
			"Status": map[string]any{"State": "StandbyOffline"},
		},
	})
	require.NoError(t, err)
	defer service.Close()

	counting := mockup.NewCountingTransport(service.Transport())
	root, err := redfish.ServiceRoot(context.Background(), counting)
	require.NoError(t, err)

	q := query.Query{
		ID: "Q3",
		Subqueries: []query.Subquery{
			{ID: "Names", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "Ids", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Id")}},
		},
	}

	result := New(q).Execute(context.Background(), root, fixedClock(t))

	require.Len(t, result.RecordsBySubqueryID["Names"].Records, 1)
	require.Len(t, result.RecordsBySubqueryID["Ids"].Records, 1)
	assert.Equal(t, record.String("chassis"), result.RecordsBySubqueryID["Names"].Records[0]["Name"])
	assert.Equal(t, record.String("chassis"), result.RecordsBySubqueryID["Ids"].Records[0]["Id"])

	// The shared /Chassis[*] prefix coalesces: one fetch per unique node,
	// regardless of how many subqueries demand it.
	assert.Equal(t, 1, counting.Count("/redfish/v1/Chassis"))
	assert.Equal(t, 1, counting.Count("/redfish/v1/Chassis/chassis"))
}

func TestExecute_EmptyCollection(t *testing.T) {
	root := decodeVariant(t, `{"Chassis": {"Members": [], "Members@odata.count": 0}}`)

	q := query.Query{
		ID: "Q4",
		Subqueries: []query.Subquery{
			{ID: "Names", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "States", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
		},
	}

	clock := fixedClock(t)
	result := New(q).Execute(context.Background(), root, clock)

	// Buckets exist even though nothing matched.
	require.Contains(t, result.RecordsBySubqueryID, "Names")
	require.Contains(t, result.RecordsBySubqueryID, "States")
	assert.Empty(t, result.RecordsBySubqueryID["Names"].Records)
	assert.Empty(t, result.RecordsBySubqueryID["States"].Records)

	assert.False(t, result.Start.IsZero())
	assert.False(t, result.End.IsZero())
	assert.True(t, !result.End.Before(result.Start))
}

func TestExecute_MalformedSubqueryDroppedSiblingsSurvive(t *testing.T) {
	q := query.Query{
		ID: "Q5",
		Subqueries: []query.Subquery{
			{ID: "Bad", Path: "/Chassis*", Properties: []query.Property{stringProp("Name")}},
			{ID: "Good", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	planner := New(q)
	assert.Equal(t, []string{"Good"}, planner.ActiveSubqueries())

	result := planner.Execute(context.Background(), chassisTree(t), fixedClock(t))

	require.Len(t, result.RecordsBySubqueryID["Good"].Records, 1)
	// The malformed subquery never entered the active set: no bucket.
	assert.NotContains(t, result.RecordsBySubqueryID, "Bad")
}

func TestExecute_UnsupportedPredicateDropped(t *testing.T) {
	q := query.Query{
		ID: "Q6",
		Subqueries: []query.Subquery{
			{ID: "Filtered", Path: "/Chassis[Name=foo]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	planner := New(q)
	assert.Empty(t, planner.ActiveSubqueries())

	result := planner.Execute(context.Background(), chassisTree(t), fixedClock(t))

	assert.Equal(t, []string{"Q6"}, result.QueryIDs)
	assert.NotContains(t, result.RecordsBySubqueryID, "Filtered")
}

func TestExecute_EmptySubqueryList(t *testing.T) {
	result := New(query.Query{ID: "Q7"}).Execute(context.Background(), chassisTree(t), fixedClock(t))

	assert.Equal(t, []string{"Q7"}, result.QueryIDs)
	assert.Empty(t, result.RecordsBySubqueryID)
}

func TestExecute_AbsentFirstStep(t *testing.T) {
	q := query.Query{
		ID: "Q8",
		Subqueries: []query.Subquery{
			{ID: "Missing", Path: "/Managers[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "Present", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q).Execute(context.Background(), chassisTree(t), fixedClock(t))

	assert.Empty(t, result.RecordsBySubqueryID["Missing"].Records)
	assert.Len(t, result.RecordsBySubqueryID["Present"].Records, 1)
}

func TestExecute_ScalarCollectionMembersSkipped(t *testing.T) {
	root := decodeVariant(t, `{"Chassis": {"Members": [1, "two", true]}}`)

	q := query.Query{
		ID: "Q9",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q).Execute(context.Background(), root, fixedClock(t))

	assert.Empty(t, result.RecordsBySubqueryID["S1"].Records)
}

func TestExecute_DuplicateSubqueryIDsShareBucket(t *testing.T) {
	sq := query.Subquery{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}}
	q := query.Query{ID: "Q10", Subqueries: []query.Subquery{sq, sq}}

	result := New(q).Execute(context.Background(), chassisTree(t), fixedClock(t))

	// Map semantics: both copies fold into one bucket, twice the records.
	require.Len(t, result.RecordsBySubqueryID, 1)
	assert.Len(t, result.RecordsBySubqueryID["S1"].Records, 2)
}

func TestExecute_MultipleMembersEachEmit(t *testing.T) {
	root := decodeVariant(t, `{
		"Chassis": {
			"Members": [
				{"Name": "chassis-a", "Status": {"State": "Enabled"}},
				{"Name": "chassis-b", "Status": {"State": "StandbyOffline"}}
			]
		}
	}`)

	q := query.Query{
		ID: "Q11",
		Subqueries: []query.Subquery{
			{ID: "Names", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "States", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
		},
	}

	result := New(q).Execute(context.Background(), root, fixedClock(t))

	// Every matching resource emits, in traversal order.
	names := result.RecordsBySubqueryID["Names"].Records
	require.Len(t, names, 2)
	assert.Equal(t, record.String("chassis-a"), names[0]["Name"])
	assert.Equal(t, record.String("chassis-b"), names[1]["Name"])

	states := result.RecordsBySubqueryID["States"].Records
	require.Len(t, states, 2)
	assert.Equal(t, record.String("Enabled"), states[0]["State"])
	assert.Equal(t, record.String("StandbyOffline"), states[1]["State"])
}

func TestExecute_DivergingPathsShareFetchedPrefix(t *testing.T) {
	root := decodeVariant(t, `{
		"Chassis": {
			"Members": [
				{
					"Name": "chassis",
					"Status": {"State": "Enabled"},
					"Thermal": {"Id": "thermal-1"}
				}
			]
		}
	}`)

	q := query.Query{
		ID: "Q12",
		Subqueries: []query.Subquery{
			{ID: "States", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
			{ID: "Thermals", Path: "/Chassis[*]/Thermal[*]", Properties: []query.Property{stringProp("Id")}},
		},
	}

	result := New(q).Execute(context.Background(), root, fixedClock(t))

	// Each subquery records independently at its own terminal step.
	require.Len(t, result.RecordsBySubqueryID["States"].Records, 1)
	require.Len(t, result.RecordsBySubqueryID["Thermals"].Records, 1)
}

func TestExecute_RootSubqueryIDsPreservedVerbatim(t *testing.T) {
	q := query.Query{
		ID: "Q13",
		Subqueries: []query.Subquery{
			{
				ID:              "States",
				Path:            "/Chassis[*]/Status[*]",
				Properties:      []query.Property{stringProp("State")},
				RootSubqueryIDs: []string{"Chassis", "Enclosure"},
			},
		},
	}

	result := New(q).Execute(context.Background(), chassisTree(t), fixedClock(t))

	assert.Equal(t, []string{"Chassis", "Enclosure"}, result.RecordsBySubqueryID["States"].RootSubqueryIDs)
}

func TestExecute_TransportFailureSkipsBranch(t *testing.T) {
	// The Chassis reference points at a resource the service does not
	// serve; the Managers branch still succeeds.
	service, err := mockup.NewService(map[string]any{
		"/redfish/v1": map[string]any{
			"Chassis":  map[string]any{"@odata.id": "/redfish/v1/Chassis"},
			"Managers": map[string]any{"Members": []any{map[string]any{"Name": "bmc"}}},
		},
	})
	require.NoError(t, err)
	defer service.Close()

	root, err := redfish.ServiceRoot(context.Background(), service.Transport())
	require.NoError(t, err)

	q := query.Query{
		ID: "Q14",
		Subqueries: []query.Subquery{
			{ID: "Chassis", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "Managers", Path: "/Managers[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q).Execute(context.Background(), root, fixedClock(t))

	assert.Empty(t, result.RecordsBySubqueryID["Chassis"].Records)
	require.Len(t, result.RecordsBySubqueryID["Managers"].Records, 1)
	assert.Equal(t, record.String("bmc"), result.RecordsBySubqueryID["Managers"].Records[0]["Name"])
}

func TestExecute_RepeatRunsIdentical(t *testing.T) {
	q := query.Query{
		ID: "Q15",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "S2", Path: "/Chassis[*]/Status[*]", Properties: []query.Property{stringProp("State")}},
		},
	}

	planner := New(q, WithTraceTokens(testutil.NewFixedTokenGenerator("t-1", "t-2")))
	root := chassisTree(t)
	clock := fixedClock(t)

	first := planner.Execute(context.Background(), root, clock)
	second := planner.Execute(context.Background(), root, clock)

	// Bytewise equal apart from timestamps and trace tokens, which the
	// snapshot omits.
	firstCanonical, err := record.MarshalCanonical(first.Snapshot())
	require.NoError(t, err)
	secondCanonical, err := record.MarshalCanonical(second.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, firstCanonical, secondCanonical)
}

func TestExecute_ClockReadAroundTraversal(t *testing.T) {
	clock := fixedClock(t)
	start := clock.Now()

	q := query.Query{
		ID: "Q16",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	// A normalizer that advances the clock proves Start is read before
	// traversal and End after it.
	advancing := func(v redfish.Variant, sq query.Subquery) (record.Record, bool) {
		clock.Advance(time.Second)
		return NormalizeProperties(v, sq)
	}

	result := New(q, WithNormalizer(advancing)).Execute(context.Background(), chassisTree(t), clock)

	assert.Equal(t, start, result.Start)
	assert.Equal(t, start.Add(time.Second), result.End)
	require.Len(t, result.RecordsBySubqueryID["S1"].Records, 1)
}

func TestExecute_CancelledContextReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := query.Query{
		ID: "Q17",
		Subqueries: []query.Subquery{
			{ID: "S1", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q).Execute(ctx, chassisTree(t), fixedClock(t))

	// Execute always returns a Result; a cancelled traversal just stops
	// producing records.
	require.NotNil(t, result)
	assert.Equal(t, []string{"Q17"}, result.QueryIDs)
	assert.Empty(t, result.RecordsBySubqueryID["S1"].Records)
}

func TestExecute_FetchBudgetStopsTraversal(t *testing.T) {
	root := decodeVariant(t, `{
		"Chassis":  {"Members": [{"Name": "chassis"}]},
		"Managers": {"Members": [{"Name": "bmc"}]}
	}`)

	q := query.Query{
		ID: "Q18",
		Subqueries: []query.Subquery{
			{ID: "Chassis", Path: "/Chassis[*]", Properties: []query.Property{stringProp("Name")}},
			{ID: "Managers", Path: "/Managers[*]", Properties: []query.Property{stringProp("Name")}},
		},
	}

	result := New(q, WithMaxFetches(1)).Execute(context.Background(), root, fixedClock(t))

	// Groups visit in node-name order, so Chassis lands inside the budget
	// and Managers is cut off; the partial result is still returned.
	assert.Len(t, result.RecordsBySubqueryID["Chassis"].Records, 1)
	assert.Empty(t, result.RecordsBySubqueryID["Managers"].Records)
}

func TestExecute_TraceTokenStamped(t *testing.T) {
	q := query.Query{ID: "Q19"}
	planner := New(q, WithTraceTokens(testutil.NewFixedTokenGenerator("trace-1")))

	result := planner.Execute(context.Background(), chassisTree(t), fixedClock(t))
	assert.Equal(t, "trace-1", result.TraceToken)
}
