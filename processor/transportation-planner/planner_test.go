package transportationplanner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/llm/testutil"
	"github.com/c360studio/skitrip/trip"
)

const threeOptions = `Here are the options:
` + "```json" + `
{"options": [
  {"id": "t1", "type": "group", "method": "Drive", "description": "Carpool", "cost": {"total": 200, "perPerson": 100}, "duration": "2h", "meetingPoint": "Union Station", "route": "I-70", "members": ["m1", "m2"]},
  {"id": "t2", "type": "individual", "method": "Fly", "description": "Each flies", "cost": {"total": 800, "perPerson": 400}, "duration": "4h", "meetingPoint": null, "route": null, "members": ["m1", "m2"]},
  {"id": "t3", "type": "group", "method": "Bus", "description": "Shuttle", "cost": {"total": 120, "perPerson": 60}, "duration": "3h", "members": ["m1", "m2"]}
]}
` + "```"

func testInput() Input {
	return Input{
		Members: []trip.MemberTravelProfile{
			{MemberID: "m1", MemberName: "Ana", Address: "Denver, CO", Coordinates: &trip.Coordinates{Lat: 39.74, Lng: -104.99}},
			{MemberID: "m2", MemberName: "Ben", Address: "Boulder, CO"},
		},
		ResortAddress: "Resort X, Summit County, CO",
		TripDates:     trip.TripDates{StartDate: "2025-02-01", EndDate: "2025-02-04"},
	}
}

func newPlanner(t *testing.T, mock *testutil.MockLLMClient) *Planner {
	t.Helper()
	p, err := New(mock, DefaultConfig(), nil)
	require.NoError(t, err)
	return p
}

func TestPlan_ReturnsThreeOptions(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{{Content: threeOptions}}}
	p := newPlanner(t, mock)

	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{PlanID: "P1"})
	opts, err := p.Plan(ctx, testInput())
	require.NoError(t, err)
	require.Len(t, opts, OptionCount)

	assert.Equal(t, trip.TransportGroup, opts[0].Type)
	require.NotNil(t, opts[0].MeetingPoint)
	assert.Equal(t, "Union Station", *opts[0].MeetingPoint)
	assert.Nil(t, opts[1].Route)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "research", req.Capability)
	require.NotNil(t, req.Search)
	assert.Equal(t, AllowedDomains, req.Search.AllowedDomains)
	assert.Equal(t, llm.SearchContextHigh, req.Search.ContextSize)

	user := req.Messages[1].Content
	assert.Contains(t, user, "- Ana (ID: m1): Denver, CO (39.74, -104.99)")
	assert.Contains(t, user, "- Ben (ID: m2): Boulder, CO\n")
	assert.Contains(t, user, "Destination Resort: Resort X, Summit County, CO")
	assert.Contains(t, user, "Trip Dates: 2025-02-01 to 2025-02-04")
	assert.Contains(t, user, "Group Size: 2 people")

	tc := llm.GetTraceContext(mock.Context(0))
	assert.Equal(t, "P1", tc.PlanID)
	assert.Equal(t, "transportation", tc.Stage)
}

func TestPlan_WrongCardinalityFails(t *testing.T) {
	two := `{"options": [
		{"id": "t1", "type": "group", "method": "Drive", "cost": {"total": 1, "perPerson": 1}, "members": []},
		{"id": "t2", "type": "group", "method": "Bus", "cost": {"total": 1, "perPerson": 1}, "members": []}
	]}`
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{{Content: two}}}
	p := newPlanner(t, mock)

	_, err := p.Plan(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, llm.IsInvalidOutput(err))
	assert.Contains(t, err.Error(), "options must have exactly 3 items")
	assert.Equal(t, 1, mock.CallCount(), "no retry at this layer")
}

func TestPlan_InvalidTypeFails(t *testing.T) {
	bad := strings.Replace(threeOptions, `"type": "individual"`, `"type": "solo"`, 1)
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{{Content: bad}}}
	p := newPlanner(t, mock)

	_, err := p.Plan(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options[1].type must be one of [individual group]")
}

func TestPlan_CompletionErrorPropagates(t *testing.T) {
	upstream := errors.New("all endpoints failed")
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{{Err: upstream}}}
	p := newPlanner(t, mock)

	_, err := p.Plan(context.Background(), testInput())
	require.ErrorIs(t, err, upstream)
	assert.Equal(t, 1, mock.CallCount())
}

func TestPlan_ValidatesInput(t *testing.T) {
	mock := &testutil.MockLLMClient{}
	p := newPlanner(t, mock)

	in := testInput()
	in.Members = nil
	_, err := p.Plan(context.Background(), in)
	assert.True(t, trip.IsValidation(err))

	in = testInput()
	in.ResortAddress = ""
	_, err = p.Plan(context.Background(), in)
	assert.True(t, trip.IsValidation(err))

	assert.Zero(t, mock.CallCount())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Capability = ""
	assert.Error(t, cfg.Validate())

	_, err := New(&testutil.MockLLMClient{}, cfg, nil)
	assert.Error(t, err)
}
