package accommodationplanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/llm/testutil"
	"github.com/c360studio/skitrip/trip"
)

func testInput() Input {
	return Input{
		ResortName:    "Resort X",
		ResortAddress: "1 Summit Rd, Resort X, CO",
		TripDates: trip.TripDates{
			StartDate: "2025-02-01", EndDate: "2025-02-04",
			CheckIn: "2025-02-01", CheckOut: "2025-02-04",
		},
		GroupSize:     2,
		MemberBudgets: []string{"$500", "$800"},
	}
}

func option(id string, available bool, photos ...string) trip.AccommodationOption {
	if photos == nil {
		photos = []string{}
	}
	return trip.AccommodationOption{
		ID:                id,
		Name:              "Lodge " + id,
		Address:           fmt.Sprintf("%s Main St, Resort X, CO", id),
		Type:              trip.AccommodationLodge,
		PricePerPerson:    300,
		TotalPrice:        600,
		Availability:      trip.Availability{Available: available, CheckIn: "2025-02-01", CheckOut: "2025-02-04"},
		Photos:            photos,
		ProximityToSlopes: "Walking distance",
	}
}

func replyWith(t *testing.T, options ...trip.AccommodationOption) testutil.Reply {
	t.Helper()
	if options == nil {
		options = []trip.AccommodationOption{}
	}
	data, err := json.Marshal(map[string]any{"options": options})
	require.NoError(t, err)
	return testutil.Reply{Content: string(data)}
}

func newPlanner(t *testing.T, mock *testutil.MockLLMClient) *Planner {
	t.Helper()
	p, err := New(mock, DefaultConfig(), nil)
	require.NoError(t, err)
	return p
}

func ids(options []trip.AccommodationOption) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.ID
	}
	return out
}

func TestPlan_ThreeAvailableFirstAttempt(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		replyWith(t, option("a", false), option("b", true), option("c", true), option("d", true), option("e", true)),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, ids(res.Options), "first three available")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 3, res.Available)
	assert.Equal(t, 1, mock.CallCount())

	req := mock.Requests()[0]
	assert.Equal(t, "research", req.Capability)
	assert.Equal(t, AllowedDomains, req.Search.AllowedDomains)
	user := req.Messages[1].Content
	assert.Contains(t, user, "Resort: Resort X")
	assert.Contains(t, user, "Check-in: 2025-02-01")
	assert.Contains(t, user, "Member Budgets: $500, $800")
	assert.Contains(t, user, "Suitable for 2 people")
}

func TestPlan_DegradesToUnconfirmedAvailability(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		replyWith(t, option("a", true), option("b", false), option("c", true), option("d", false)),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res.Options))
	assert.Equal(t, 2, res.Available)
	assert.Equal(t, 1, mock.CallCount())
}

func TestPlan_RetriesWithFollowUp(t *testing.T) {
	first := replyWith(t, option("a", true), option("b", false))
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		first,
		replyWith(t, option("c", true), option("d", true), option("e", false)),
	}}
	p := newPlanner(t, mock)

	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{PlanID: "P1"})
	res, err := p.Plan(ctx, testInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, ids(res.Options))
	assert.Equal(t, 2, res.Attempts)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 2)
	require.Len(t, reqs[1].Messages, 4, "conversation carries reply and follow-up")
	assert.Equal(t, "assistant", reqs[1].Messages[2].Role)
	assert.Equal(t, first.Content, reqs[1].Messages[2].Content)
	assert.Equal(t, "user", reqs[1].Messages[3].Role)
	assert.True(t, strings.HasPrefix(reqs[1].Messages[3].Content,
		"The previous search found 2 accommodations. Please search again and find 3 DIFFERENT accommodations near Resort X."))
	assert.Contains(t, reqs[1].Messages[3].Content, "group size (2 people)")

	for i := range reqs {
		tc := llm.GetTraceContext(mock.Context(i))
		assert.Equal(t, "P1", tc.PlanID)
		assert.Equal(t, "accommodation", tc.Stage)
		assert.Equal(t, i+1, tc.Attempt)
	}
}

func TestPlan_AcceptsFewerOnFinalAttempt(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		replyWith(t, option("a", false)),
		replyWith(t, option("b", false), option("c", true)),
		replyWith(t, option("d", false)),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{"b", "c"}, ids(res.Options), "largest reply wins")
	assert.Equal(t, 3, mock.CallCount())
	assert.Len(t, mock.Requests()[2].Messages, 6)
}

func TestPlan_EmptyRepliesAreValid(t *testing.T) {
	mock := &testutil.MockLLMClient{Fallback: &testutil.Reply{Content: `{"options": []}`}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.NotNil(t, res.Options)
	assert.Empty(t, res.Options)
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount())
}

func TestPlan_SanitizesPhotos(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		replyWith(t,
			option("a", true, "https://example.com/0001/photo1.jpg", "https://example.com/0001/photo2.jpg"),
			option("b", true, "https://a0.muscache.com/im/pictures/9f1e2d.jpg", "https://example.com/placeholder.png"),
			option("c", true),
		),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, res.Options, 3)
	assert.Equal(t, []string{}, res.Options[0].Photos)
	assert.Equal(t, []string{"https://a0.muscache.com/im/pictures/9f1e2d.jpg"}, res.Options[1].Photos)
	assert.Equal(t, []string{}, res.Options[2].Photos)
}

func TestPlan_InvalidReplyGetsCorrection(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		{Content: "I could not find anything, sorry."},
		replyWith(t, option("a", true), option("b", true), option("c", true)),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Len(t, res.Options, 3)

	second := mock.Requests()[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, "I could not find anything, sorry.", second[2].Content)
	assert.Contains(t, second[3].Content, "could not be used")
}

func TestPlan_AbsorbsTransientFailures(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		{Err: llm.NewTransientError(errors.New("rate limited"))},
		replyWith(t, option("a", true), option("b", true), option("c", true)),
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, mock.Requests()[1].Messages, 2, "failed call adds nothing to the conversation")
}

func TestPlan_FailsWhenEveryCallFails(t *testing.T) {
	upstream := errors.New("all endpoints failed")
	mock := &testutil.MockLLMClient{Fallback: &testutil.Reply{Err: upstream}}
	p := newPlanner(t, mock)

	_, err := p.Plan(context.Background(), testInput())
	require.ErrorIs(t, err, upstream)
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount())
}

func TestPlan_FailsWithoutStructuredOutput(t *testing.T) {
	mock := &testutil.MockLLMClient{Fallback: &testutil.Reply{Content: "no json here"}}
	p := newPlanner(t, mock)

	_, err := p.Plan(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, llm.IsInvalidOutput(err))
	assert.Equal(t, DefaultMaxAttempts, mock.CallCount())
}

func TestPlan_FatalErrorStopsLoop(t *testing.T) {
	mock := &testutil.MockLLMClient{Replies: []testutil.Reply{
		replyWith(t, option("a", true)),
		{Err: llm.NewFatalError(errors.New("invalid api key"))},
	}}
	p := newPlanner(t, mock)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err, "earlier structured output is kept")
	assert.Equal(t, []string{"a"}, ids(res.Options))
	assert.Equal(t, 2, mock.CallCount())

	mock = &testutil.MockLLMClient{Fallback: &testutil.Reply{Err: llm.NewFatalError(errors.New("invalid api key"))}}
	p = newPlanner(t, mock)
	_, err = p.Plan(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Equal(t, 1, mock.CallCount())
}

func TestPlan_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &testutil.MockLLMClient{Handler: func(context.Context, llm.Request) (*llm.Response, error) {
		cancel()
		return nil, context.Canceled
	}}
	p := newPlanner(t, mock)

	_, err := p.Plan(ctx, testInput())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}

func TestPlan_ValidatesInput(t *testing.T) {
	mock := &testutil.MockLLMClient{}
	p := newPlanner(t, mock)

	in := testInput()
	in.TripDates.CheckIn = ""
	_, err := p.Plan(context.Background(), in)
	assert.True(t, trip.IsValidation(err))

	in = testInput()
	in.GroupSize = 0
	_, err = p.Plan(context.Background(), in)
	assert.True(t, trip.IsValidation(err))

	assert.Zero(t, mock.CallCount())
}

func TestPlan_MaxAttemptsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	mock := &testutil.MockLLMClient{Fallback: func() *testutil.Reply { r := replyWith(t, option("a", true)); return &r }()}
	p, err := New(mock, cfg, nil)
	require.NoError(t, err)

	res, err := p.Plan(context.Background(), testInput())
	require.NoError(t, err)
	assert.Len(t, res.Options, 1)
	assert.Equal(t, 1, mock.CallCount())

	cfg.MaxAttempts = 0
	_, err = New(mock, cfg, nil)
	assert.Error(t, err)
}
