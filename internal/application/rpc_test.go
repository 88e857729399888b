package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

func newTestRouter(store *fakeStore) *Router {
	engine, logger := newTestEngine(store, nil)
	return NewRouter(engine, NewApprovalLedger(store, logger), NewSubscriptionRegistry(store, logger))
}

func TestRouter_ClaimProblem(t *testing.T) {
	store := newFakeStore(openProblem("p1", alice))
	router := newTestRouter(store)

	result := router.Call(context.Background(), "claimProblem", bob, []byte(`{"id":"p1","estimate":15}`))

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "claimProblem", result.Method)
	assert.Equal(t, "bob", result.Actor)
	assert.Equal(t, "p1", result.ProblemID)
	assert.Nil(t, result.Error)
	assert.Equal(t, 15, mustGet(t, store, "p1").Estimate)
}

func TestRouter_DenialBecomesErrorDTO(t *testing.T) {
	store := newFakeStore(claimedProblem("p1", alice, bob))
	router := newTestRouter(store)

	result := router.Call(context.Background(), "claimProblem", carol, []byte(`{"id":"p1"}`))

	assert.Equal(t, "error", result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "ALREADY_CLAIMED", result.Error.Code)
	assert.Equal(t, "You cannot claim a problem that is already claimed", result.Error.Message)
}

func TestRouter_RejectsBadPayloads(t *testing.T) {
	router := newTestRouter(newFakeStore(openProblem("p1", alice)))

	tests := []struct {
		name    string
		method  string
		payload string
		code    string
	}{
		{"unknown method", "launchRocket", `{}`, "INVALID_ARGUMENT"},
		{"unknown field", "claimProblem", `{"id":"p1","owner":"x"}`, "INVALID_ARGUMENT"},
		{"wrong type", "claimProblem", `{"id":"p1","estimate":"soon"}`, "INVALID_ARGUMENT"},
		{"not json", "claimProblem", `id=p1`, "INVALID_ARGUMENT"},
		{"trailing data", "claimProblem", `{"id":"p1"}{"id":"p2"}`, "INVALID_ARGUMENT"},
		{"missing field", "editProblem", `{"id":"p1"}`, "INVALID_ARGUMENT"},
		{"empty payload", "getProblem", ``, "INVALID_ARGUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Call(context.Background(), tt.method, bob, []byte(tt.payload))
			assert.Equal(t, "error", result.Status)
			require.NotNil(t, result.Error)
			assert.Equal(t, tt.code, result.Error.Code)
		})
	}
}

func TestRouter_MembershipCalls(t *testing.T) {
	store := newFakeStore(openProblem("p1", alice))
	router := newTestRouter(store)
	ctx := context.Background()

	result := router.Call(ctx, "problemApproval", bob, []byte(`{"_id":"p1"}`))
	require.Equal(t, "success", result.Status)
	require.NotNil(t, result.Member)
	assert.True(t, *result.Member)

	result = router.Call(ctx, "problemApproval", bob, []byte(`{"_id":"p1"}`))
	require.NotNil(t, result.Member)
	assert.False(t, *result.Member)

	result = router.Call(ctx, "watchProblem", bob, []byte(`{"_id":"p1"}`))
	assert.Equal(t, "success", result.Status)
	assert.True(t, mustGet(t, store, "p1").Subscribers.Contains(bob))

	result = router.Call(ctx, "unwatchProblem", bob, []byte(`{"_id":"p1"}`))
	assert.Equal(t, "success", result.Status)
	assert.False(t, mustGet(t, store, "p1").Subscribers.Contains(bob))
}

func TestRouter_GetProblem(t *testing.T) {
	router := newTestRouter(newFakeStore(openProblem("p1", alice)))

	result := router.Call(context.Background(), "getProblem", bob, []byte(`{"id":"p1"}`))

	require.Equal(t, "success", result.Status)
	require.NotNil(t, result.Problem)
	assert.Equal(t, "open", result.Problem.Status)
	assert.Equal(t, "alice", result.Problem.CreatedBy)
	assert.Equal(t, []string{}, result.Problem.Approvals)
	assert.Equal(t, []ResolutionDTO{}, result.Problem.PreviousSolutions)
}

func TestRouter_AddProblem(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	result := router.Call(context.Background(), "addProblem", alice,
		[]byte(`{"summary":"s","description":"d","fyiProblem":false,"dependencies":["x"]}`))

	require.Equal(t, "success", result.Status)
	assert.Equal(t, "new-1", result.ProblemID)
	assert.Equal(t, "d", mustGet(t, store, domain.ProblemId(result.ProblemID)).Description)
}

func TestRouter_Methods(t *testing.T) {
	router := newTestRouter(newFakeStore())

	methods := router.Methods()
	assert.Len(t, methods, 15)
	assert.Contains(t, methods, "markAsUnSolved")
	assert.Contains(t, methods, "problemApproval")
}
