package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

func directoryOf(n int) *MockUserDirectory {
	ids := make([]domain.ActorId, n)
	for i := range ids {
		ids[i] = domain.ActorId(fmt.Sprintf("user-%03d", i))
	}
	return &MockUserDirectory{
		AllUserIdsFunc: func(ctx context.Context) ([]domain.ActorId, error) {
			return ids, nil
		},
	}
}

func TestAddProblem_FYIFansOutToEveryUser(t *testing.T) {
	users := directoryOf(250)
	dispatcher := newRecordingDispatcher()
	logger := &MockLogger{}
	broadcaster := NewBroadcaster(users, dispatcher, logger, BroadcastConfig{BatchSize: 100, Concurrency: 2})

	store := newFakeStore()
	engine := NewLifecycleEngine(store, users, broadcaster,
		&MockIdGenerator{ids: []domain.ProblemId{"fyi-1"}}, &MockClock{now: domain.Now()}, logger)

	id, err := engine.AddProblem(context.Background(), alice, AddProblemRequest{Summary: "outage", FYIProblem: true})
	require.NoError(t, err)
	broadcaster.Wait()

	assert.Equal(t, 3, dispatcher.calls)
	assert.Len(t, dispatcher.recipients(), 250)
	for user, hrefs := range dispatcher.sent {
		assert.Equal(t, []string{"/" + id.String()}, hrefs, "user %s", user)
	}
	assert.True(t, logger.has("INFO: fanout_started"))
}

func TestAddProblem_NonFYIDoesNotNotify(t *testing.T) {
	users := directoryOf(3)
	dispatcher := newRecordingDispatcher()
	logger := &MockLogger{}
	broadcaster := NewBroadcaster(users, dispatcher, logger, BroadcastConfig{})

	engine := NewLifecycleEngine(newFakeStore(), users, broadcaster,
		&MockIdGenerator{ids: []domain.ProblemId{"p1"}}, &MockClock{now: domain.Now()}, logger)

	_, err := engine.AddProblem(context.Background(), alice, AddProblemRequest{Summary: "quiet"})
	require.NoError(t, err)
	broadcaster.Wait()

	assert.Zero(t, dispatcher.calls)
}

func TestAddProblem_DirectoryFailureDoesNotFailCreation(t *testing.T) {
	users := &MockUserDirectory{
		AllUserIdsFunc: func(ctx context.Context) ([]domain.ActorId, error) {
			return nil, errors.New("directory unavailable")
		},
	}
	dispatcher := newRecordingDispatcher()
	logger := &MockLogger{}
	broadcaster := NewBroadcaster(users, dispatcher, logger, BroadcastConfig{})

	store := newFakeStore()
	engine := NewLifecycleEngine(store, users, broadcaster,
		&MockIdGenerator{ids: []domain.ProblemId{"p1"}}, &MockClock{now: domain.Now()}, logger)

	id, err := engine.AddProblem(context.Background(), alice, AddProblemRequest{Summary: "x", FYIProblem: true})
	require.NoError(t, err)
	broadcaster.Wait()

	mustGet(t, store, id)
	assert.Zero(t, dispatcher.calls)
	assert.True(t, logger.has("ERROR: fanout_failed"))
}

type blockingDispatcher struct {
	release chan struct{}
}

func (d *blockingDispatcher) Notify(ctx context.Context, userIds []domain.ActorId, href string) {
	<-d.release
}

func TestAddProblem_DoesNotWaitForDispatch(t *testing.T) {
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	logger := &MockLogger{}
	users := directoryOf(1)
	broadcaster := NewBroadcaster(users, dispatcher, logger, BroadcastConfig{})

	engine := NewLifecycleEngine(newFakeStore(), users, broadcaster,
		&MockIdGenerator{ids: []domain.ProblemId{"p1"}}, &MockClock{now: domain.Now()}, logger)

	done := make(chan error, 1)
	go func() {
		_, err := engine.AddProblem(context.Background(), alice, AddProblemRequest{Summary: "x", FYIProblem: true})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AddProblem blocked on the dispatcher")
	}

	close(dispatcher.release)
	broadcaster.Wait()
}

type panickingDispatcher struct{}

func (panickingDispatcher) Notify(ctx context.Context, userIds []domain.ActorId, href string) {
	panic("transport exploded")
}

func TestBroadcaster_RecoversFromDispatcherPanic(t *testing.T) {
	logger := &MockLogger{}
	broadcaster := NewBroadcaster(directoryOf(1), panickingDispatcher{}, logger, BroadcastConfig{Concurrency: 1})

	broadcaster.Submit(domain.ProblemCreated{ProblemID: "p1", FYI: true, CreatedAt: domain.Now()})
	broadcaster.Wait()

	assert.True(t, logger.has("ERROR: fanout_failed"))
}

func TestBatches(t *testing.T) {
	ids := make([]domain.ActorId, 5)
	for i := range ids {
		ids[i] = domain.ActorId(fmt.Sprint(i))
	}

	got := batches(ids, 2)
	require.Len(t, got, 3)
	assert.Len(t, got[2], 1)
	assert.Empty(t, batches(nil, 2))
}
