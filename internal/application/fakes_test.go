package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// fakeStore is an in-memory ProblemStorePort guarded by one mutex.
type fakeStore struct {
	mu       sync.Mutex
	problems map[domain.ProblemId]*domain.Problem

	// BeforeUpdate runs under no lock just before the conditional write,
	// letting tests interleave a competing writer.
	BeforeUpdate func()
}

func newFakeStore(problems ...*domain.Problem) *fakeStore {
	s := &fakeStore{problems: make(map[domain.ProblemId]*domain.Problem)}
	for _, p := range problems {
		s.problems[p.ID] = p.Clone()
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id domain.ProblemId) (*domain.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return nil, domain.NewNotFound(id)
	}
	return p.Clone(), nil
}

func (s *fakeStore) Insert(ctx context.Context, problem *domain.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problems[problem.ID] = problem.Clone()
	return nil
}

func (s *fakeStore) ConditionalUpdate(ctx context.Context, id domain.ProblemId, pre domain.Precondition, delta domain.Delta) (*domain.Problem, bool, error) {
	if s.BeforeUpdate != nil {
		hook := s.BeforeUpdate
		s.BeforeUpdate = nil
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return nil, false, domain.NewNotFound(id)
	}
	if !pre.Holds(p) {
		return p.Clone(), false, nil
	}
	delta.ApplyTo(p, time.Now())
	return p.Clone(), true, nil
}

func (s *fakeStore) ConditionalDelete(ctx context.Context, id domain.ProblemId, pre domain.Precondition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return false, domain.NewNotFound(id)
	}
	if !pre.Holds(p) {
		return false, nil
	}
	delete(s.problems, id)
	return true, nil
}

func (s *fakeStore) ToggleMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return false, domain.NewNotFound(id)
	}
	members, present := p.Members(set).Toggle(actor)
	p.SetMembers(set, members)
	return present, nil
}

func (s *fakeStore) AddMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return false, domain.NewNotFound(id)
	}
	if p.Members(set).Contains(actor) {
		return false, nil
	}
	p.SetMembers(set, p.Members(set).With(actor))
	return true, nil
}

func (s *fakeStore) RemoveMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.problems[id]
	if !ok {
		return false, domain.NewNotFound(id)
	}
	if !p.Members(set).Contains(actor) {
		return false, nil
	}
	p.SetMembers(set, p.Members(set).Without(actor))
	return true, nil
}

// MockUserDirectory is a mock implementation of UserDirectoryPort.
type MockUserDirectory struct {
	AllUserIdsFunc func(ctx context.Context) ([]domain.ActorId, error)
	FullNameFunc   func(ctx context.Context, id domain.ActorId) (string, error)
}

func (m *MockUserDirectory) AllUserIds(ctx context.Context) ([]domain.ActorId, error) {
	if m.AllUserIdsFunc != nil {
		return m.AllUserIdsFunc(ctx)
	}
	return nil, nil
}

func (m *MockUserDirectory) FullName(ctx context.Context, id domain.ActorId) (string, error) {
	if m.FullNameFunc != nil {
		return m.FullNameFunc(ctx, id)
	}
	return "", nil
}

// recordingDispatcher collects every delivery.
type recordingDispatcher struct {
	mu    sync.Mutex
	sent  map[domain.ActorId][]string
	calls int
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{sent: make(map[domain.ActorId][]string)}
}

func (d *recordingDispatcher) Notify(ctx context.Context, userIds []domain.ActorId, href string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	for _, id := range userIds {
		d.sent[id] = append(d.sent[id], href)
	}
}

func (d *recordingDispatcher) recipients() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sent))
	for id := range d.sent {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

// MockClock is a mock implementation of ClockPort.
type MockClock struct {
	now domain.Timestamp
}

func (m *MockClock) Now() domain.Timestamp {
	return m.now
}

// MockIdGenerator hands out a fixed sequence of ids.
type MockIdGenerator struct {
	mu  sync.Mutex
	ids []domain.ProblemId
}

func (m *MockIdGenerator) NewProblemId() domain.ProblemId {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.ids[0]
	m.ids = m.ids[1:]
	return id
}

// MockLogger is a mock implementation of LoggerPort.
type MockLogger struct {
	mu   sync.Mutex
	logs []string
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) { m.add("DEBUG: " + msg) }
func (m *MockLogger) Info(msg string, fields map[string]interface{})  { m.add("INFO: " + msg) }
func (m *MockLogger) Warn(msg string, fields map[string]interface{})  { m.add("WARN: " + msg) }
func (m *MockLogger) Error(msg string, fields map[string]interface{}) { m.add("ERROR: " + msg) }

func (m *MockLogger) add(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, line)
}

func (m *MockLogger) has(line string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l == line {
			return true
		}
	}
	return false
}

func openProblem(id domain.ProblemId, creator domain.ActorId) *domain.Problem {
	return domain.NewProblem(id, creator, "summary of "+id.String(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}
