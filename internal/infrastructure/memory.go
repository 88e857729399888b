package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// MemoryProblemStore implements ProblemStorePort in process. One mutex
// serialises every check-and-write, and records are cloned on the way in
// and out.
type MemoryProblemStore struct {
	mu       sync.Mutex
	problems map[domain.ProblemId]*domain.Problem
	now      func() time.Time
}

// NewMemoryProblemStore creates an empty MemoryProblemStore.
func NewMemoryProblemStore() *MemoryProblemStore {
	return &MemoryProblemStore{
		problems: make(map[domain.ProblemId]*domain.Problem),
		now:      time.Now,
	}
}

// Get returns a copy of the stored problem.
func (s *MemoryProblemStore) Get(ctx context.Context, id domain.ProblemId) (*domain.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.problems[id]
	if !ok {
		return nil, domain.NewNotFound(id)
	}
	return p.Clone(), nil
}

// Insert stores a copy of problem.
func (s *MemoryProblemStore) Insert(ctx context.Context, problem *domain.Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.problems[problem.ID]; exists {
		return domain.NewStorageError(domain.ErrCodeStorage, "problem "+problem.ID.String()+" already exists")
	}
	stored := problem.Clone()
	stored.Claimed = stored.IsClaimed()
	s.problems[problem.ID] = stored
	return nil
}

// ConditionalUpdate applies delta iff pre holds.
func (s *MemoryProblemStore) ConditionalUpdate(
	ctx context.Context,
	id domain.ProblemId,
	pre domain.Precondition,
	delta domain.Delta,
) (*domain.Problem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.problems[id]
	if !ok {
		return nil, false, domain.NewNotFound(id)
	}
	if !pre.Holds(p) {
		return p.Clone(), false, nil
	}
	delta.ApplyTo(p, s.now())
	return p.Clone(), true, nil
}

// ConditionalDelete removes the problem iff pre holds.
func (s *MemoryProblemStore) ConditionalDelete(ctx context.Context, id domain.ProblemId, pre domain.Precondition) (bool, error) {
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

// ToggleMember flips actor's membership in set.
func (s *MemoryProblemStore) ToggleMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	var present bool
	err := s.mutateMembers(id, set, func(members domain.ActorSet) (domain.ActorSet, bool) {
		var next domain.ActorSet
		next, present = members.Toggle(actor)
		return next, true
	})
	return present, err
}

// AddMember adds actor to set.
func (s *MemoryProblemStore) AddMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	var changed bool
	err := s.mutateMembers(id, set, func(members domain.ActorSet) (domain.ActorSet, bool) {
		changed = !members.Contains(actor)
		return members.With(actor), changed
	})
	return changed, err
}

// RemoveMember removes actor from set.
func (s *MemoryProblemStore) RemoveMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	var changed bool
	err := s.mutateMembers(id, set, func(members domain.ActorSet) (domain.ActorSet, bool) {
		changed = members.Contains(actor)
		return members.Without(actor), changed
	})
	return changed, err
}

func (s *MemoryProblemStore) mutateMembers(
	id domain.ProblemId,
	set domain.MemberSet,
	fn func(domain.ActorSet) (domain.ActorSet, bool),
) error {
	if !set.IsValid() {
		return domain.NewInvalidArgument("unknown member set " + string(set))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.problems[id]
	if !ok {
		return domain.NewNotFound(id)
	}
	next, changed := fn(p.Members(set))
	if changed {
		p.SetMembers(set, next)
		p.UpdatedAt = s.now()
	}
	return nil
}
