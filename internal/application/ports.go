// Package application contains use cases and port definitions.
package application

import (
	"context"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// ProblemStorePort defines the interface for problem persistence.
// Every mutation is conditional on the current stored values.
type ProblemStorePort interface {
	// Get returns the problem or a NOT_FOUND ProblemError.
	Get(ctx context.Context, id domain.ProblemId) (*domain.Problem, error)

	// Insert stores a new problem.
	Insert(ctx context.Context, problem *domain.Problem) error

	// ConditionalUpdate applies delta iff pre holds on the stored record.
	// Returns the post-update record and true, or the current record and
	// false when the precondition did not hold.
	ConditionalUpdate(
		ctx context.Context,
		id domain.ProblemId,
		pre domain.Precondition,
		delta domain.Delta,
	) (*domain.Problem, bool, error)

	// ConditionalDelete removes the problem iff pre holds.
	ConditionalDelete(ctx context.Context, id domain.ProblemId, pre domain.Precondition) (bool, error)

	// ToggleMember atomically flips actor's membership in set.
	// Returns whether actor is a member afterwards.
	ToggleMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error)

	// AddMember adds actor to set. Returns false if already present.
	AddMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error)

	// RemoveMember removes actor from set. Returns false if absent.
	RemoveMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error)
}

// UserDirectoryPort supplies registered users.
type UserDirectoryPort interface {
	// AllUserIds enumerates every registered user.
	AllUserIds(ctx context.Context) ([]domain.ActorId, error)

	// FullName returns the display name of a user.
	FullName(ctx context.Context, id domain.ActorId) (string, error)
}

// NotificationDispatcherPort delivers notifications. It is one-way:
// implementations report their own failures and return nothing.
type NotificationDispatcherPort interface {
	Notify(ctx context.Context, userIds []domain.ActorId, href string)
}

// IdGeneratorPort assigns ids to new problems.
type IdGeneratorPort interface {
	NewProblemId() domain.ProblemId
}

// ClockPort defines the interface for time operations.
type ClockPort interface {
	// Now returns the current time.
	Now() domain.Timestamp
}

// LoggerPort defines the interface for structured logging.
type LoggerPort interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}
