// Package domain contains the core business logic for the problem lifecycle.
package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ProblemId represents a unique identifier for a problem.
type ProblemId string

// String returns the string representation of the ProblemId.
func (id ProblemId) String() string {
	return string(id)
}

// IsEmpty returns true if the ProblemId is empty.
func (id ProblemId) IsEmpty() bool {
	return id == ""
}

// Href returns the relative link notifications point at.
func (id ProblemId) Href() string {
	return "/" + string(id)
}

// ActorId identifies the authenticated caller of an operation.
type ActorId string

const maxActorIdLength = 128

var actorIdPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// NewActorId creates a validated ActorId.
func NewActorId(id string) (ActorId, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("actor id cannot be empty")
	}
	if len(id) > maxActorIdLength {
		return "", errors.New("actor id exceeds maximum length of 128 characters")
	}
	if !actorIdPattern.MatchString(id) {
		return "", errors.New("actor id contains invalid characters; only alphanumeric, '.', '@', underscore, and hyphen are allowed")
	}
	return ActorId(id), nil
}

// String returns the string representation of the ActorId.
func (a ActorId) String() string {
	return string(a)
}

// IsEmpty returns true if the ActorId is empty.
func (a ActorId) IsEmpty() bool {
	return a == ""
}

// ProblemStatus represents the lifecycle status of a problem.
type ProblemStatus string

const (
	StatusOpen           ProblemStatus = "open"
	StatusInProgress     ProblemStatus = "in-progress"
	StatusReadyForReview ProblemStatus = "ready-for-review"
	StatusClosed         ProblemStatus = "closed"
)

// ParseProblemStatus validates a raw status string.
func ParseProblemStatus(s string) (ProblemStatus, error) {
	status := ProblemStatus(strings.TrimSpace(s))
	if !status.IsValid() {
		return "", errors.New("status must be one of open, in-progress, ready-for-review, closed")
	}
	return status, nil
}

// IsValid returns true for the four lifecycle states.
func (s ProblemStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusReadyForReview, StatusClosed:
		return true
	}
	return false
}

// ActorSet is an unordered set of actor ids, each present at most once.
type ActorSet []ActorId

// NewActorSet builds a set from ids, dropping empties and duplicates.
func NewActorSet(ids ...ActorId) ActorSet {
	var set ActorSet
	for _, id := range ids {
		if id.IsEmpty() || set.Contains(id) {
			continue
		}
		set = append(set, id)
	}
	return set
}

// Contains returns true if the set contains the given actor.
func (s ActorSet) Contains(id ActorId) bool {
	for _, a := range s {
		if a == id {
			return true
		}
	}
	return false
}

// With returns a copy of the set including id.
func (s ActorSet) With(id ActorId) ActorSet {
	if s.Contains(id) {
		return s.clone()
	}
	return append(s.clone(), id)
}

// Without returns a copy of the set excluding id.
func (s ActorSet) Without(id ActorId) ActorSet {
	out := make(ActorSet, 0, len(s))
	for _, a := range s {
		if a != id {
			out = append(out, a)
		}
	}
	return out
}

// Toggle returns the set with id flipped and whether id is present afterwards.
func (s ActorSet) Toggle(id ActorId) (ActorSet, bool) {
	if s.Contains(id) {
		return s.Without(id), false
	}
	return s.With(id), true
}

// Strings returns the members as plain strings.
func (s ActorSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = string(a)
	}
	return out
}

func (s ActorSet) clone() ActorSet {
	out := make(ActorSet, len(s))
	copy(out, s)
	return out
}

// ProblemIdSet is a set of problem ids used for dependency links.
type ProblemIdSet []ProblemId

// NewProblemIdSet builds a sorted, de-duplicated set.
func NewProblemIdSet(ids ...string) ProblemIdSet {
	seen := make(map[string]struct{}, len(ids))
	set := make(ProblemIdSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, ProblemId(id))
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

// Contains returns true if the set contains the given id.
func (s ProblemIdSet) Contains(id ProblemId) bool {
	for _, p := range s {
		if p == id {
			return true
		}
	}
	return false
}

// Strings returns the members as plain strings.
func (s ProblemIdSet) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = string(p)
	}
	return out
}

// Timestamp represents a point in time.
type Timestamp time.Time

// Now returns the current timestamp.
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time value.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// String returns the RFC3339 string representation.
func (t Timestamp) String() string {
	return time.Time(t).Format(time.RFC3339)
}
