package infrastructure

import (
	"github.com/google/uuid"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// UUIDGenerator implements IdGeneratorPort with random UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewProblemId returns a fresh v4 UUID.
func (g *UUIDGenerator) NewProblemId() domain.ProblemId {
	return domain.ProblemId(uuid.NewString())
}
