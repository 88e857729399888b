package infrastructure

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator_NewProblemId(t *testing.T) {
	gen := NewUUIDGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.NewProblemId().String()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("expected a UUID, got '%s': %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
