package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/iho/envelopes/internal/domain"
)

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	seen := map[string]bool{}

	for i := 0; i < 100; i++ {
		id := g.Generate()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("expected valid UUID, got %q: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Fatalf("expected version 4 UUID, got %d", parsed.Version())
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestULIDGeneratorProducesValidStorageKeys(t *testing.T) {
	g := NewULIDGenerator()

	prev := ""
	for i := 0; i < 100; i++ {
		id := g.Generate()
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("expected valid ULID, got %q: %v", id, err)
		}
		if err := domain.ValidateStorageKey(id); err != nil {
			t.Fatalf("expected ULID to be a valid storage key: %v", err)
		}
		if id == prev {
			t.Fatalf("duplicate id %s", id)
		}
		prev = id
	}
}
