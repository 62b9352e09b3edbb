package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestMapPQErrorUniqueViolation(t *testing.T) {
	pqErr := &pq.Error{Code: uniqueViolation, Constraint: "passengers_phone_number_key"}
	if got := mapPQError(pqErr); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for code 23505, got %v", got)
	}
	wrapped := fmt.Errorf("insert: %w", pqErr)
	if got := mapPQError(wrapped); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for wrapped pq error, got %v", got)
	}
}

func TestMapPQErrorPassesOthersThrough(t *testing.T) {
	if got := mapPQError(nil); got != nil {
		t.Fatalf("expected nil through, got %v", got)
	}
	plain := errors.New("connection reset")
	if got := mapPQError(plain); got != plain {
		t.Fatalf("expected unrelated error unchanged, got %v", got)
	}
	fk := &pq.Error{Code: "23503"}
	if got := mapPQError(fk); errors.Is(got, ErrDuplicate) {
		t.Fatalf("foreign key violation must not map to ErrDuplicate")
	}
}
