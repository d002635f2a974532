package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := NotFound("graph.GetNode", "node n1 absent")
	kind, ok := KindOf(err)
	if !ok || kind != KindNotFound {
		t.Fatalf("KindOf() = %v, %v, want %v, true", kind, ok, KindNotFound)
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := Conflict("graph.AddNode", "node n1 exists")
	wrapped := fmt.Errorf("submit failed: %w", inner)
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindConflict {
		t.Fatalf("KindOf(wrapped) = %v, %v, want %v, true", kind, ok, KindConflict)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Error("expected KindOf to return false for a plain error")
	}
}

func TestIsKind(t *testing.T) {
	err := Overloaded("coordinator.Submit", "queue full")
	if !IsKind(err, KindOverloaded) {
		t.Error("expected IsKind to match")
	}
	if IsKind(err, KindNotFound) {
		t.Error("expected IsKind to reject mismatched kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("ingest.Apply", "write failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through Unwrap")
	}
}
