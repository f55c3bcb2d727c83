package db

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapDBError(t *testing.T) {
	if MapDBError(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}

	dup := fmt.Errorf("constraint failed: UNIQUE constraint failed: settings.key")
	if got := MapDBError(dup); !errors.Is(got, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", got)
	}

	other := errors.New("disk I/O error")
	if got := MapDBError(other); got != other {
		t.Fatalf("expected passthrough for unrelated error, got %v", got)
	}
}
