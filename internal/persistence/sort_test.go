package persistence

import "testing"

var sortColumns = map[string]string{
	"start":     "start_time",
	"createdAt": "created_at",
}

func TestParseSortDefault(t *testing.T) {
	order, err := ParseSort("", sortColumns, "created_at DESC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != "created_at DESC" {
		t.Fatalf("unexpected order %q", order)
	}
}

func TestParseSortExplicitDirection(t *testing.T) {
	order, err := ParseSort("start:desc", sortColumns, "created_at DESC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != "start_time DESC" {
		t.Fatalf("unexpected order %q", order)
	}
}

func TestParseSortBareField(t *testing.T) {
	order, err := ParseSort("createdAt", sortColumns, "created_at DESC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != "created_at ASC" {
		t.Fatalf("unexpected order %q", order)
	}
}

func TestParseSortRejectsUnknownField(t *testing.T) {
	if _, err := ParseSort("password:asc", sortColumns, "created_at DESC"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseSortRejectsBadDirection(t *testing.T) {
	if _, err := ParseSort("start:sideways", sortColumns, "created_at DESC"); err == nil {
		t.Fatal("expected error for bad direction")
	}
}
