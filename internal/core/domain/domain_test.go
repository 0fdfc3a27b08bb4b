package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range AllStatuses() {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []Status{"", "bogus", "OPEN", "new"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range AllPriorities() {
		if !p.Valid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if Priority("urgent").Valid() {
		t.Error("expected urgent to be invalid")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" ui ", "backend", "", "ui", "  ", "crash"})
	want := []string{"ui", "backend", "crash"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := NormalizeTags(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestNewBugStats_AllBucketsPresent(t *testing.T) {
	s := NewBugStats()
	if len(s.ByStatus) != len(AllStatuses()) {
		t.Errorf("expected %d status buckets, got %d", len(AllStatuses()), len(s.ByStatus))
	}
	if len(s.ByPriority) != len(AllPriorities()) {
		t.Errorf("expected %d priority buckets, got %d", len(AllPriorities()), len(s.ByPriority))
	}
}

func TestErrorClasses(t *testing.T) {
	cases := []struct {
		err   error
		class error
	}{
		{ErrBugNotFound, ErrNotFound},
		{ErrUserNotFound, ErrNotFound},
		{ErrUsernameTaken, ErrConflict},
		{ErrEmailTaken, ErrConflict},
		{ErrReporterReferenced, ErrConflict},
		{NewValidationError("title", "is required"), ErrValidation},
		{Unavailable("find bug", errors.New("i/o timeout")), ErrUnavailable},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.class) {
			t.Errorf("expected %v to be classified as %v", tc.err, tc.class)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Violations: []FieldViolation{
		{Field: "title", Reason: "is required"},
		{Field: "status", Reason: "must be one of: open in_progress resolved closed"},
	}}
	want := "title is required; status must be one of: open in_progress resolved closed"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestUser_IsFederated(t *testing.T) {
	local := User{PasswordHash: "hash"}
	federated := User{AuthID: "google-123"}
	if local.IsFederated() {
		t.Error("local account reported as federated")
	}
	if !federated.IsFederated() {
		t.Error("federated account not detected")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalised email %q", got)
	}
}
