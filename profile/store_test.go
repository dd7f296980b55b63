package profile

import (
	"context"
	"testing"
	"time"

	"github.com/santa-vitkovska/threadly/contract"
)

// An empty search term must short-circuit before any query is built. The
// store is constructed with a nil client, so reaching Firestore would panic.
func TestSearchByNameEmptyTerm(t *testing.T) {
	tests := []struct {
		name string
		term string
	}{
		{name: "empty", term: ""},
		{name: "whitespace only", term: "   "},
		{name: "tab and newline", term: "\t\n"},
	}

	s := NewStore(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles, err := s.SearchByName(context.Background(), tt.term, 10)
			if err != nil {
				t.Fatalf("SearchByName(%q) returned error: %v", tt.term, err)
			}
			if len(profiles) != 0 {
				t.Errorf("SearchByName(%q) = %v; want empty", tt.term, profiles)
			}
		})
	}
}

func TestFromDoc(t *testing.T) {
	seen := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	p := fromDoc("u1", contract.FirestoreUser{DisplayName: "Ann", LastSeen: seen})
	if p.UID != "u1" {
		t.Errorf("UID = %q; want u1", p.UID)
	}
	if p.DisplayName != "Ann" {
		t.Errorf("DisplayName = %q; want Ann", p.DisplayName)
	}
	if !p.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v; want %v", p.LastSeen, seen)
	}
}
