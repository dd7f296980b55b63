package chat

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRoomID(t *testing.T) {
	tests := []struct {
		name        string
		members     []string
		expected    string
		expectedErr error
	}{
		{
			name:     "two members already sorted",
			members:  []string{"a1", "b2"},
			expected: "a1_b2",
		},
		{
			name:     "order independent",
			members:  []string{"b2", "a1"},
			expected: "a1_b2",
		},
		{
			name:     "duplicates collapse",
			members:  []string{"b2", "a1", "b2"},
			expected: "a1_b2",
		},
		{
			name:     "three members",
			members:  []string{"c3", "a1", "b2"},
			expected: "a1_b2_c3",
		},
		{
			name:     "whitespace trimmed",
			members:  []string{" a1 ", "b2"},
			expected: "a1_b2",
		},
		{
			name:        "single member",
			members:     []string{"a1"},
			expectedErr: ErrNotEnoughMembers,
		},
		{
			name:        "duplicate of one member",
			members:     []string{"a1", "a1"},
			expectedErr: ErrNotEnoughMembers,
		},
		{
			name:        "empty ids ignored",
			members:     []string{"", "a1", ""},
			expectedErr: ErrNotEnoughMembers,
		},
		{
			name:        "no members",
			members:     nil,
			expectedErr: ErrNotEnoughMembers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := RoomID(tt.members)
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("RoomID(%v) error = %v; want %v", tt.members, err, tt.expectedErr)
			}
			if id != tt.expected {
				t.Errorf("RoomID(%v) = %q; want %q", tt.members, id, tt.expected)
			}
		})
	}
}

// Validation must fail before any network call: the store has a nil client,
// so touching Firestore would panic.
func TestCreateOrGetRoomValidation(t *testing.T) {
	s := NewStore(nil)
	_, err := s.CreateOrGetRoom(context.Background(), []string{"a1"})
	if !errors.Is(err, ErrNotEnoughMembers) {
		t.Fatalf("CreateOrGetRoom error = %v; want %v", err, ErrNotEnoughMembers)
	}
}

func TestSortByRecency(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		rooms    []Room
		expected []string
	}{
		{
			name: "newest first",
			rooms: []Room{
				{ID: "old", LastMessageAt: t0},
				{ID: "new", LastMessageAt: t0.Add(time.Hour)},
			},
			expected: []string{"new", "old"},
		},
		{
			name: "missing timestamp sorts last",
			rooms: []Room{
				{ID: "silent"},
				{ID: "active", LastMessageAt: t0},
			},
			expected: []string{"active", "silent"},
		},
		{
			name: "ties break on id",
			rooms: []Room{
				{ID: "b", LastMessageAt: t0},
				{ID: "a", LastMessageAt: t0},
			},
			expected: []string{"a", "b"},
		},
		{
			name: "all silent ordered by id",
			rooms: []Room{
				{ID: "z"},
				{ID: "a"},
			},
			expected: []string{"a", "z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortByRecency(tt.rooms)
			var ids []string
			for _, r := range tt.rooms {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tt.expected) {
				t.Errorf("order = %v; want %v", ids, tt.expected)
			}
		})
	}
}

func TestEmitLatestReplacesUnconsumed(t *testing.T) {
	ch := make(chan []Room, 1)
	emitLatest(ch, []Room{{ID: "first"}})
	emitLatest(ch, []Room{{ID: "second"}})

	got := <-ch
	if len(got) != 1 || got[0].ID != "second" {
		t.Errorf("received %v; want the latest snapshot only", got)
	}
}
