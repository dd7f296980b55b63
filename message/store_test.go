package message

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		expectedErr error
	}{
		{
			name:        "missing sender",
			msg:         Message{Text: "hi"},
			expectedErr: ErrMissingSender,
		},
		{
			name:        "no text no attachments",
			msg:         Message{SenderID: "a1"},
			expectedErr: ErrEmptyMessage,
		},
		{
			name:        "markup only text",
			msg:         Message{SenderID: "a1", Text: "<script></script>"},
			expectedErr: ErrEmptyMessage,
		},
	}

	// validation runs before any network call, a nil client would panic past it
	s := NewStore(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Send(context.Background(), "a1_b2", tt.msg)
			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("Send error = %v; want %v", err, tt.expectedErr)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello there",
			expected: "hello there",
		},
		{
			name:     "script stripped",
			input:    "<script>alert(1)</script>hi",
			expected: "hi",
		},
		{
			name:     "formatting tags stripped",
			input:    "<b>bold</b> claim",
			expected: "bold claim",
		},
		{
			name:     "angle brackets in prose survive",
			input:    "2 < 3 and 4 > 1",
			expected: "2 < 3 and 4 > 1",
		},
	}

	s := NewStore(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.sanitizeText(tt.input); got != tt.expected {
				t.Errorf("sanitizeText(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestActiveTypists(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		flags    map[string]time.Time
		expected []string
	}{
		{
			name:     "fresh flags kept and sorted",
			flags:    map[string]time.Time{"b2": now.Add(-time.Second), "a1": now},
			expected: []string{"a1", "b2"},
		},
		{
			name:     "stale flag dropped",
			flags:    map[string]time.Time{"a1": now.Add(-time.Minute), "b2": now},
			expected: []string{"b2"},
		},
		{
			name:     "zero timestamp dropped",
			flags:    map[string]time.Time{"a1": {}},
			expected: []string{},
		},
		{
			name:     "boundary is inclusive",
			flags:    map[string]time.Time{"a1": now.Add(-typingStaleAfter)},
			expected: []string{"a1"},
		},
		{
			name:     "empty input",
			flags:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := activeTypists(tt.flags, now)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("activeTypists = %v; want %v", got, tt.expected)
			}
		})
	}
}

func TestReverseInPlace(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m3", CreatedAt: t0.Add(3 * time.Second)},
		{ID: "m2", CreatedAt: t0.Add(2 * time.Second)},
		{ID: "m1", CreatedAt: t0.Add(time.Second)},
	}

	reverseInPlace(msgs)

	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("messages not in strictly increasing creation order: %v", msgs)
		}
	}
	if msgs[0].ID != "m1" || msgs[2].ID != "m3" {
		t.Errorf("order = %s..%s; want m1..m3", msgs[0].ID, msgs[2].ID)
	}
}

func TestPreviewText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		typ      Type
		expected string
	}{
		{name: "text message", text: "hi", typ: TypeText, expected: "hi"},
		{name: "image without caption", text: "", typ: TypeImage, expected: "[image]"},
		{name: "file without caption", text: "", typ: TypeFile, expected: "[file]"},
		{name: "image with caption", text: "look", typ: TypeImage, expected: "look"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := previewText(tt.text, tt.typ); got != tt.expected {
				t.Errorf("previewText(%q, %q) = %q; want %q", tt.text, tt.typ, got, tt.expected)
			}
		})
	}
}

func TestReadByUser(t *testing.T) {
	m := Message{ReadBy: map[string]time.Time{"a1": time.Now()}}
	if !m.ReadByUser("a1") {
		t.Error("sender should count as having read their own message")
	}
	if m.ReadByUser("b2") {
		t.Error("b2 has not read the message yet")
	}
}
