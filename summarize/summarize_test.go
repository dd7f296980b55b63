package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/santa-vitkovska/threadly/message"
)

func TestIsCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "bare command", input: "/summarize", expected: true},
		{name: "command with argument", input: "/summarize please", expected: true},
		{name: "leading whitespace", input: "  /summarize", expected: true},
		{name: "plain message", input: "let's summarize later", expected: false},
		{name: "prefix of longer word", input: "/summarizer", expected: false},
		{name: "empty", input: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCommand(tt.input); got != tt.expected {
				t.Errorf("IsCommand(%q) = %v; want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLastTextMessages(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 60; i++ {
		msgs = append(msgs, message.Message{
			ID:   fmt.Sprintf("m%d", i),
			Type: message.TypeText,
			Text: fmt.Sprintf("message %d", i),
		})
	}
	// non-text entries must be skipped, not counted against the window
	msgs = append(msgs,
		message.Message{ID: "img", Type: message.TypeImage},
		message.Message{ID: "sys", Type: message.TypeSystem, Text: "b2 joined"},
	)

	window := lastTextMessages(msgs, 50)
	if len(window) != 50 {
		t.Fatalf("window size = %d; want 50", len(window))
	}
	if window[0].ID != "m10" || window[49].ID != "m59" {
		t.Errorf("window = %s..%s; want m10..m59", window[0].ID, window[49].ID)
	}
}

func TestLastTextMessagesSkipsBlank(t *testing.T) {
	msgs := []message.Message{
		{ID: "m1", Type: message.TypeText, Text: "hello"},
		{ID: "m2", Type: message.TypeText, Text: "   "},
	}
	window := lastTextMessages(msgs, 50)
	if len(window) != 1 || window[0].ID != "m1" {
		t.Errorf("window = %v; want only m1", window)
	}
}

func TestSummarizePlaceholder(t *testing.T) {
	s := &Summarizer{}
	msgs := []message.Message{
		{Type: message.TypeText, Text: "one two three"},
		{Type: message.TypeText, Text: "four five"},
	}

	got, err := s.Summarize(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !strings.Contains(got, "2 messages") || !strings.Contains(got, "5 words") {
		t.Errorf("placeholder = %q; want counts of 2 messages and 5 words", got)
	}
}

func TestSummarizeEmptyRoom(t *testing.T) {
	s := &Summarizer{}
	got, err := s.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if got != "Nothing to summarize yet." {
		t.Errorf("empty-room summary = %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	got := RenderHTML("- point one\n- point two")
	if !strings.Contains(got, "<li>") {
		t.Errorf("RenderHTML did not produce a list: %q", got)
	}

	got = RenderHTML(`<script>alert(1)</script>fine`)
	if strings.Contains(got, "<script>") {
		t.Errorf("RenderHTML let script markup through: %q", got)
	}
}

func TestTranscript(t *testing.T) {
	msgs := []message.Message{
		{SenderID: "a1", Type: message.TypeText, Text: "hi"},
		{SenderID: "b2", Type: message.TypeText, Text: "hello"},
	}
	expected := "a1: hi\nb2: hello\n"
	if got := transcript(msgs); got != expected {
		t.Errorf("transcript = %q; want %q", got, expected)
	}
}
