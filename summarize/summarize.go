// Package summarize implements the /summarize composer command: a summary of
// the last window of text messages in a room. Without an OpenAI key the
// summarizer is a documented placeholder that only reports a word count.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/santa-vitkovska/threadly/log"
	"github.com/santa-vitkovska/threadly/message"
)

const (
	// Command is the composer prefix that triggers summarization.
	Command = "/summarize"

	// Window is how many of the room's most recent text messages feed the
	// summary.
	Window = 50

	openAIModel  = "gpt-4o-mini"
	systemPrompt = "You summarize chat conversations. Produce a short markdown summary " +
		"of the discussion below, grouped by topic, at most five bullet points. " +
		"Do not invent content that is not in the messages."
)

var openaiAPIKey = os.Getenv("OPENAI_API_KEY")

// IsCommand reports whether a composer input invokes the summarize command.
func IsCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == Command {
		return true
	}
	return strings.HasPrefix(trimmed, Command+" ")
}

// Summarizer turns a message window into a summary string (markdown).
type Summarizer struct {
	llm *openai.LLM
}

// New returns a Summarizer. When no OpenAI key is configured the returned
// instance falls back to the word-count placeholder.
func New() (*Summarizer, error) {
	if openaiAPIKey == "" {
		return &Summarizer{}, nil
	}
	llm, err := openai.New(
		openai.WithModel(openAIModel),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openAI client: %w", err)
	}
	return &Summarizer{llm: llm}, nil
}

// Summarize produces a summary of the last Window text messages in msgs.
func (s *Summarizer) Summarize(ctx context.Context, msgs []message.Message) (string, error) {
	window := lastTextMessages(msgs, Window)
	if len(window) == 0 {
		return "Nothing to summarize yet.", nil
	}
	if s.llm == nil {
		return placeholder(window), nil
	}

	resp, err := s.llm.GenerateContent(
		ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, transcript(window)),
		},
		llms.WithMaxTokens(500),
	)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		log.LoggerFromContext(ctx).Error("no summary choices returned",
			slog.Int("messages", len(window)),
		)
		return "", fmt.Errorf("empty summary response")
	}
	return resp.Choices[0].Content, nil
}

// lastTextMessages keeps the newest n messages of type text, preserving
// chronological order.
func lastTextMessages(msgs []message.Message, n int) []message.Message {
	var texts []message.Message
	for _, m := range msgs {
		if m.Type != message.TypeText || strings.TrimSpace(m.Text) == "" {
			continue
		}
		texts = append(texts, m)
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts
}

// placeholder is the shipped non-functional summary: a word count over the
// window, emitted when no API key is configured.
func placeholder(window []message.Message) string {
	words := 0
	for _, m := range window {
		words += len(strings.Fields(m.Text))
	}
	return fmt.Sprintf("Summary unavailable: summarization is not configured. "+
		"The last %d messages contain %d words.", len(window), words)
}

func transcript(window []message.Message) string {
	var b strings.Builder
	for _, m := range window {
		b.WriteString(m.SenderID)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}
