package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/group-digest-bot/internal/llm"
)

// Invoker is the LLM surface the extractors depend on; *llm.Gateway
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, opts llm.InvokeOptions) (*llm.Response, error)
}

// TopicExtractor turns a window into a small ordered list of discussion
// topics via the LLM.
type TopicExtractor struct {
	gateway   Invoker
	maxTopics int
	logger    *slog.Logger
}

// NewTopicExtractor creates a topic extractor. maxTopics bounds the output.
func NewTopicExtractor(gateway Invoker, maxTopics int, logger *slog.Logger) *TopicExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicExtractor{
		gateway:   gateway,
		maxTopics: maxTopics,
		logger:    logger.With("component", "topic_extractor"),
	}
}

// Extract calls the LLM with a summarized transcript and parses the result.
// A transport failure or an unparseable response degrades this branch only;
// callers record the returned error as a partial failure.
func (e *TopicExtractor) Extract(ctx context.Context, w *Window, opts llm.InvokeOptions) ([]Topic, llm.TokenUsage, error) {
	transcript := buildTranscript(w, false)
	if transcript == "" {
		e.logger.InfoContext(ctx, "No analyzable text in window, skipping topic extraction")
		return nil, llm.TokenUsage{}, nil
	}

	prompt := fmt.Sprintf(topicPromptTemplate, e.maxTopics, transcript)

	resp, err := e.gateway.Invoke(ctx, prompt, opts)
	if err != nil {
		return nil, llm.TokenUsage{}, fmt.Errorf("topic extraction: %w", err)
	}

	payloads := parseTopics(resp.Text, e.maxTopics)
	if len(payloads) == 0 {
		e.logger.WarnContext(ctx, "Topic response unparseable by both tiers",
			"response_preview", preview(resp.Text, 200))
		return nil, resp.Usage, fmt.Errorf("topic extraction: %w", ErrExtractionDegraded)
	}

	// Participants are restricted to names actually present in the window.
	known := w.SenderNames()
	topics := make([]Topic, 0, len(payloads))
	for _, p := range payloads {
		if p.Topic == "" {
			continue
		}
		var participants []string
		for _, name := range p.Contributors {
			if _, ok := known[name]; ok {
				participants = append(participants, name)
			}
			if len(participants) == 5 {
				break
			}
		}
		topics = append(topics, Topic{
			Title:        p.Topic,
			Participants: participants,
			Summary:      p.Detail,
		})
	}

	e.logger.InfoContext(ctx, "Extracted topics", "count", len(topics))
	return topics, resp.Usage, nil
}

// buildTranscript renders the window as "[HH:MM] name: text" lines. Command
// messages and trivially short messages are skipped. When quotesOnly is set,
// only messages of 5-100 runes that don't look like links are included.
func buildTranscript(w *Window, quotesOnly bool) string {
	var b strings.Builder
	for _, m := range w.Messages {
		text := cleanContent(m.Content)
		if text == "" || strings.HasPrefix(text, "/") {
			continue
		}
		runeLen := len([]rune(text))
		if quotesOnly {
			if runeLen < 5 || runeLen > 100 ||
				strings.HasPrefix(text, "http") || strings.HasPrefix(text, "www") {
				continue
			}
		} else if runeLen <= 2 {
			continue
		}

		name := m.Username
		if name == "" {
			name = fmt.Sprintf("user%d", m.UserID)
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), name, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
