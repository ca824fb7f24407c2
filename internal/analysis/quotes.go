package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/group-digest-bot/internal/llm"
)

// QuoteExtractor picks standout "golden quote" messages from a window via
// the LLM. Only short, link-free messages are offered to the model.
type QuoteExtractor struct {
	gateway   Invoker
	maxQuotes int
	logger    *slog.Logger
}

// NewQuoteExtractor creates a quote extractor bounded at maxQuotes.
func NewQuoteExtractor(gateway Invoker, maxQuotes int, logger *slog.Logger) *QuoteExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteExtractor{
		gateway:   gateway,
		maxQuotes: maxQuotes,
		logger:    logger.With("component", "quote_extractor"),
	}
}

// Extract calls the LLM with the quote-eligible transcript and parses the
// result. Failure degrades this branch only.
func (e *QuoteExtractor) Extract(ctx context.Context, w *Window, opts llm.InvokeOptions) ([]GoldenQuote, llm.TokenUsage, error) {
	transcript := buildTranscript(w, true)
	if transcript == "" {
		e.logger.InfoContext(ctx, "No quote-eligible messages in window, skipping quote extraction")
		return nil, llm.TokenUsage{}, nil
	}

	prompt := fmt.Sprintf(quotePromptTemplate, e.maxQuotes, transcript)

	resp, err := e.gateway.Invoke(ctx, prompt, opts)
	if err != nil {
		return nil, llm.TokenUsage{}, fmt.Errorf("quote extraction: %w", err)
	}

	payloads := parseQuotes(resp.Text, e.maxQuotes)
	if len(payloads) == 0 {
		e.logger.WarnContext(ctx, "Quote response unparseable by both tiers",
			"response_preview", preview(resp.Text, 200))
		return nil, resp.Usage, fmt.Errorf("quote extraction: %w", ErrExtractionDegraded)
	}

	quotes := make([]GoldenQuote, 0, len(payloads))
	for _, p := range payloads {
		if p.Content == "" {
			continue
		}
		quotes = append(quotes, GoldenQuote{
			Content: p.Content,
			Sender:  p.Sender,
			Reason:  p.Reason,
		})
	}

	e.logger.InfoContext(ctx, "Extracted quotes", "count", len(quotes))
	return quotes, resp.Usage, nil
}
