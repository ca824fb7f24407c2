package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/group-digest-bot/internal/llm"
)

// Analyzer composes the statistics engine and the three LLM-backed extraction
// branches into one best-effort run. Statistics are computed synchronously;
// the branches run concurrently and their failures degrade the result instead
// of failing it.
type Analyzer struct {
	stats   *StatisticsEngine
	topics  *TopicExtractor
	titles  *TitleClassifier
	quotes  *QuoteExtractor
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewAnalyzer wires the pipeline components together.
func NewAnalyzer(stats *StatisticsEngine, topics *TopicExtractor, titles *TitleClassifier, quotes *QuoteExtractor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		stats:   stats,
		topics:  topics,
		titles:  titles,
		quotes:  quotes,
		logger:  logger.With("component", "analyzer"),
		nowFunc: time.Now,
	}
}

// Analyze runs the full pipeline over the window and assembles the result.
// It never returns an error for branch failures; the only fatal conditions
// are a nil/empty window and context cancellation surfaced by the branches.
func (a *Analyzer) Analyze(ctx context.Context, groupID int64, w *Window, opts llm.InvokeOptions) (*Result, error) {
	if w == nil || len(w.Messages) == 0 {
		return nil, ErrEmptyWindow
	}

	started := a.nowFunc()
	result := &Result{
		GroupID: groupID,
		Window:  w.Meta,
		Stats:   a.stats.Compute(w),
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		usage llm.TokenUsage
	)

	recordFailure := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		result.PartialFailures = append(result.PartialFailures, FailureKindForError(err))
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		topics, u, err := a.topics.Extract(ctx, w, opts)
		mu.Lock()
		usage.Add(u)
		mu.Unlock()
		if err != nil {
			a.logger.WarnContext(ctx, "Topic branch degraded", "group_id", groupID, "error", err)
			recordFailure(err)
			return
		}
		mu.Lock()
		result.Topics = topics
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		titles, u, err := a.titles.Classify(ctx, w, opts)
		mu.Lock()
		usage.Add(u)
		// Heuristic titles survive an LLM failure.
		result.Titles = titles
		mu.Unlock()
		if err != nil {
			a.logger.WarnContext(ctx, "Title branch degraded", "group_id", groupID, "error", err)
			recordFailure(err)
		}
	}()

	go func() {
		defer wg.Done()
		quotes, u, err := a.quotes.Extract(ctx, w, opts)
		mu.Lock()
		usage.Add(u)
		mu.Unlock()
		if err != nil {
			a.logger.WarnContext(ctx, "Quote branch degraded", "group_id", groupID, "error", err)
			recordFailure(err)
			return
		}
		mu.Lock()
		result.Quotes = quotes
		mu.Unlock()
	}()

	wg.Wait()

	result.Usage = usage
	result.GeneratedAt = a.nowFunc()

	a.logger.InfoContext(ctx, "Analysis complete",
		"group_id", groupID,
		"messages", result.Stats.TotalMessages,
		"topics", len(result.Topics),
		"titles", len(result.Titles),
		"quotes", len(result.Quotes),
		"partial_failures", len(result.PartialFailures),
		"tokens", result.Usage.TotalTokens,
		"duration", a.nowFunc().Sub(started).Round(time.Millisecond))

	return result, nil
}
