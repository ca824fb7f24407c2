package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/group-digest-bot/internal/llm"
)

// TitleClassifier assigns behavioral titles to the most active members of a
// window. The LLM provides the primary classification; local heuristics run
// independently so some title is always assignable even when the model call
// fails entirely.
type TitleClassifier struct {
	gateway     Invoker
	maxTitles   int
	minMessages int
	tieBreak    TieBreak
	logger      *slog.Logger
}

// NewTitleClassifier creates a classifier. maxTitles bounds how many members
// are considered; members with fewer than minMessages messages are ignored.
func NewTitleClassifier(gateway Invoker, maxTitles, minMessages int, logger *slog.Logger) *TitleClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleClassifier{
		gateway:     gateway,
		maxTitles:   maxTitles,
		minMessages: minMessages,
		tieBreak:    defaultTieBreak,
		logger:      logger.With("component", "title_classifier"),
	}
}

// Classify produces per-user titles for the window. LLM titles take
// precedence; heuristic titles fill in for members the model skipped. When
// the model call fails or its output is unparseable, the heuristic titles are
// returned together with the error so the caller can record the degradation.
func (c *TitleClassifier) Classify(ctx context.Context, w *Window, opts llm.InvokeOptions) (map[int64]UserTitle, llm.TokenUsage, error) {
	users := AnalyzeUsers(w)
	eligible := c.selectEligible(users)
	if len(eligible) == 0 {
		c.logger.InfoContext(ctx, "No members above activity threshold, skipping title classification")
		return nil, llm.TokenUsage{}, nil
	}

	fallback := HeuristicTitles(eligible, c.minMessages, c.tieBreak)

	prompt := fmt.Sprintf(titlePromptTemplate, c.memberData(w, eligible))

	resp, err := c.gateway.Invoke(ctx, prompt, opts)
	if err != nil {
		c.logger.WarnContext(ctx, "Title classification falling back to heuristics", "error", err)
		return fallback, llm.TokenUsage{}, fmt.Errorf("title classification: %w", err)
	}

	payloads := parseTitles(resp.Text, c.maxTitles)
	if len(payloads) == 0 {
		c.logger.WarnContext(ctx, "Title response unparseable by both tiers",
			"response_preview", preview(resp.Text, 200))
		return fallback, resp.Usage, fmt.Errorf("title classification: %w", ErrExtractionDegraded)
	}

	titles := c.mergeTitles(eligible, payloads, fallback)
	c.logger.InfoContext(ctx, "Classified titles", "count", len(titles))
	return titles, resp.Usage, nil
}

// selectEligible keeps members with at least minMessages messages, ordered by
// message count, capped at maxTitles.
func (c *TitleClassifier) selectEligible(users map[int64]*UserStats) map[int64]*UserStats {
	ranked := make([]*UserStats, 0, len(users))
	for _, u := range users {
		if u.MessageCount >= c.minMessages {
			ranked = append(ranked, u)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MessageCount != ranked[j].MessageCount {
			return ranked[i].MessageCount > ranked[j].MessageCount
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	if len(ranked) > c.maxTitles {
		ranked = ranked[:c.maxTitles]
	}

	eligible := make(map[int64]*UserStats, len(ranked))
	for _, u := range ranked {
		eligible[u.UserID] = u
	}
	return eligible
}

// memberData renders the per-member feature lines the prompt operates on,
// plus a short sample of each member's recent messages.
func (c *TitleClassifier) memberData(w *Window, eligible map[int64]*UserStats) string {
	samples := make(map[int64][]string, len(eligible))
	for i := len(w.Messages) - 1; i >= 0; i-- {
		m := w.Messages[i]
		if _, ok := eligible[m.UserID]; !ok {
			continue
		}
		text := cleanContent(m.Content)
		if text == "" || strings.HasPrefix(text, "/") || len([]rune(text)) <= 2 {
			continue
		}
		if len(samples[m.UserID]) < 3 {
			samples[m.UserID] = append(samples[m.UserID], text)
		}
	}

	ids := make([]int64, 0, len(eligible))
	for id := range eligible {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return eligible[ids[i]].MessageCount > eligible[ids[j]].MessageCount
	})

	var b strings.Builder
	for _, id := range ids {
		u := eligible[id]
		name := u.Name
		if name == "" {
			name = fmt.Sprintf("user%d", id)
		}
		fmt.Fprintf(&b, "- %s (user_id %d): %d messages, avg %.0f chars, emoji ratio %.2f, night ratio %.2f, reply ratio %.2f\n",
			name, id, u.MessageCount, u.AvgChars(), u.EmojiRatio(), u.NightRatio(), u.ReplyRatio())
		for _, s := range samples[id] {
			fmt.Fprintf(&b, "  sample: %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// mergeTitles folds LLM results over the heuristic fallback. LLM titles win;
// members the model skipped keep their heuristic title.
func (c *TitleClassifier) mergeTitles(eligible map[int64]*UserStats, payloads []titlePayload, fallback map[int64]UserTitle) map[int64]UserTitle {
	byName := make(map[string]int64, len(eligible))
	for id, u := range eligible {
		if u.Name != "" {
			byName[u.Name] = id
		}
	}

	titles := make(map[int64]UserTitle, len(eligible))
	for id, t := range fallback {
		titles[id] = t
	}

	for _, p := range payloads {
		id, ok := resolveUserID(p, byName)
		if !ok {
			continue
		}
		u, ok := eligible[id]
		if !ok {
			continue
		}
		title := UserTitle{
			UserID:      id,
			Name:        u.Name,
			Tag:         TitleTag(strings.ToLower(strings.TrimSpace(p.Title))),
			MBTI:        strings.ToUpper(strings.TrimSpace(p.MBTI)),
			Reason:      strings.TrimSpace(p.Reason),
			QualifiedAt: u.FirstMessageAt,
		}
		if title.Tag == "" {
			continue
		}
		if prior, ok := titles[id]; ok {
			title.Score = prior.Score
		}
		titles[id] = title
	}
	return titles
}

// resolveUserID trusts the numeric user_id when it parses, falling back to
// the member name as it appeared in the prompt.
func resolveUserID(p titlePayload, byName map[string]int64) (int64, bool) {
	if id, err := strconv.ParseInt(strings.TrimSpace(p.UserID), 10, 64); err == nil && id != 0 {
		return id, true
	}
	id, ok := byName[strings.TrimSpace(p.Name)]
	return id, ok
}
