package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// defaultStopWords is merged with any configured stop words before keyword
// ranking. Kept small; the configured set carries the language-specific bulk.
var defaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"i", "you", "he", "she", "it", "we", "they", "this", "that",
	"to", "of", "in", "on", "at", "for", "with", "not", "no", "yes",
	"be", "have", "has", "do", "does", "just", "so", "if", "then",
}

// StatisticsEngine computes deterministic aggregates from a window.
// Pure: no I/O, no external calls; identical windows yield identical output.
type StatisticsEngine struct {
	stopWords   map[string]struct{}
	topKeywords int
}

// NewStatisticsEngine builds an engine with the configured stop words merged
// over the built-in defaults.
func NewStatisticsEngine(stopWords []string, topKeywords int) *StatisticsEngine {
	if topKeywords < 1 {
		topKeywords = 10
	}
	set := make(map[string]struct{}, len(defaultStopWords)+len(stopWords))
	for _, w := range defaultStopWords {
		set[w] = struct{}{}
	}
	for _, w := range stopWords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &StatisticsEngine{stopWords: set, topKeywords: topKeywords}
}

// Compute derives Statistics from the window.
func (e *StatisticsEngine) Compute(w *Window) Statistics {
	stats := Statistics{TotalMessages: len(w.Messages)}

	participants := make(map[int64]struct{})
	frequencies := make(map[string]int)

	for _, m := range w.Messages {
		participants[m.UserID] = struct{}{}
		stats.TotalCharacters += len([]rune(m.Content))
		stats.HourlyActivity[m.Timestamp.Hour()%24]++
		if m.HasEmoji {
			stats.EmojiCount++
		}

		for _, token := range tokenize(m.Content) {
			if _, stop := e.stopWords[token]; stop {
				continue
			}
			frequencies[token]++
		}
	}

	stats.UniqueParticipants = len(participants)
	stats.TopKeywords = rankKeywords(frequencies, e.topKeywords)
	stats.MostActivePeriod = mostActivePeriod(stats.HourlyActivity)
	return stats
}

// UserStats holds per-user aggregates used by the title classifier and the
// local heuristics.
type UserStats struct {
	UserID         int64
	Name           string
	MessageCount   int
	CharCount      int
	EmojiCount     int
	ReplyCount     int
	NightCount     int
	FirstMessageAt time.Time
}

// AvgChars returns the average message length in runes.
func (u *UserStats) AvgChars() float64 {
	if u.MessageCount == 0 {
		return 0
	}
	return float64(u.CharCount) / float64(u.MessageCount)
}

// EmojiRatio returns the fraction of the user's messages containing emoji.
func (u *UserStats) EmojiRatio() float64 {
	if u.MessageCount == 0 {
		return 0
	}
	return float64(u.EmojiCount) / float64(u.MessageCount)
}

// NightRatio returns the fraction of messages sent between 00:00 and 06:00.
func (u *UserStats) NightRatio() float64 {
	if u.MessageCount == 0 {
		return 0
	}
	return float64(u.NightCount) / float64(u.MessageCount)
}

// ReplyRatio returns the fraction of the user's messages that are replies.
func (u *UserStats) ReplyRatio() float64 {
	if u.MessageCount == 0 {
		return 0
	}
	return float64(u.ReplyCount) / float64(u.MessageCount)
}

// AnalyzeUsers computes per-user aggregates for the window.
func AnalyzeUsers(w *Window) map[int64]*UserStats {
	users := make(map[int64]*UserStats)
	for _, m := range w.Messages {
		u, ok := users[m.UserID]
		if !ok {
			u = &UserStats{UserID: m.UserID, Name: m.Username, FirstMessageAt: m.Timestamp}
			users[m.UserID] = u
		}
		if u.Name == "" && m.Username != "" {
			u.Name = m.Username
		}
		u.MessageCount++
		u.CharCount += len([]rune(m.Content))
		if m.HasEmoji {
			u.EmojiCount++
		}
		if m.IsReply {
			u.ReplyCount++
		}
		if h := m.Timestamp.Hour(); h < 6 {
			u.NightCount++
		}
		if m.Timestamp.Before(u.FirstMessageAt) {
			u.FirstMessageAt = m.Timestamp
		}
	}
	return users
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit, dropping single-rune and purely numeric tokens. Tolerates empty
// content and emoji-only messages.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		runes := []rune(f)
		if len(runes) < 2 {
			continue
		}
		numeric := true
		for _, r := range runes {
			if !unicode.IsDigit(r) {
				numeric = false
				break
			}
		}
		if numeric {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// rankKeywords orders terms by descending frequency, breaking ties
// alphabetically so the ranking is stable across runs.
func rankKeywords(frequencies map[string]int, topN int) []Keyword {
	if len(frequencies) == 0 {
		return nil
	}
	ranked := make([]Keyword, 0, len(frequencies))
	for term, freq := range frequencies {
		ranked = append(ranked, Keyword{Term: term, Frequency: freq})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].Term < ranked[j].Term
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func mostActivePeriod(hours [24]int) string {
	best := 0
	for h := 1; h < 24; h++ {
		if hours[h] > hours[best] {
			best = h
		}
	}
	return fmt.Sprintf("%02d:00-%02d:00", best, (best+1)%24)
}
