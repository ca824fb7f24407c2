// Package report renders a completed analysis result as a plain-text digest
// suitable for posting back into the group.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/group-digest-bot/internal/analysis"
)

// Render produces the full digest text for one analysis result. Sections with
// no content are omitted; a degraded run gets a short notice at the end.
func Render(r *analysis.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Group digest for the last %d day(s)\n", r.Window.Days)
	fmt.Fprintf(&b, "Generated %s\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	b.WriteString(divider)

	writeStats(&b, &r.Stats)

	if len(r.Topics) > 0 {
		b.WriteString(divider)
		writeTopics(&b, r.Topics)
	}
	if len(r.Titles) > 0 {
		b.WriteString(divider)
		writeTitles(&b, r.Titles)
	}
	if len(r.Quotes) > 0 {
		b.WriteString(divider)
		writeQuotes(&b, r.Quotes)
	}

	if r.Degraded() {
		b.WriteString(divider)
		writeDegradation(&b, r)
	}

	return strings.TrimRight(b.String(), "\n")
}

const divider = "\n--------------------\n\n"

func writeStats(b *strings.Builder, s *analysis.Statistics) {
	b.WriteString("Activity\n")
	fmt.Fprintf(b, "  Messages: %d from %d participants\n", s.TotalMessages, s.UniqueParticipants)
	fmt.Fprintf(b, "  Characters: %d, messages with emoji: %d\n", s.TotalCharacters, s.EmojiCount)
	if s.MostActivePeriod != "" {
		fmt.Fprintf(b, "  Busiest hour: %s\n", s.MostActivePeriod)
	}
	if len(s.TopKeywords) > 0 {
		terms := make([]string, 0, len(s.TopKeywords))
		for _, k := range s.TopKeywords {
			terms = append(terms, fmt.Sprintf("%s (%d)", k.Term, k.Frequency))
		}
		fmt.Fprintf(b, "  Keywords: %s\n", strings.Join(terms, ", "))
	}
}

func writeTopics(b *strings.Builder, topics []analysis.Topic) {
	b.WriteString("Hot topics\n")
	for i, t := range topics {
		fmt.Fprintf(b, "  %d. %s\n", i+1, t.Title)
		if len(t.Participants) > 0 {
			fmt.Fprintf(b, "     With: %s\n", strings.Join(t.Participants, ", "))
		}
		if t.Summary != "" {
			fmt.Fprintf(b, "     %s\n", t.Summary)
		}
	}
}

func writeTitles(b *strings.Builder, titles map[int64]analysis.UserTitle) {
	ordered := make([]analysis.UserTitle, 0, len(titles))
	for _, t := range titles {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	b.WriteString("Member titles\n")
	for _, t := range ordered {
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("user%d", t.UserID)
		}
		line := fmt.Sprintf("  %s: %s", name, t.Tag)
		if t.MBTI != "" {
			line += fmt.Sprintf(" (%s)", t.MBTI)
		}
		b.WriteString(line + "\n")
		if t.Reason != "" {
			fmt.Fprintf(b, "     %s\n", t.Reason)
		}
	}
}

func writeQuotes(b *strings.Builder, quotes []analysis.GoldenQuote) {
	b.WriteString("Golden quotes\n")
	for _, q := range quotes {
		fmt.Fprintf(b, "  %q", q.Content)
		if q.Sender != "" {
			fmt.Fprintf(b, " - %s", q.Sender)
		}
		b.WriteString("\n")
		if q.Reason != "" {
			fmt.Fprintf(b, "     %s\n", q.Reason)
		}
	}
}

func writeDegradation(b *strings.Builder, r *analysis.Result) {
	b.WriteString("Note: parts of this digest are incomplete")
	if r.HasFailure(analysis.FailureLLMUnavailable) {
		b.WriteString(" (analysis service unavailable)")
	}
	b.WriteString(".\n")
}
