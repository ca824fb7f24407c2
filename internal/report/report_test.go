package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/group-digest-bot/internal/analysis"
	"github.com/group-digest-bot/internal/report"
)

func fullResult() *analysis.Result {
	return &analysis.Result{
		GroupID: -100,
		Window:  analysis.WindowMeta{Days: 1},
		Stats: analysis.Statistics{
			TotalMessages:      42,
			UniqueParticipants: 5,
			TotalCharacters:    900,
			EmojiCount:         7,
			MostActivePeriod:   "21:00-22:00",
			TopKeywords:        []analysis.Keyword{{Term: "raid", Frequency: 9}},
		},
		Topics: []analysis.Topic{
			{Title: "raid planning", Participants: []string{"ana", "bob"}, Summary: "settled on saturday"},
		},
		Titles: map[int64]analysis.UserTitle{
			1: {UserID: 1, Name: "ana", Tag: analysis.TagNightOwl, MBTI: "INTP", Reason: "posts at 3am", Score: 0.9},
		},
		Quotes: []analysis.GoldenQuote{
			{Content: "sleep is just a demo of death", Sender: "bob", Reason: "deadpan"},
		},
		GeneratedAt: time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC),
	}
}

func TestRenderFullDigest(t *testing.T) {
	t.Parallel()

	text := report.Render(fullResult())

	for _, want := range []string{
		"last 1 day(s)",
		"42 from 5 participants",
		"Busiest hour: 21:00-22:00",
		"raid (9)",
		"Hot topics",
		"raid planning",
		"ana, bob",
		"Member titles",
		"ana: night owl (INTP)",
		"Golden quotes",
		"sleep is just a demo of death",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Render() missing %q in:\n%s", want, text)
		}
	}
	if strings.Contains(text, "incomplete") {
		t.Error("Render() contains degradation note for a healthy result")
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	t.Parallel()

	r := fullResult()
	r.Topics = nil
	r.Titles = nil
	r.Quotes = nil

	text := report.Render(r)

	for _, absent := range []string{"Hot topics", "Member titles", "Golden quotes"} {
		if strings.Contains(text, absent) {
			t.Errorf("Render() contains %q for an empty section", absent)
		}
	}
	if !strings.Contains(text, "Activity") {
		t.Error("Render() missing statistics section")
	}
}

func TestRenderDegradationNote(t *testing.T) {
	t.Parallel()

	r := fullResult()
	r.Topics = nil
	r.Quotes = nil
	r.PartialFailures = []analysis.FailureKind{analysis.FailureLLMUnavailable}

	text := report.Render(r)
	if !strings.Contains(text, "incomplete") {
		t.Errorf("Render() missing degradation note in:\n%s", text)
	}
	if !strings.Contains(text, "analysis service unavailable") {
		t.Errorf("Render() missing outage detail in:\n%s", text)
	}
}

func TestRenderOrdersTitlesByScore(t *testing.T) {
	t.Parallel()

	r := fullResult()
	r.Topics = nil
	r.Quotes = nil
	r.Titles = map[int64]analysis.UserTitle{
		1: {UserID: 1, Name: "ana", Tag: analysis.TagNightOwl, Score: 0.4},
		2: {UserID: 2, Name: "bob", Tag: analysis.TagEngager, Score: 0.9},
	}

	text := report.Render(r)
	if strings.Index(text, "bob") > strings.Index(text, "ana") {
		t.Errorf("Render() should list bob (higher score) before ana:\n%s", text)
	}
}
