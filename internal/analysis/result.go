// Package analysis implements the group chat analysis pipeline: message
// windowing, deterministic statistics, and LLM-backed extraction of topics,
// user titles, and golden quotes, composed into a single best-effort result
// per run.
package analysis

import (
	"errors"
	"time"

	"github.com/group-digest-bot/internal/llm"
)

var (
	// ErrEmptyWindow indicates no messages qualified for the analysis window.
	// Fatal to the run, not to the scheduler.
	ErrEmptyWindow = errors.New("no messages in analysis window")

	// ErrAdapterUnavailable indicates the message source could not be read.
	ErrAdapterUnavailable = errors.New("message source unavailable")

	// ErrExtractionDegraded indicates the LLM responded but its output could
	// not be parsed even by the fallback tier. Degrades the branch only.
	ErrExtractionDegraded = errors.New("extraction degraded: unparseable response")
)

// FailureKind labels a recorded partial failure in a completed result.
type FailureKind string

const (
	FailureLLMUnavailable     FailureKind = "llm_unavailable"
	FailureExtractionDegraded FailureKind = "extraction_degraded"
)

// FailureKindForError maps a branch error to its recorded failure kind.
func FailureKindForError(err error) FailureKind {
	if errors.Is(err, llm.ErrUnavailable) {
		return FailureLLMUnavailable
	}
	return FailureExtractionDegraded
}

// TitleTag is an enumerated behavioral classification assigned per user per run.
type TitleTag string

const (
	TagProlificPoster TitleTag = "prolific poster"
	TagNightOwl       TitleTag = "night owl"
	TagLongForm       TitleTag = "long-form writer"
	TagEngager        TitleTag = "engager"
	TagEmojiArmory    TitleTag = "emoji armory"
	TagTopicStarter   TitleTag = "topic starter"
	TagOpinionLeader  TitleTag = "opinion leader"
)

// Topic is an extracted discussion thread with participants and a summary.
type Topic struct {
	Title        string
	Participants []string
	Summary      string
}

// UserTitle is a behavioral classification for one user. Score is the
// evidence strength in [0, 1]; QualifiedAt is the timestamp of the earliest
// message supporting the title, used for tie-breaking.
type UserTitle struct {
	UserID      int64
	Name        string
	Tag         TitleTag
	MBTI        string
	Reason      string
	Score       float64
	QualifiedAt time.Time
}

// GoldenQuote is a standout message picked by the LLM.
type GoldenQuote struct {
	Content string
	Sender  string
	Reason  string
}

// Statistics holds the deterministic aggregates for one window.
// Recomputed every run, never cached.
type Statistics struct {
	TotalMessages      int
	UniqueParticipants int
	TotalCharacters    int
	EmojiCount         int
	HourlyActivity     [24]int
	TopKeywords        []Keyword
	MostActivePeriod   string
}

// Keyword is a ranked term with its frequency.
type Keyword struct {
	Term      string
	Frequency int
}

// WindowMeta describes the bounds of the analyzed window.
type WindowMeta struct {
	Days        int
	MaxMessages int
	From        time.Time
	To          time.Time
}

// Result is the sole artifact handed to the renderer. Immutable once produced.
type Result struct {
	GroupID         int64
	Window          WindowMeta
	Stats           Statistics
	Topics          []Topic
	Titles          map[int64]UserTitle
	Quotes          []GoldenQuote
	Usage           llm.TokenUsage
	PartialFailures []FailureKind
	GeneratedAt     time.Time
}

// Degraded reports whether any branch recorded a partial failure.
func (r *Result) Degraded() bool {
	return len(r.PartialFailures) > 0
}

// HasFailure reports whether the given failure kind was recorded.
func (r *Result) HasFailure(kind FailureKind) bool {
	for _, k := range r.PartialFailures {
		if k == kind {
			return true
		}
	}
	return false
}
