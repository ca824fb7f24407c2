package analysis

import (
	"testing"
)

func TestParseTopicsStrictTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "clean array",
			input: `[{"topic": "server migration", "contributors": ["ana", "bob"], "detail": "moving to the new host"}]`,
		},
		{
			name: "fenced array",
			input: "```json\n" +
				`[{"topic": "server migration", "contributors": ["ana", "bob"], "detail": "moving to the new host"}]` +
				"\n```",
		},
		{
			name:  "smart quotes",
			input: `[{“topic”: “server migration”, “contributors”: [“ana”, “bob”], “detail”: “moving to the new host”}]`,
		},
		{
			name:  "trailing comma",
			input: `[{"topic": "server migration", "contributors": ["ana", "bob",], "detail": "moving to the new host",},]`,
		},
		{
			name:  "missing comma between objects recovers first",
			input: `[{"topic": "server migration", "contributors": ["ana"], "detail": "moving to the new host"} {"topic": "x", "contributors": [], "detail": "y"}]`,
		},
		{
			name:  "surrounded by prose",
			input: `Sure! Here are the topics: [{"topic": "server migration", "contributors": ["ana"], "detail": "moving to the new host"}] Hope that helps.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			topics := parseTopics(tt.input, 5)
			if len(topics) == 0 {
				t.Fatalf("parseTopics(%q) returned nothing", tt.input)
			}
			if topics[0].Topic != "server migration" {
				t.Errorf("topic = %q, want %q", topics[0].Topic, "server migration")
			}
			if topics[0].Detail == "" {
				t.Error("detail is empty")
			}
		})
	}
}

func TestParseTopicsTruncatedArray(t *testing.T) {
	t.Parallel()

	// Output cut off mid-object: everything after the last complete object
	// is dropped.
	input := `[{"topic": "raid night", "contributors": ["ana"], "detail": "planning the weekend raid"}, {"topic": "loot rules", "contributors": ["bo`

	topics := parseTopics(input, 5)
	if len(topics) != 1 {
		t.Fatalf("parseTopics() returned %d topics, want 1", len(topics))
	}
	if topics[0].Topic != "raid night" {
		t.Errorf("topic = %q, want %q", topics[0].Topic, "raid night")
	}
}

func TestParseTopicsRegexFallback(t *testing.T) {
	t.Parallel()

	// Broken beyond repair for the strict tier (unbalanced brackets inside),
	// but the per-object regex still finds the fields.
	input := `The topics are {"topic": "patch notes", "contributors": ["ana", "bob"], "detail": "discussing the balance changes"} and that's it`

	topics := parseTopics(input, 5)
	if len(topics) != 1 {
		t.Fatalf("parseTopics() returned %d topics, want 1", len(topics))
	}
	if topics[0].Topic != "patch notes" {
		t.Errorf("topic = %q, want %q", topics[0].Topic, "patch notes")
	}
	if len(topics[0].Contributors) != 2 {
		t.Errorf("contributors = %v, want 2 names", topics[0].Contributors)
	}
}

func TestParseTopicsCapsOutput(t *testing.T) {
	t.Parallel()

	input := `[
		{"topic": "one", "contributors": [], "detail": "a"},
		{"topic": "two", "contributors": [], "detail": "b"},
		{"topic": "three", "contributors": [], "detail": "c"}
	]`

	topics := parseTopics(input, 2)
	if len(topics) != 2 {
		t.Errorf("parseTopics() returned %d topics, want cap of 2", len(topics))
	}
}

func TestParseTopicsUnparseable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "prose only", input: "I could not find any topics in this conversation."},
		{name: "wrong shape", input: `{"answer": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if topics := parseTopics(tt.input, 5); len(topics) != 0 {
				t.Errorf("parseTopics(%q) = %v, want none", tt.input, topics)
			}
		})
	}
}

func TestParseTitles(t *testing.T) {
	t.Parallel()

	input := `[{"name": "ana", "user_id": "12345", "title": "night owl", "mbti": "INTP", "reason": "posts at 3am"}]`

	titles := parseTitles(input, 10)
	if len(titles) != 1 {
		t.Fatalf("parseTitles() returned %d titles, want 1", len(titles))
	}
	got := titles[0]
	if got.Name != "ana" || got.UserID != "12345" || got.Title != "night owl" || got.MBTI != "INTP" {
		t.Errorf("parseTitles() = %+v", got)
	}
}

func TestParseTitlesRegexFallbackWithBareID(t *testing.T) {
	t.Parallel()

	// Unquoted user_id plus a missing closing bracket.
	input := `[{"name": "ana", "user_id": 12345, "title": "night owl", "mbti": "INTP", "reason": "posts at 3am"}`

	titles := parseTitles(input, 10)
	if len(titles) != 1 {
		t.Fatalf("parseTitles() returned %d titles, want 1", len(titles))
	}
	if titles[0].UserID != "12345" {
		t.Errorf("UserID = %q, want %q", titles[0].UserID, "12345")
	}
}

func TestParseQuotes(t *testing.T) {
	t.Parallel()

	input := `[{"content": "sleep is just a demo of death", "sender": "bob", "reason": "deadpan absurdity"}]`

	quotes := parseQuotes(input, 5)
	if len(quotes) != 1 {
		t.Fatalf("parseQuotes() returned %d quotes, want 1", len(quotes))
	}
	if quotes[0].Content != "sleep is just a demo of death" || quotes[0].Sender != "bob" {
		t.Errorf("parseQuotes() = %+v", quotes[0])
	}
}

func TestRepairJSONBareKeys(t *testing.T) {
	t.Parallel()

	input := `[{topic: "patch notes", contributors: [], detail: "balance"}]`
	var out []topicPayload
	if !decodeArray(input, &out) {
		t.Fatal("decodeArray() failed on bare-key input")
	}
	if len(out) != 1 || out[0].Topic != "patch notes" {
		t.Errorf("decodeArray() = %+v", out)
	}
}

func TestCleanContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "hello there", expected: "hello there"},
		{name: "newlines flattened", input: "line one\nline two", expected: "line one line two"},
		{name: "smart quotes normalized", input: "she said “hi”", expected: `she said "hi"`},
		{name: "control chars stripped", input: "ok\x00\x1fdone", expected: "okdone"},
		{name: "whitespace trimmed", input: "  padded  ", expected: "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := cleanContent(tt.input); got != tt.expected {
				t.Errorf("cleanContent(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
