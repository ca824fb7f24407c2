package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Model output parsing is two-tiered: locate and repair the JSON array the
// prompt asked for, then strict-decode it; if that fails, recover what we can
// with permissive per-object regexes. Raw model text never travels past this
// file.

var (
	jsonArrayRe    = regexp.MustCompile(`(?s)\[.*\]`)
	codeFenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*")
	missingCommaRe = regexp.MustCompile(`}\s*{`)
	bareKeyRe      = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	trailingObjRe  = regexp.MustCompile(`,\s*}`)
	trailingArrRe  = regexp.MustCompile(`,\s*]`)

	topicObjectRe = regexp.MustCompile(`(?s)"topic"\s*:\s*"([^"]+)"[^}]*?"contributors"\s*:\s*\[([^\]]*)\][^}]*?"detail"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	titleObjectRe = regexp.MustCompile(`(?s)"name"\s*:\s*"([^"]+)"[^}]*?"user_id"\s*:\s*"?(\d+)"?[^}]*?"title"\s*:\s*"([^"]+)"[^}]*?"reason"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	quoteObjectRe = regexp.MustCompile(`(?s)"content"\s*:\s*"((?:[^"\\]|\\.)*)"[^}]*?"sender"\s*:\s*"([^"]+)"[^}]*?"reason"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	quotedValueRe = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"`)
)

// extractJSONArray locates the first JSON array in the model output.
func extractJSONArray(text string) (string, bool) {
	match := jsonArrayRe.FindString(text)
	return match, match != ""
}

// repairJSON fixes the defects models commonly introduce: markdown fences,
// smart quotes, truncated arrays, missing commas between objects, unquoted
// keys, and trailing commas.
func repairJSON(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "")

	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\n", " ", "\r", " ", "\t", " ",
	)
	text = replacer.Replace(text)
	text = strings.TrimSpace(text)

	// Recover a truncated array by cutting at the last complete object.
	if !strings.HasSuffix(text, "]") {
		if last := strings.LastIndex(text, "}"); last > 0 {
			text = text[:last+1] + "]"
		}
	}

	text = missingCommaRe.ReplaceAllString(text, "}, {")
	text = bareKeyRe.ReplaceAllString(text, `$1"$2":`)
	text = trailingObjRe.ReplaceAllString(text, "}")
	text = trailingArrRe.ReplaceAllString(text, "]")

	return text
}

// decodeArray runs the strict tier: locate, repair, unmarshal.
func decodeArray(text string, out any) bool {
	raw, ok := extractJSONArray(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(repairJSON(raw)), out) == nil
}

func unescapeField(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\n`, " ", `\t`, " ").Replace(s)
}

// topicPayload mirrors the JSON object the topic prompt asks for.
type topicPayload struct {
	Topic        string   `json:"topic"`
	Contributors []string `json:"contributors"`
	Detail       string   `json:"detail"`
}

// parseTopics applies both tiers and returns the recovered topic payloads.
func parseTopics(text string, maxTopics int) []topicPayload {
	var parsed []topicPayload
	if decodeArray(text, &parsed) && len(parsed) > 0 {
		if len(parsed) > maxTopics {
			parsed = parsed[:maxTopics]
		}
		return parsed
	}

	// Fallback tier: per-object regex recovery.
	var recovered []topicPayload
	for _, m := range topicObjectRe.FindAllStringSubmatch(text, maxTopics) {
		var contributors []string
		for _, c := range quotedValueRe.FindAllStringSubmatch(m[2], 5) {
			contributors = append(contributors, strings.TrimSpace(c[1]))
		}
		recovered = append(recovered, topicPayload{
			Topic:        strings.TrimSpace(m[1]),
			Contributors: contributors,
			Detail:       unescapeField(strings.TrimSpace(m[3])),
		})
	}
	return recovered
}

// titlePayload mirrors the JSON object the title prompt asks for.
type titlePayload struct {
	Name   string `json:"name"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	MBTI   string `json:"mbti"`
	Reason string `json:"reason"`
}

func parseTitles(text string, maxTitles int) []titlePayload {
	var parsed []titlePayload
	if decodeArray(text, &parsed) && len(parsed) > 0 {
		if len(parsed) > maxTitles {
			parsed = parsed[:maxTitles]
		}
		return parsed
	}

	var recovered []titlePayload
	for _, m := range titleObjectRe.FindAllStringSubmatch(text, maxTitles) {
		recovered = append(recovered, titlePayload{
			Name:   strings.TrimSpace(m[1]),
			UserID: m[2],
			Title:  strings.TrimSpace(m[3]),
			Reason: unescapeField(strings.TrimSpace(m[4])),
		})
	}
	return recovered
}

// quotePayload mirrors the JSON object the golden-quote prompt asks for.
type quotePayload struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
	Reason  string `json:"reason"`
}

func parseQuotes(text string, maxQuotes int) []quotePayload {
	var parsed []quotePayload
	if decodeArray(text, &parsed) && len(parsed) > 0 {
		if len(parsed) > maxQuotes {
			parsed = parsed[:maxQuotes]
		}
		return parsed
	}

	var recovered []quotePayload
	for _, m := range quoteObjectRe.FindAllStringSubmatch(text, maxQuotes) {
		recovered = append(recovered, quotePayload{
			Content: unescapeField(strings.TrimSpace(m[1])),
			Sender:  strings.TrimSpace(m[2]),
			Reason:  unescapeField(strings.TrimSpace(m[3])),
		})
	}
	return recovered
}

// cleanContent strips characters that routinely break JSON round-trips
// through the model: control characters, newlines, and smart quotes.
func cleanContent(content string) string {
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\n", " ", "\r", " ", "\t", " ",
	)
	content = replacer.Replace(content)

	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
