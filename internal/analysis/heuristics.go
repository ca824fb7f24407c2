package analysis

import (
	"sort"
)

// Local title heuristics run independently of the LLM so every run can assign
// some titles even when the model is unreachable. Thresholds follow the
// feature definitions used in the classifier prompt.

const (
	nightOwlThreshold = 0.30
	longFormThreshold = 100.0
	engagerThreshold  = 0.50
	emojiThreshold    = 0.50
)

// titleCandidate is one tag a user qualifies for, with its evidence score.
type titleCandidate struct {
	tag    TitleTag
	score  float64
	reason string
}

// TieBreak decides between two candidate titles for the same user. The
// default prefers the higher evidence score; exact scoring for multi-title
// eligibility is deliberately pluggable.
type TieBreak func(a, b titleCandidate) bool

// defaultTieBreak prefers the higher score, then a stable tag ordering.
func defaultTieBreak(a, b titleCandidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.tag < b.tag
}

// HeuristicTitles assigns at most one title per user from local signals only.
// Users with fewer than minMessages messages are skipped.
func HeuristicTitles(users map[int64]*UserStats, minMessages int, tieBreak TieBreak) map[int64]UserTitle {
	if tieBreak == nil {
		tieBreak = defaultTieBreak
	}

	maxCount := 0
	for _, u := range users {
		if u.MessageCount > maxCount {
			maxCount = u.MessageCount
		}
	}

	titles := make(map[int64]UserTitle)
	for id, u := range users {
		if u.MessageCount < minMessages {
			continue
		}

		candidates := collectCandidates(u, maxCount)
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return tieBreak(candidates[i], candidates[j])
		})
		best := candidates[0]

		titles[id] = UserTitle{
			UserID:      id,
			Name:        u.Name,
			Tag:         best.tag,
			Reason:      best.reason,
			Score:       best.score,
			QualifiedAt: u.FirstMessageAt,
		}
	}
	return titles
}

func collectCandidates(u *UserStats, maxCount int) []titleCandidate {
	var candidates []titleCandidate

	if maxCount > 0 {
		if ratio := float64(u.MessageCount) / float64(maxCount); ratio >= 0.8 {
			candidates = append(candidates, titleCandidate{
				tag:    TagProlificPoster,
				score:  ratio,
				reason: "among the most active posters in the window",
			})
		}
	}
	if r := u.NightRatio(); r >= nightOwlThreshold {
		candidates = append(candidates, titleCandidate{
			tag:    TagNightOwl,
			score:  r,
			reason: "a large share of messages sent between midnight and 06:00",
		})
	}
	if avg := u.AvgChars(); avg >= longFormThreshold {
		score := avg / (2 * longFormThreshold)
		if score > 1 {
			score = 1
		}
		candidates = append(candidates, titleCandidate{
			tag:    TagLongForm,
			score:  score,
			reason: "consistently writes long messages",
		})
	}
	if r := u.ReplyRatio(); r >= engagerThreshold {
		candidates = append(candidates, titleCandidate{
			tag:    TagEngager,
			score:  r,
			reason: "most messages are replies to others",
		})
	}
	if r := u.EmojiRatio(); r >= emojiThreshold {
		candidates = append(candidates, titleCandidate{
			tag:    TagEmojiArmory,
			score:  r,
			reason: "communicates heavily in emoji",
		})
	}
	return candidates
}
