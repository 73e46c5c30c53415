package emotion

import (
	"regexp"
	"strings"
)

// tagRE matches the wire format for embedded emotion tags, [EMOTION:name],
// case-insensitively.
var tagRE = regexp.MustCompile(`(?i)\[EMOTION:(\w+)\]`)

// Parsed is the result of parsing raw model output.
type Parsed struct {
	Text       string
	Emotion    Emotion
	RawEmotion string
	HadTag     bool
}

// Parse extracts the embedded emotion tag from raw model output. When a tag
// is present, the first occurrence is stripped from the text and its label is
// normalized into the canonical vocabulary. When no tag is present the
// emotion is chosen by keyword scoring, defaulting to Neutral. Parse is pure:
// identical input yields identical output, and re-parsing already-clean text
// leaves it unchanged.
func Parse(raw string) Parsed {
	m := tagRE.FindStringSubmatchIndex(raw)
	if m == nil {
		e := detectKeywords(raw)
		return Parsed{
			Text:       strings.TrimSpace(raw),
			Emotion:    e,
			RawEmotion: string(e),
		}
	}

	label := strings.ToLower(raw[m[2]:m[3]])
	return Parsed{
		Text:       strings.TrimSpace(raw[:m[0]] + raw[m[1]:]),
		Emotion:    Normalize(label),
		RawEmotion: label,
		HadTag:     true,
	}
}

// keywords associates each detectable emotion with the words that hint at it.
// Angry is deliberately absent: untagged output is never guessed to be angry.
var keywords = map[Emotion][]string{
	Neutral: {"hello", "hi", "hey", "ok", "okay", "alright", "understand"},
	Happy:   {"happy", "great", "good", "nice", "wonderful", "amazing", "love", "like"},
	Excited: {"excited", "wow", "fantastic", "brilliant", "thrilled", "ecstatic", "can't wait"},
	Smiling: {"thanks", "thank you", "please", "welcome", "appreciate"},
}

// detectKeywords scores each emotion by how many of its keywords appear in
// the text and returns the highest scorer. Ties keep the earlier emotion in
// the fixed ordering; an all-zero score means Neutral.
func detectKeywords(text string) Emotion {
	lower := strings.ToLower(text)

	best := Neutral
	bestScore := 0
	for _, e := range All {
		score := 0
		for _, kw := range keywords[e] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	return best
}
