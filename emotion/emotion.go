// Package emotion defines the closed emotion vocabulary shared by the AI
// dispatcher, the storage layer and the statistics endpoints, along with
// parsing of emotion-tagged model output.
package emotion

// An Emotion is one of the canonical emotion labels the avatar can animate.
type Emotion string

const (
	Neutral Emotion = "neutral"
	Angry   Emotion = "angry"
	Happy   Emotion = "happy"
	Excited Emotion = "excited"
	Smiling Emotion = "smiling"
)

// All lists every canonical emotion, in display order.
var All = []Emotion{Neutral, Angry, Happy, Excited, Smiling}

// synonyms maps free-form labels seen in model output to canonical emotions.
var synonyms = map[string]Emotion{
	"neutral":    Neutral,
	"calm":       Neutral,
	"angry":      Angry,
	"anger":      Angry,
	"mad":        Angry,
	"frustrated": Angry,
	"happy":      Happy,
	"joy":        Happy,
	"excited":    Excited,
	"excitement": Excited,
	"thrilled":   Excited,
	"smiling":    Smiling,
	"smile":      Smiling,
}

// Normalize maps a free-form label to its canonical emotion. Labels outside
// the synonym table map to Neutral.
func Normalize(label string) Emotion {
	if e, ok := synonyms[label]; ok {
		return e
	}
	return Neutral
}

// Valid reports whether label is one of the canonical emotions.
func Valid(label string) bool {
	for _, e := range All {
		if Emotion(label) == e {
			return true
		}
	}
	return false
}
