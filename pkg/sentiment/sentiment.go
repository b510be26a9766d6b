package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Scorer maps texts to polarity values in [-1, 1], one per input text.
// Implementations never fail; degraded scorers return neutral values.
type Scorer interface {
	Score(ctx context.Context, texts []string) []float64
}

// alpha keeps the normalized lexicon sum away from the bounds.
const alpha = 15.0

const (
	negationScale  = -0.74
	intensifierInc = 0.293
)

// Lexicon is a word-valence scorer with negation and intensifier handling.
type Lexicon struct {
	words        map[string]float64
	negations    map[string]bool
	intensifiers map[string]bool
}

// NewLexicon returns a scorer backed by the built-in word list.
func NewLexicon() *Lexicon {
	return &Lexicon{
		words:        defaultWords,
		negations:    defaultNegations,
		intensifiers: defaultIntensifiers,
	}
}

// Score implements Scorer.
func (l *Lexicon) Score(_ context.Context, texts []string) []float64 {
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = l.Polarity(t)
	}
	return out
}

// Polarity scores a single text.
func (l *Lexicon) Polarity(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var sum float64
	for i, tok := range tokens {
		v, ok := l.words[tok]
		if !ok {
			continue
		}

		if i > 0 && l.intensifiers[tokens[i-1]] {
			if v > 0 {
				v += intensifierInc
			} else {
				v -= intensifierInc
			}
		}

		for back := 1; back <= 3 && i-back >= 0; back++ {
			if l.negations[tokens[i-back]] {
				v *= negationScale
				break
			}
		}
		sum += v
	}

	if sum == 0 {
		return 0
	}
	return Clamp(sum / math.Sqrt(sum*sum+alpha))
}

// Clamp bounds v to [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "n't", " not"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

var defaultNegations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nobody": true,
	"nothing": true, "neither": true, "nor": true, "without": true, "hardly": true,
	"cannot": true, "dont": true, "didnt": true, "wasnt": true, "isnt": true,
}

var defaultIntensifiers = map[string]bool{
	"very": true, "really": true, "extremely": true, "incredibly": true,
	"so": true, "super": true, "truly": true, "absolutely": true, "highly": true,
	"totally": true, "most": true, "quite": true,
}

// Valences roughly follow the VADER scale (-4..4).
var defaultWords = map[string]float64{
	"amazing": 2.8, "awesome": 3.1, "best": 3.2, "brilliant": 2.8, "caring": 2.2,
	"clean": 1.7, "comfortable": 1.5, "compassionate": 2.2, "competent": 1.3,
	"courteous": 1.8, "delighted": 2.9, "efficient": 1.8, "excellent": 3.2,
	"exceptional": 2.9, "fantastic": 2.6, "fast": 1.2, "friendly": 2.2, "glad": 2.0,
	"good": 1.9, "great": 3.1, "happy": 2.7, "helpful": 1.9, "honest": 2.3,
	"impressive": 2.3, "kind": 2.4, "knowledgeable": 1.8, "like": 1.5, "love": 3.2,
	"loved": 2.9, "nice": 1.8, "outstanding": 3.0, "perfect": 2.7, "pleasant": 2.3,
	"polite": 1.9, "professional": 1.8, "prompt": 1.4, "quality": 1.2, "recommend": 1.5,
	"recommended": 1.8, "reliable": 1.9, "satisfied": 1.8, "skilled": 1.6, "superb": 3.1,
	"thank": 1.5, "thanks": 1.9, "thorough": 1.5, "trust": 2.3, "trusted": 2.1,
	"welcoming": 2.1, "wonderful": 2.7, "worth": 0.9,
	"angry": -2.3, "annoying": -1.9, "awful": -2.0, "bad": -2.5, "broken": -1.8,
	"careless": -1.9, "cold": -0.9, "complaint": -1.5, "confusing": -1.3, "dirty": -1.9,
	"disappointed": -1.9, "disappointing": -2.2, "dishonest": -2.7, "disrespectful": -2.4,
	"fraud": -2.8, "horrible": -2.5, "incompetent": -2.2, "lazy": -1.5, "late": -0.9,
	"lied": -2.2, "mediocre": -0.9, "mistake": -1.4, "nightmare": -2.7, "overpriced": -1.6,
	"pain": -1.9, "poor": -2.1, "problem": -1.7, "rude": -2.0, "scam": -2.9,
	"slow": -1.2, "terrible": -2.1, "unhelpful": -2.0, "unprofessional": -2.2,
	"unreliable": -2.0, "upset": -1.6, "waste": -1.8, "worse": -2.1, "worst": -3.1,
	"wrong": -2.1,
}
