package sentiment

import (
	"strings"
	"unicode"
)

// MaxTexts caps how many headlines contribute to one score.
const MaxTexts = 20

// Scorer maps texts to a single score in [-1, 1].
type Scorer interface {
	Score(texts []string) float64
}

// LexiconScorer counts finance-flavoured polarity words. Each text scores
// (pos-neg)/(pos+neg), or 0 with no hits, and the result is the mean over
// at most MaxTexts texts.
type LexiconScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var (
	defaultPositive = []string{
		"beat", "beats", "bullish", "gain", "gains", "growth", "surge", "surges", "soar", "soars",
		"rally", "rallies", "record", "profit", "profits", "upgrade", "upgraded", "outperform",
		"strong", "rise", "rises", "jump", "jumps", "boost", "optimistic", "exceed", "exceeds",
	}
	defaultNegative = []string{
		"miss", "misses", "bearish", "loss", "losses", "decline", "declines", "plunge", "plunges",
		"drop", "drops", "fall", "falls", "downgrade", "downgraded", "underperform", "weak",
		"lawsuit", "probe", "recall", "cut", "cuts", "slump", "warning", "fraud", "layoffs",
	}
)

// NewLexiconScorer uses the built-in word lists.
func NewLexiconScorer() *LexiconScorer {
	return NewLexiconScorerWith(defaultPositive, defaultNegative)
}

func NewLexiconScorerWith(positive, negative []string) *LexiconScorer {
	s := &LexiconScorer{
		positive: make(map[string]struct{}, len(positive)),
		negative: make(map[string]struct{}, len(negative)),
	}
	for _, w := range positive {
		s.positive[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range negative {
		s.negative[strings.ToLower(w)] = struct{}{}
	}
	return s
}

func (s *LexiconScorer) Score(texts []string) float64 {
	if len(texts) == 0 {
		return 0
	}
	if len(texts) > MaxTexts {
		texts = texts[:MaxTexts]
	}
	total := 0.0
	for _, t := range texts {
		total += s.scoreText(t)
	}
	return total / float64(len(texts))
}

func (s *LexiconScorer) scoreText(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	pos, neg := 0, 0
	for _, w := range words {
		if _, ok := s.positive[w]; ok {
			pos++
		}
		if _, ok := s.negative[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Label buckets a score: above 0.2 is bullish, below -0.2 bearish.
func Label(score float64) string {
	switch {
	case score > 0.2:
		return "bullish"
	case score < -0.2:
		return "bearish"
	default:
		return "neutral"
	}
}
