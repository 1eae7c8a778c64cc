package scoring

import "strings"

// Match records a lexicon phrase found in a description.
type Match struct {
	Phrase string
	Weight float64
}

// MatchedKeywords lists the lexicon phrases present in description, in
// lexicon order. Each phrase appears at most once.
func (e *Engine) MatchedKeywords(description string) []Match {
	if description == "" {
		return nil
	}
	text := strings.ToLower(description)

	var matches []Match
	for _, kw := range e.lexicon.entries {
		if strings.Contains(text, kw.Phrase) {
			matches = append(matches, Match{Phrase: kw.Phrase, Weight: kw.Weight})
		}
	}
	return matches
}

// ScoreKeywords sums the weights of every lexicon phrase contained in
// description. Repeated occurrences of a phrase count once.
func (e *Engine) ScoreKeywords(description string) float64 {
	score := 0.0
	for _, m := range e.MatchedKeywords(description) {
		score += m.Weight
	}
	return score
}
