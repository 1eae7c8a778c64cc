package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Keyword is a single distress phrase and its weight.
type Keyword struct {
	Phrase string
	Weight float64
}

// Lexicon is an immutable phrase→weight table.
type Lexicon struct {
	entries []Keyword
}

var defaultKeywords = map[string]float64{
	"urgent":        2,
	"must sell":     3,
	"auction":       3,
	"distress":      2,
	"quick sale":    2,
	"price reduced": 1,
}

// DefaultLexicon returns the built-in distress lexicon.
func DefaultLexicon() Lexicon {
	lex, err := NewLexicon(defaultKeywords)
	if err != nil {
		panic("invalid default lexicon: " + err.Error())
	}
	return lex
}

// NewLexicon builds a lexicon from a phrase→weight map. Phrases are
// lower-cased and trimmed; entries are ordered by phrase.
func NewLexicon(weights map[string]float64) (Lexicon, error) {
	merged := make(map[string]float64, len(weights))
	for phrase, weight := range weights {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" {
			return Lexicon{}, fmt.Errorf("lexicon: empty phrase")
		}
		if weight < 0 {
			return Lexicon{}, fmt.Errorf("lexicon: negative weight %v for %q", weight, key)
		}
		if _, dup := merged[key]; dup {
			return Lexicon{}, fmt.Errorf("lexicon: duplicate phrase %q", key)
		}
		merged[key] = weight
	}

	entries := make([]Keyword, 0, len(merged))
	for phrase, weight := range merged {
		entries = append(entries, Keyword{Phrase: phrase, Weight: weight})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Phrase < entries[j].Phrase })

	return Lexicon{entries: entries}, nil
}

// Entries returns a copy of the lexicon entries.
func (l Lexicon) Entries() []Keyword {
	out := make([]Keyword, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of phrases.
func (l Lexicon) Len() int {
	return len(l.entries)
}
