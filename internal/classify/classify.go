// Package classify implements the keyword classifier used by the scanner.
//
// Two independent vocabularies are applied to raw message text: a broad topic
// vocabulary that decides inclusion and a narrower hint vocabulary that tags
// the bet-hint sub-category. Whether the hint vocabulary additionally gates
// inclusion is a configuration choice, not a code change.
package classify

import (
	"strings"
)

// Config is the immutable vocabulary configuration for a Classifier.
type Config struct {
	// Topics is the ordered list of broad topic fragments.
	Topics []string
	// Hints is the ordered list of bet-hint fragments.
	Hints []string
	// HintGates, when true, requires a hint match for inclusion instead of
	// only tagging the sub-category.
	HintGates bool
}

// Classifier answers match questions over lower-cased raw text.
type Classifier struct {
	topics    []string
	hints     []string
	hintGates bool
}

// New builds a Classifier from cfg. The vocabulary slices are copied; the
// classifier never observes later mutation of cfg.
func New(cfg Config) *Classifier {
	return &Classifier{
		topics:    lowered(cfg.Topics),
		hints:     lowered(cfg.Hints),
		hintGates: cfg.HintGates,
	}
}

func lowered(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}

// MatchTopic reports whether text contains any topic fragment.
func (c *Classifier) MatchTopic(text string) bool {
	return containsAny(text, c.topics)
}

// MatchHint reports whether text contains any hint fragment.
func (c *Classifier) MatchHint(text string) bool {
	return containsAny(text, c.hints)
}

// Classify applies the inclusion policy. include is true when the item is of
// interest; hint is true when the hint sub-category applies.
func (c *Classifier) Classify(text string) (include, hint bool) {
	hint = c.MatchHint(text)
	if c.hintGates {
		return c.MatchTopic(text) && hint, hint
	}
	return c.MatchTopic(text), hint
}

func containsAny(text string, fragments []string) bool {
	if text == "" || len(fragments) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, f := range fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Normalize collapses whitespace runs to single spaces and trims the ends.
// Persisted match text goes through Normalize; the match test itself runs on
// raw lower-cased text.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
