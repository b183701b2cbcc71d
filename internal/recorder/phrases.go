package recorder

import "strings"

// DefaultPhrases are the English non-consent phrases matched when none are configured
func DefaultPhrases() []string {
	return []string{
		"i do not consent",
		"don't consent",
		"do not consent",
		"don't agree",
		"do not agree",
		"refuse to be recorded",
		"stop recording",
		"no recording",
		"cannot record",
		"can't record",
		"don't record",
	}
}

// PhraseSet is an immutable set of lowercase non-consent phrases
type PhraseSet struct {
	phrases []string
}

// NewPhraseSet lowercases and trims phrases, dropping blanks and duplicates
func NewPhraseSet(phrases []string) PhraseSet {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return PhraseSet{phrases: out}
}

// Match reports the first phrase contained in the transcript, case-insensitively
func (s PhraseSet) Match(transcript string) (string, bool) {
	lower := strings.ToLower(transcript)
	for _, p := range s.phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// Phrases returns a copy of the set
func (s PhraseSet) Phrases() []string {
	return append([]string(nil), s.phrases...)
}

// Len returns the number of phrases
func (s PhraseSet) Len() int { return len(s.phrases) }
