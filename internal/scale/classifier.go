package scale

import (
	"regexp"
	"strings"
)

// Strategy attempts to derive a reliance level from a piece of text.
// Strategies are tried in order; the first match wins.
type Strategy func(s string) (Level, bool)

// FirstMatch runs strategies in order against s and returns the first
// level any of them produces.
func FirstMatch(s string, strategies ...Strategy) (Level, bool) {
	for _, st := range strategies {
		if lvl, ok := st(s); ok {
			return lvl, true
		}
	}
	return 0, false
}

var generativeVerbs = map[string]bool{
	"create":   true,
	"write":    true,
	"generate": true,
	"compose":  true,
	"draft":    true,
	"produce":  true,
	"make":     true,
	"build":    true,
}

var contentNouns = map[string]bool{
	"essay":        true,
	"paragraph":    true,
	"report":       true,
	"article":      true,
	"poem":         true,
	"story":        true,
	"code":         true,
	"program":      true,
	"script":       true,
	"presentation": true,
	"slides":       true,
}

// generativeWindow is how many tokens may separate the action verb
// from the content noun for the fast path to fire.
const generativeWindow = 6

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// GenerativeRequest is the fast-path strategy: a request that pairs an
// action verb with a content-type noun within a short window is an
// unambiguous "full AI responsibility" ask and skips the oracle rubric.
func GenerativeRequest(s string) (Level, bool) {
	// Empty tokens from punctuation runs are dropped before indexing so
	// they never widen the verb-to-noun distance.
	raw := tokenSplit.Split(strings.ToLower(s), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	lastVerb := -1
	for i, tok := range tokens {
		if generativeVerbs[tok] {
			lastVerb = i
			continue
		}
		if contentNouns[tok] && lastVerb >= 0 && i-lastVerb <= generativeWindow {
			return LevelFullAI, true
		}
	}
	return 0, false
}

var standaloneDigit = regexp.MustCompile(`\b([1-5])\b`)

// DigitLabel extracts the first standalone digit 1-5 from a rubric
// label such as "5. Full AI".
func DigitLabel(s string) (Level, bool) {
	m := standaloneDigit.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return Level(m[1][0] - '0'), true
}

// labelSubstrings maps known rubric category names to levels, checked
// highest first so "full ai" is not shadowed by the bare "ai" in other
// categories.
var labelSubstrings = []struct {
	needle string
	level  Level
}{
	{"full ai", LevelFullAI},
	{"ai + human", LevelCollaborative},
	{"editing", LevelEditing},
	{"ideas", LevelIdeas},
	{"structure", LevelIdeas},
	{"no ai", LevelNoAI},
}

// SubstringLabel matches known category names when the oracle returns
// a label without a usable digit.
func SubstringLabel(s string) (Level, bool) {
	lower := strings.ToLower(s)
	for _, ls := range labelSubstrings {
		if strings.Contains(lower, ls.needle) {
			return ls.level, true
		}
	}
	return 0, false
}

// ParseLabel resolves an oracle rubric label to a level using the
// ordered fallback chain: standalone digit, category substring, then
// the generative heuristic applied to the original user text.
func ParseLabel(label, userText string) (Level, bool) {
	if lvl, ok := FirstMatch(label, DigitLabel, SubstringLabel); ok {
		return lvl, true
	}
	return GenerativeRequest(userText)
}
