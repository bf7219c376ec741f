package rewrite

import (
	"regexp"
	"strings"

	"github.com/papercomputeco/recall/pkg/conversation"
)

// Pattern names a follow-up heuristic.
type Pattern string

const (
	PatternLeadingConjunction Pattern = "leading-conjunction"
	PatternBarePeriod         Pattern = "bare-period"
	PatternRelativePeriod     Pattern = "relative-period"
	PatternComparison         Pattern = "comparison"
	PatternAnaphora           Pattern = "anaphora"
	PatternShortNoSubject     Pattern = "short-no-subject"
)

// Matcher decides whether a query is a follow-up of one particular kind.
type Matcher interface {
	Pattern() Pattern
	Match(query string) bool
}

// MatcherFunc adapts a predicate to the Matcher interface.
type MatcherFunc struct {
	Name Pattern
	Fn   func(query string) bool
}

func (m MatcherFunc) Pattern() Pattern        { return m.Name }
func (m MatcherFunc) Match(query string) bool { return m.Fn(query) }

var (
	leadingConjunction = regexp.MustCompile(`(?i)^(?:and|also|but|or|plus|what about|how about)\b`)
	periodPrefix       = regexp.MustCompile(`(?i)^(?:for|in|about)\s+`)
	relativePeriod     = regexp.MustCompile(`(?i)^(?:the\s+)?(previous|next|last|this|prior)\s+(?:fiscal\s+)?(year|quarter|period)\b`)
	comparison         = regexp.MustCompile(`(?i)^(?:compare|vs\.?|versus)\b`)
	pronoun            = regexp.MustCompile(`(?i)\b(?:it|that|this|those|these|its|they|them)\b`)
)

// DefaultMatchers returns the built-in heuristics in priority order.
func DefaultMatchers(vocab *conversation.Vocabulary) []Matcher {
	hasEntity := func(q string) bool {
		return len(conversation.FindQueryEntities(q, vocab)) > 0
	}

	return []Matcher{
		MatcherFunc{PatternLeadingConjunction, leadingConjunction.MatchString},
		MatcherFunc{PatternBarePeriod, isBarePeriod},
		MatcherFunc{PatternRelativePeriod, relativePeriod.MatchString},
		MatcherFunc{PatternComparison, comparison.MatchString},
		MatcherFunc{PatternAnaphora, func(q string) bool {
			return pronoun.MatchString(q) && !hasEntity(q)
		}},
		MatcherFunc{PatternShortNoSubject, func(q string) bool {
			return len(strings.Fields(q)) <= 3 && !hasEntity(q)
		}},
	}
}

// isBarePeriod reports whether q is only a period, optionally introduced by
// for/in/about: "2022?", "in FY2021", "Q3 2023".
func isBarePeriod(q string) bool {
	q = strings.TrimRight(q, "?.! ")
	q = periodPrefix.ReplaceAllString(q, "")
	periods := conversation.FindPeriods(q)
	return len(periods) == 1 && strings.EqualFold(periods[0], strings.Join(strings.Fields(q), " "))
}
