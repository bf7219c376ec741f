// Package rewrite turns context-dependent follow-up questions into
// standalone queries using the recent turns and summary of a session.
package rewrite

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/recall/pkg/conversation"
)

// Result is the outcome of Rewrite.
type Result struct {
	Original  string
	Query     string
	Rewritten bool

	// Pattern is the heuristic that classified the query as a follow-up,
	// empty when none did. A matched query can still come back unchanged
	// when no subject is found.
	Pattern Pattern
}

// Rewriter classifies and rewrites follow-up queries.
type Rewriter struct {
	matchers []Matcher
	vocab    *conversation.Vocabulary
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithMatchers replaces the default heuristics.
func WithMatchers(m ...Matcher) Option {
	return func(r *Rewriter) {
		r.matchers = m
	}
}

// New creates a Rewriter. A nil vocabulary uses
// conversation.DefaultFinancialTerms.
func New(vocab *conversation.Vocabulary, opts ...Option) *Rewriter {
	if vocab == nil {
		vocab = conversation.NewVocabulary(conversation.DefaultFinancialTerms)
	}
	r := &Rewriter{vocab: vocab}
	r.matchers = DefaultMatchers(vocab)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify returns the first matching pattern for query, or "" and false.
func (r *Rewriter) Classify(query string) (Pattern, bool) {
	q := strings.TrimSpace(query)
	for _, m := range r.matchers {
		if m.Match(q) {
			return m.Pattern(), true
		}
	}
	return "", false
}

// Rewrite returns a standalone version of query. The most recent user turn
// naming an entity or metric is the template; the summary is only used when
// no such turn exists. Anything it cannot resolve is returned unchanged.
func (r *Rewriter) Rewrite(query string, summary *conversation.Summary, turns []conversation.Turn) Result {
	res := Result{Original: query, Query: query}

	pattern, ok := r.Classify(query)
	if !ok {
		return res
	}
	res.Pattern = pattern

	f := r.subjectOf(strings.TrimSpace(query))

	var rewritten string
	if tmpl, found := r.template(turns); found {
		rewritten = r.substitute(pattern, strings.TrimSpace(query), f, tmpl)
	} else if summary != nil {
		rewritten = r.fromSummary(f, summary.Text)
	}

	if rewritten != "" && rewritten != query {
		res.Query = rewritten
		res.Rewritten = true
	}
	return res
}

// subject is what a query says about who, what and when.
type subject struct {
	text      string
	entity    string
	metric    string
	metricLoc []int
	period    string
	periodLoc []int
}

func (s subject) hasSubject() bool {
	return s.entity != "" || s.metric != ""
}

// phrase is "<entity> <metric>" with whichever parts exist.
func (s subject) phrase() string {
	return strings.TrimSpace(s.entity + " " + s.metric)
}

func (r *Rewriter) subjectOf(text string) subject {
	s := subject{text: text}
	if entities := conversation.FindQueryEntities(text, r.vocab); len(entities) > 0 {
		s.entity = entities[0]
	}
	s.metric, s.metricLoc = r.vocab.Best(text)
	if loc := conversation.LastPeriodIndex(text); loc != nil {
		s.periodLoc = loc
		s.period = strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")
	}
	return s
}

// template scans user turns newest to oldest for an explicit subject.
func (r *Rewriter) template(turns []conversation.Turn) (subject, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if !turns[i].IsUser() {
			continue
		}
		s := r.subjectOf(strings.TrimSpace(turns[i].Content))
		if s.hasSubject() {
			return s, true
		}
	}
	return subject{}, false
}

func (r *Rewriter) substitute(pattern Pattern, query string, f, t subject) string {
	switch pattern {
	case PatternAnaphora:
		return replacePronoun(query, t)
	case PatternComparison:
		if pronoun.MatchString(query) {
			return replacePronoun(query, t)
		}
		return compareWith(query, t)
	}

	period := f.period
	if pattern == PatternRelativePeriod {
		period = shiftPeriod(query, t.period)
	}

	var edits []edit
	if f.entity != "" && t.entity != "" && !strings.EqualFold(f.entity, t.entity) {
		if i := strings.Index(t.text, t.entity); i >= 0 {
			edits = append(edits, edit{i, i + len(t.entity), f.entity})
		}
	}
	if f.metric != "" && t.metricLoc != nil && f.metric != t.metric {
		edits = append(edits, edit{t.metricLoc[0], t.metricLoc[1], f.metric})
	}
	if period != "" && !strings.EqualFold(period, t.period) {
		if t.periodLoc != nil {
			edits = append(edits, edit{t.periodLoc[0], t.periodLoc[1], period})
		} else {
			edits = append(edits, appendPeriod(t.text, period))
		}
	}
	if len(edits) == 0 {
		return ""
	}
	return apply(t.text, edits)
}

func (r *Rewriter) fromSummary(f subject, summaryText string) string {
	if f.period == "" {
		return ""
	}
	metric := f.metric
	if metric == "" {
		metric, _ = r.vocab.Best(summaryText)
	}
	if metric == "" {
		return ""
	}

	entity := f.entity
	if entity == "" {
		if entities := conversation.FindEntities(summaryText, r.vocab); len(entities) > 0 {
			entity = entities[len(entities)-1]
		}
	}
	if entity == "" {
		return "What was the " + metric + " in " + f.period + "?"
	}
	return "What was " + entity + " " + metric + " in " + f.period + "?"
}

// replacePronoun swaps the first pronoun in query for the template subject;
// "its" becomes the possessive of the entity.
func replacePronoun(query string, t subject) string {
	loc := pronoun.FindStringIndex(query)
	if loc == nil {
		return ""
	}
	word := strings.ToLower(query[loc[0]:loc[1]])

	replacement := t.phrase()
	if word == "its" {
		if t.entity == "" {
			return ""
		}
		replacement = t.entity + "'s"
	}
	return apply(query, []edit{{loc[0], loc[1], replacement}})
}

var comparisonLead = regexp.MustCompile(`(?i)^(?:compare|vs\.?|versus)\s*(?:(?:it|that|this)\s+)?(?:(?:with|to|against)\s+)?`)

// compareWith turns "vs 2022?" into "Compare <subject> in <period> with 2022".
func compareWith(query string, t subject) string {
	target := strings.TrimRight(comparisonLead.ReplaceAllString(query, ""), "?.! ")
	if target == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("Compare ")
	b.WriteString(t.phrase())
	if t.period != "" {
		b.WriteString(" in ")
		b.WriteString(t.period)
	}
	b.WriteString(" with ")
	b.WriteString(target)
	return b.String()
}

var (
	yearOnly    = regexp.MustCompile(`^(?:FY\s?)?((?:19|20)\d{2})$`)
	quarterYear = regexp.MustCompile(`^Q([1-4])\s*((?:19|20)\d{2})$`)
)

// shiftPeriod resolves "previous year" or "next quarter" against the
// template's period. Unresolvable periods yield "".
func shiftPeriod(query, base string) string {
	m := relativePeriod.FindStringSubmatch(query)
	if m == nil || base == "" {
		return ""
	}
	dir := 0
	switch strings.ToLower(m[1]) {
	case "previous", "last", "prior":
		dir = -1
	case "next":
		dir = 1
	}
	unit := strings.ToLower(m[2])

	upper := strings.ToUpper(base)
	if ym := yearOnly.FindStringSubmatch(upper); ym != nil && unit == "year" {
		year, _ := strconv.Atoi(ym[1])
		return strings.Replace(base, ym[1], strconv.Itoa(year+dir), 1)
	}
	if qm := quarterYear.FindStringSubmatch(upper); qm != nil {
		q, _ := strconv.Atoi(qm[1])
		year, _ := strconv.Atoi(qm[2])
		if unit == "year" {
			year += dir
		} else if unit == "quarter" {
			q += dir
			if q == 0 {
				q, year = 4, year-1
			} else if q == 5 {
				q, year = 1, year+1
			}
		}
		return "Q" + strconv.Itoa(q) + " " + strconv.Itoa(year)
	}
	return ""
}

type edit struct {
	start, end int
	text       string
}

// appendPeriod adds " in <period>" before any trailing punctuation.
func appendPeriod(text, period string) edit {
	end := len(strings.TrimRight(text, "?.! "))
	return edit{end, end, " in " + period}
}

// apply performs edits against text from the back. Edits that overlap or
// fall outside text leave nothing trustworthy to return, so apply returns ""
// and the query stays unchanged.
func apply(text string, edits []edit) string {
	slices.SortFunc(edits, func(a, b edit) int { return b.start - a.start })
	limit := len(text)
	for _, e := range edits {
		if e.start < 0 || e.start > e.end || e.end > limit {
			return ""
		}
		text = text[:e.start] + e.text + text[e.end:]
		limit = e.start
	}
	return text
}
