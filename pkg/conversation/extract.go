package conversation

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// DefaultFinancialTerms is the metric vocabulary used when none is
// configured, in priority order: earlier terms win when several appear.
var DefaultFinancialTerms = []string{
	"net income", "total revenue", "operating income", "gross profit",
	"cash flow", "share price", "revenue", "income", "profit", "loss",
	"earnings", "margin", "assets", "liabilities", "dividend", "eps",
	"ebitda", "debt", "equity", "expenses", "cash",
}

var (
	periodPattern = regexp.MustCompile(`(?i)\b(?:` +
		`(?:19|20)\d{2}-\d{2}-\d{2}` +
		`|[QH][1-4]\s*(?:FY\s?)?(?:19|20)\d{2}` +
		`|FY\s?(?:(?:19|20)\d{2}|\d{2})` +
		`|(?:19|20)\d{2}` +
		`)\b`)

	amountPattern = regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:trillion|billion|million|thousand|bn|mn|[bmk])\b)?|\b\d+(?:\.\d+)?%`)

	entityPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*)*`)

	periodWordPattern = regexp.MustCompile(`^(?:[QH][1-4]|FY\d*)$`)
)

// entityStopwords are capitalized words that never name an entity on their
// own: question words, pronouns, conjunctions and calendar words.
var entityStopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"what", "what's", "how", "when", "where", "which", "who", "why",
		"the", "a", "an", "and", "but", "or", "also", "plus", "so",
		"did", "does", "do", "is", "was", "were", "are", "can", "could",
		"would", "should", "will", "has", "have", "had",
		"compare", "in", "for", "about", "of", "on", "at", "to", "by",
		"tell", "show", "give", "list", "explain", "describe", "please",
		"it", "its", "this", "that", "these", "those", "they", "them",
		"i", "we", "you", "my", "our", "your", "vs", "versus",
		"previous", "next", "last", "prior", "year", "quarter", "period",
		"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december",
	} {
		entityStopwords[w] = struct{}{}
	}
}

// FindPeriods returns the years, fiscal periods and dates in text, in order
// of appearance.
func FindPeriods(text string) []string {
	return normalizeSpaces(periodPattern.FindAllString(text, -1))
}

// FindAmounts returns currency amounts and percentages in text.
func FindAmounts(text string) []string {
	return normalizeSpaces(amountPattern.FindAllString(text, -1))
}

// LastPeriodIndex returns the byte range of the last period in text, or nil.
func LastPeriodIndex(text string) []int {
	all := periodPattern.FindAllStringIndex(text, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// FindEntities returns capitalized names in text. Multi-word names are kept
// whole after leading stopwords are dropped. A single capitalized word only
// counts when it does not open a sentence.
func FindEntities(text string, vocab *Vocabulary) []string {
	return findEntities(text, vocab, false)
}

// FindQueryEntities is FindEntities for a short user query, where the first
// word is as likely to be a name ("Tesla revenue?") as a sentence opener.
func FindQueryEntities(text string, vocab *Vocabulary) []string {
	return findEntities(text, vocab, true)
}

func findEntities(text string, vocab *Vocabulary, fragment bool) []string {
	var out []string
	for _, run := range entityPattern.FindAllStringIndex(text, -1) {
		for _, part := range splitRun(text, run, vocab) {
			if name, ok := entityName(text, part, vocab, fragment); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// splitRun cuts a capitalized run at vocabulary terms and periods so that
// "Apple Net Income" yields "Apple" and never a name containing a metric.
func splitRun(text string, run []int, vocab *Vocabulary) [][]int {
	segment := text[run[0]:run[1]]

	var cuts [][]int
	if vocab != nil && vocab.pattern != nil {
		cuts = append(cuts, vocab.pattern.FindAllStringIndex(segment, -1)...)
	}
	cuts = append(cuts, periodPattern.FindAllStringIndex(segment, -1)...)
	if len(cuts) == 0 {
		return [][]int{run}
	}
	slices.SortFunc(cuts, func(a, b []int) int { return a[0] - b[0] })

	var parts [][]int
	start := 0
	for _, c := range cuts {
		if c[0] > start {
			parts = appendPart(parts, segment, run[0], start, c[0])
		}
		start = max(start, c[1])
	}
	return appendPart(parts, segment, run[0], start, len(segment))
}

func appendPart(parts [][]int, segment string, offset, start, end int) [][]int {
	piece := segment[start:end]
	lead := len(piece) - len(strings.TrimLeftFunc(piece, unicode.IsSpace))
	piece = strings.TrimSpace(piece)
	if piece == "" {
		return parts
	}
	from := offset + start + lead
	return append(parts, []int{from, from + len(piece)})
}

func entityName(text string, loc []int, vocab *Vocabulary, fragment bool) (string, bool) {
	words := strings.Fields(text[loc[0]:loc[1]])
	stripped := 0
	for stripped < len(words) && isEntityStopword(words[stripped]) {
		stripped++
	}
	words = words[stripped:]
	for len(words) > 0 && isEntityStopword(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return "", false
	}
	if len(words) == 1 {
		w := words[0]
		if len(w) < 2 || periodWordPattern.MatchString(w) {
			return "", false
		}
		if !fragment && stripped == 0 && sentenceStart(text, loc[0]) {
			return "", false
		}
	}

	for i, w := range words {
		words[i] = trimPossessive(w)
	}
	name := strings.Join(words, " ")
	if vocab != nil && vocab.Contains(name) {
		return "", false
	}
	return name, true
}

func isEntityStopword(w string) bool {
	_, ok := entityStopwords[strings.ToLower(trimPossessive(w))]
	return ok
}

func trimPossessive(w string) string {
	w = strings.TrimSuffix(w, "'s")
	return strings.TrimSuffix(w, "'")
}

func sentenceStart(text string, at int) bool {
	prefix := strings.TrimRightFunc(text[:at], unicode.IsSpace)
	if prefix == "" {
		return true
	}
	switch prefix[len(prefix)-1] {
	case '.', '!', '?', '\n', '"':
		return true
	}
	return false
}

func normalizeSpaces(in []string) []string {
	for i, s := range in {
		in[i] = strings.Join(strings.Fields(s), " ")
	}
	return in
}

// Vocabulary matches a fixed list of domain terms, longest term first.
type Vocabulary struct {
	terms   []string
	pattern *regexp.Regexp
	rank    map[string]int
}

// NewVocabulary compiles terms. Matching is case-insensitive on word
// boundaries; the order of terms is their priority.
func NewVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{rank: make(map[string]int, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, dup := v.rank[t]; dup {
			continue
		}
		v.rank[t] = len(v.terms)
		v.terms = append(v.terms, t)
	}
	if len(v.terms) == 0 {
		return v
	}

	byLength := slices.Clone(v.terms)
	slices.SortStableFunc(byLength, func(a, b string) int {
		return len(b) - len(a)
	})
	quoted := make([]string, len(byLength))
	for i, t := range byLength {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
	}
	v.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return v
}

// Terms returns the vocabulary in priority order.
func (v *Vocabulary) Terms() []string {
	return slices.Clone(v.terms)
}

// Contains reports whether s is exactly one of the terms.
func (v *Vocabulary) Contains(s string) bool {
	_, ok := v.rank[strings.ToLower(strings.Join(strings.Fields(s), " "))]
	return ok
}

// Find returns every term occurrence in text, lower-cased, in order of
// appearance. Overlapping shorter terms are not reported.
func (v *Vocabulary) Find(text string) []string {
	if v.pattern == nil {
		return nil
	}
	matches := v.pattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(strings.Join(strings.Fields(m), " "))
	}
	return matches
}

// Best returns the highest-priority term in text and its byte range, or
// ("", nil) when none occurs.
func (v *Vocabulary) Best(text string) (string, []int) {
	if v.pattern == nil {
		return "", nil
	}
	best, bestRank := "", len(v.terms)
	var bestLoc []int
	for _, loc := range v.pattern.FindAllStringIndex(text, -1) {
		term := strings.ToLower(strings.Join(strings.Fields(text[loc[0]:loc[1]]), " "))
		if r := v.rank[term]; r < bestRank {
			best, bestRank, bestLoc = term, r, loc
		}
	}
	return best, bestLoc
}
