package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/recall/pkg/conversation"
)

// DefaultMaxItems caps how many items each category lists.
const DefaultMaxItems = 8

// Rules summarizes by extracting salient tokens. It never fails for a
// non-empty batch and never calls out of process.
type Rules struct {
	vocab    *conversation.Vocabulary
	maxItems int
}

// NewRules builds a rule-based summarizer over the given domain vocabulary.
// A nil vocabulary uses conversation.DefaultFinancialTerms.
func NewRules(vocab *conversation.Vocabulary, maxItems int) *Rules {
	if vocab == nil {
		vocab = conversation.NewVocabulary(conversation.DefaultFinancialTerms)
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Rules{vocab: vocab, maxItems: maxItems}
}

// Summarize renders one sentence listing topics, entities, periods and
// amounts found in the previous summary and the evicted turns.
func (r *Rules) Summarize(_ context.Context, previous *conversation.Summary, turns []conversation.Turn) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}

	topics := newItemSet()
	entities := newItemSet()
	periods := newItemSet()
	amounts := newItemSet()

	covered := len(turns)
	sources := make([]string, 0, len(turns)+1)
	if previous != nil {
		covered += previous.CoveredTurnCount
		sources = append(sources, previous.Text)
	}
	for _, t := range turns {
		sources = append(sources, t.Content)
	}

	for _, text := range sources {
		topics.add(r.vocab.Find(text)...)
		entities.add(conversation.FindEntities(text, r.vocab)...)
		periods.add(conversation.FindPeriods(text)...)
		amounts.add(conversation.FindAmounts(text)...)
	}

	parts := []string{fmt.Sprintf("Earlier conversation (%d turns)", covered)}
	for _, cat := range []struct {
		label string
		set   *itemSet
	}{
		{"topics", topics},
		{"entities", entities},
		{"periods", periods},
		{"amounts", amounts},
	} {
		if items := cat.set.last(r.maxItems); len(items) > 0 {
			parts = append(parts, cat.label+": "+strings.Join(items, ", "))
		}
	}

	if len(parts) == 1 {
		return parts[0] + " with no recognizable topics.", nil
	}
	return parts[0] + "; " + strings.Join(parts[1:], "; ") + ".", nil
}

// itemSet keeps items in first-seen order, ignoring case for duplicates.
type itemSet struct {
	seen  map[string]struct{}
	items []string
}

func newItemSet() *itemSet {
	return &itemSet{seen: map[string]struct{}{}}
}

func (s *itemSet) add(items ...string) {
	for _, it := range items {
		key := strings.ToLower(it)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.items = append(s.items, it)
	}
}

// last returns the n most recently first-seen items.
func (s *itemSet) last(n int) []string {
	if len(s.items) <= n {
		return s.items
	}
	return s.items[len(s.items)-n:]
}
