package query

import (
	"strings"
	"unicode"

	"github.com/parchmint/corpora/core"
)

// exprRunes is the punctuation set that flips a query string from
// keyword mode into expression mode.
const exprRunes = ",.~=&|()><'\"`@_*-%"

// IsExpression reports whether q should be parsed as an expression
// rather than as plain keywords. A leading "?" forces expression mode.
func IsExpression(q string) bool {
	if strings.HasPrefix(q, "?") {
		return true
	}
	return strings.ContainsAny(q, exprRunes)
}

// keywordCondition turns a keyword-mode query into a disjunction of
// tag matches over lowercased, de-duplicated words. An empty input
// matches all.
func keywordCondition(q string, terms TermResolver) Condition {
	words := splitWords(q)
	if len(words) == 0 {
		return MatchAll{}
	}
	seen := map[string]bool{}
	conds := make(Or, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		conds = append(conds, wordCondition(w, terms))
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return conds
}

func wordCondition(word string, terms TermResolver) Condition {
	if terms != nil {
		if expanded := terms(word); len(expanded) > 1 {
			values := make([]any, len(expanded))
			for i, t := range expanded {
				values[i] = t
			}
			return In{Field: core.FieldTags, Values: values}
		}
	}
	return Compare{Field: core.FieldTags, Op: OpEq, Value: word}
}

func splitWords(q string) []string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	words := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}
