package knowledge

import "strings"

// FindExactMatch scans qa entries for a literal match between the query and a
// registered question or alias. Comparison is case-insensitive with leading
// and trailing whitespace trimmed on both sides.
//
// The first entry with any matching alias wins and scanning stops there.
// A literal intent match is a stronger signal than embedding similarity, so
// callers must check this before consulting the chunk index.
//
// Returns nil when nothing matches.
func FindExactMatch(query string, entries []Entry) *Entry {
	needle := canonicalQuestion(query)
	if needle == "" {
		return nil
	}

	for i := range entries {
		e := &entries[i]
		if e.SourceType != SourceQA || e.Metadata.QA == nil {
			continue
		}

		if canonicalQuestion(e.Metadata.QA.Question) == needle {
			return e
		}
		for _, alias := range e.Metadata.QA.RelatedQuestions {
			if canonicalQuestion(alias) == needle {
				return e
			}
		}
	}
	return nil
}

// canonicalQuestion lowers and trims a question for literal comparison.
func canonicalQuestion(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
