package engine

import "strings"

// stopWords are query terms too common to seed a graph lookup.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "had": {}, "has": {}, "have": {}, "how": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "my": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "that": {}, "the": {}, "their": {}, "there": {},
	"this": {}, "to": {}, "was": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// keywordConcepts extracts up to max candidate concept IDs from a query:
// lowercased terms, stop words and short tokens removed, duplicates
// dropped, original order preserved.
func keywordConcepts(query string, max int) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	var concepts []string

	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if len(f) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		concepts = append(concepts, f)
		if len(concepts) == max {
			break
		}
	}
	return concepts
}
