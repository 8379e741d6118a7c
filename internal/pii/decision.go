package pii

import (
	"fmt"
	"strings"
)

const (
	SourceQuery    = "query"
	SourceResponse = "response"
)

// Decision is the outcome of PermitsCache. Source and Categories describe
// the first text that disqualified the pair.
type Decision struct {
	Allow      bool
	Reason     string
	Source     string
	Categories []Category
}

// PermitsCache allows caching only when neither the query nor the response
// contains PII. The query is checked first.
func (s *Scanner) PermitsCache(query, response string) Decision {
	if found := s.Scan(query); len(found) > 0 {
		return deny(SourceQuery, found)
	}
	if found := s.Scan(response); len(found) > 0 {
		return deny(SourceResponse, found)
	}
	return Decision{Allow: true, Reason: "No PII detected"}
}

func deny(source string, found []Category) Decision {
	names := make([]string, len(found))
	for i, c := range found {
		names[i] = string(c)
	}
	return Decision{
		Allow:      false,
		Reason:     fmt.Sprintf("PII detected in %s: %s", source, strings.Join(names, ", ")),
		Source:     source,
		Categories: found,
	}
}
