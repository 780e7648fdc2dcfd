package gmail

import (
	"fmt"
	"strings"
)

// BuildQuery combines sender-domain matches (OR) with quoted keyword matches
// (OR) into one Gmail search query. Either list may be empty; both empty
// yields an empty query, which matches everything.
func BuildQuery(domains, keywords []string) string {
	var clauses []string

	if len(domains) > 0 {
		clauses = append(clauses, fmt.Sprintf("from:(%s)", strings.Join(domains, " OR ")))
	}

	if len(keywords) > 0 {
		quoted := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			quoted = append(quoted, fmt.Sprintf("%q", kw))
		}
		clauses = append(clauses, fmt.Sprintf("(%s)", strings.Join(quoted, " OR ")))
	}

	return strings.Join(clauses, " OR ")
}
