package dom

import "strings"

// SearchText scans an observation's text sample for lines matching any
// keyword of the query, case-insensitively, returning at most limit
// lines in page order. An empty result means nothing matched.
func SearchText(sample, query string, limit int) []string {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 || limit <= 0 {
		return nil
	}
	var matches []string
	for _, line := range strings.Split(sample, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, trimmed)
				break
			}
		}
		if len(matches) >= limit {
			break
		}
	}
	return matches
}
