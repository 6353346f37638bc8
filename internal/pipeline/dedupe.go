package pipeline

import "github.com/nao1215/proxyscan/internal/model"

// Dedupe collapses candidates that share an "address:port" key.
// First-seen order is preserved and later duplicates are dropped silently.
func Dedupe(candidates []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}

	return unique
}
