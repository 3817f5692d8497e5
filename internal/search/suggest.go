package search

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// keySource adapts sorted citation keys to fuzzy.Source.
type keySource []string

func (k keySource) String(i int) string { return k[i] }
func (k keySource) Len() int            { return len(k) }

// SuggestKeys returns up to n catalog keys that fuzzily match term, best
// first. It backs the "did you mean" hint after a key search found nothing.
func (e *Engine) SuggestKeys(term string, n int) []string {
	if term == "" || n < 1 {
		return nil
	}

	e.mu.RLock()
	keys := make(keySource, 0, len(e.catalog))
	for id := range e.catalog {
		keys = append(keys, id)
	}
	e.mu.RUnlock()
	sort.Strings(keys)

	matches := fuzzy.FindFrom(term, keys)
	if len(matches) > n {
		matches = matches[:n]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, keys[m.Index])
	}
	return out
}
