package index

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Aman-CERP/bibdex/internal/store"
)

// CheckResult is the outcome of comparing the catalog with the index.
type CheckResult struct {
	// Orphans are index documents with no catalog entry.
	Orphans []string
	// Missing are catalog entries with no index document.
	Missing []string
	// Checked is the number of catalog entries compared.
	Checked int
	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether catalog and index agree.
func (r *CheckResult) Consistent() bool {
	return len(r.Orphans) == 0 && len(r.Missing) == 0
}

// CheckConsistency compares the IDs in catalog with the documents in idx.
// Both result lists are sorted.
func CheckConsistency(ctx context.Context, idx store.SearchIndex, catalog store.Catalog) (*CheckResult, error) {
	start := time.Now()

	ids, err := idx.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]bool, len(ids))
	result := &CheckResult{Checked: len(catalog)}
	for _, id := range ids {
		indexed[id] = true
		if _, ok := catalog[id]; !ok {
			result.Orphans = append(result.Orphans, id)
		}
	}
	for id := range catalog {
		if !indexed[id] {
			result.Missing = append(result.Missing, id)
		}
	}
	slices.Sort(result.Orphans)
	slices.Sort(result.Missing)
	result.Duration = time.Since(start)

	if !result.Consistent() {
		slog.Warn("index_inconsistent",
			slog.Int("orphans", len(result.Orphans)),
			slog.Int("missing", len(result.Missing)))
	}
	return result, nil
}
