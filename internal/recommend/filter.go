package recommend

import (
	"fmt"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// ValidateConstraints rejects malformed filter values. It runs before any
// external scoring call is issued so a bad request never costs network round
// trips.
func ValidateConstraints(c domain.FilterConstraints) error {
	if c.MaxDurationMinutes != nil && *c.MaxDurationMinutes < 0 {
		return fmt.Errorf("op=filter.validate: max duration %d is negative: %w", *c.MaxDurationMinutes, domain.ErrInvalidArgument)
	}
	if c.RequiredLanguage != nil && *c.RequiredLanguage == "" {
		return fmt.Errorf("op=filter.validate: required language is empty: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// ClampCount normalizes a requested result count into [1,MaxRequestedCount],
// substituting the default when unset. Out-of-range values are clamped, not
// rejected.
func ClampCount(n int) int {
	if n == 0 {
		return domain.DefaultRequestedCount
	}
	if n < 1 {
		return 1
	}
	if n > domain.MaxRequestedCount {
		return domain.MaxRequestedCount
	}
	return n
}

// Filter removes merged results whose assessment fails any supplied hard
// constraint, preserving the merge ordering among survivors, then truncates to
// the (clamped) requested count. An item missing from the catalogue snapshot
// is dropped; a fully filtered result is an empty list, not an error.
func Filter(results []domain.MergedResult, catalogue map[string]domain.Assessment, c domain.FilterConstraints) ([]domain.MergedResult, error) {
	if err := ValidateConstraints(c); err != nil {
		return nil, err
	}
	limit := ClampCount(c.RequestedCount)
	out := make([]domain.MergedResult, 0, limit)
	for _, r := range results {
		item, ok := catalogue[r.ItemID]
		if !ok {
			continue
		}
		if c.MaxDurationMinutes != nil && item.DurationMinutes > *c.MaxDurationMinutes {
			continue
		}
		if c.RequireRemote && !item.RemoteCapable {
			continue
		}
		if c.RequiredLanguage != nil && !item.SupportsLanguage(*c.RequiredLanguage) {
			continue
		}
		r.Rank = len(out) + 1
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
