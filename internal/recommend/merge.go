package recommend

import (
	"sort"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// scoreEpsilon is the tolerance under which two final scores are considered
// tied and the deterministic tie-break applies.
const scoreEpsilon = 1e-9

// Merge combines normalized per-source candidate lists into one ranked list
// using the given weights. Weights are renormalized before use, so callers may
// pass unscaled values. An item absent from a source contributes 0 for that
// source ("no evidence", the minimum of the normalized range, not a penalty).
//
// Ties within scoreEpsilon break first on the number of contributing sources
// (more sources ranks higher), then on item id ascending, which makes the
// output fully deterministic regardless of input arrival order.
func Merge(bySource map[domain.Source][]domain.NormalizedCandidate, weights Weights) ([]domain.MergedResult, error) {
	w, err := weights.Normalized()
	if err != nil {
		return nil, err
	}

	type acc struct {
		final     float64
		perSource map[domain.Source]float64
	}
	items := map[string]*acc{}
	for src, list := range bySource {
		weight := w[src]
		for _, c := range list {
			a := items[c.ItemID]
			if a == nil {
				a = &acc{perSource: map[domain.Source]float64{}}
				items[c.ItemID] = a
			}
			// A source contributes at most once per item; upstream lists can
			// repeat an id (an LLM echoing the same assessment twice) and the
			// duplicate must not inflate the final score.
			if _, seen := a.perSource[src]; seen {
				continue
			}
			a.perSource[src] = c.NormalizedScore
			a.final += weight * c.NormalizedScore
		}
	}
	if len(items) == 0 {
		return []domain.MergedResult{}, nil
	}

	out := make([]domain.MergedResult, 0, len(items))
	for id, a := range items {
		out = append(out, domain.MergedResult{
			ItemID:          id,
			FinalScore:      a.final,
			PerSourceScores: a.perSource,
		})
	}
	// First a strict sort: exact score desc, then contributing-source count
	// desc, then item id asc. Comparing scores exactly keeps the comparator
	// transitive; putting epsilon into it would not (a~b and b~c do not imply
	// a~c), and a non-transitive comparator makes the order depend on the
	// arrival order of the slice, which here comes from map iteration.
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		if li, lj := len(out[i].PerSourceScores), len(out[j].PerSourceScores); li != lj {
			return li > lj
		}
		return out[i].ItemID < out[j].ItemID
	})
	// Then the epsilon tie-break as a post-pass: walk the sorted slice and
	// re-break every run of adjacent near-equal scores. Runs over a sorted,
	// deterministic slice are themselves deterministic.
	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end-1].FinalScore-out[end].FinalScore <= scoreEpsilon {
			end++
		}
		if end-start > 1 {
			group := out[start:end]
			sort.Slice(group, func(i, j int) bool {
				if li, lj := len(group[i].PerSourceScores), len(group[j].PerSourceScores); li != lj {
					return li > lj
				}
				return group[i].ItemID < group[j].ItemID
			})
		}
		start = end
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
