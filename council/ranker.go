package council

import "sort"

// Aggregate folds all parsed rankings into one advisory ordering over the
// labeled models. For each model, AveragePosition is the mean of its
// 1-based positions across the rankings that mention it and VoteCount the
// number of such rankings; an evaluator that omits a label contributes
// nothing for that model, no default worst-rank. Every labeled model
// appears exactly once; models nobody ranked keep the zero sentinel and
// sort last.
//
// Ordering is ascending AveragePosition; ties break by descending
// VoteCount, then lexical model identifier, so identical inputs always
// produce the identical order.
func Aggregate(mapping *LabelMapping, evals []Evaluation) []AggregateEntry {
	sums := make(map[Label]float64, mapping.Len())
	counts := make(map[Label]int, mapping.Len())
	for _, ev := range evals {
		for pos, lb := range ev.Ranking {
			if _, ok := mapping.ModelFor(lb); !ok {
				continue
			}
			sums[lb] += float64(pos + 1)
			counts[lb]++
		}
	}

	entries := make([]AggregateEntry, 0, mapping.Len())
	for _, lb := range mapping.Labels() {
		model, _ := mapping.ModelFor(lb)
		entry := AggregateEntry{Model: model}
		if n := counts[lb]; n > 0 {
			entry.VoteCount = n
			entry.AveragePosition = sums[lb] / float64(n)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entryLess(entries[i], entries[j])
	})
	return entries
}

func entryLess(a, b AggregateEntry) bool {
	aUnranked, bUnranked := a.VoteCount == 0, b.VoteCount == 0
	switch {
	case aUnranked && bUnranked:
		return a.Model < b.Model
	case aUnranked:
		return false
	case bUnranked:
		return true
	}
	if a.AveragePosition != b.AveragePosition {
		return a.AveragePosition < b.AveragePosition
	}
	if a.VoteCount != b.VoteCount {
		return a.VoteCount > b.VoteCount
	}
	return a.Model < b.Model
}
