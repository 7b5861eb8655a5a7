package pipeline

import (
	"math/rand"
	"sort"

	"github.com/pauljones0/dealfeed-bot/internal/models"
)

// Select picks up to max deals fairly across sources. Each source's list is
// ranked by score (stable, so ties keep scrape order), then one deal is taken
// per source per round until the cap is hit or everything is exhausted. The
// result is shuffled so the published order does not telegraph the ranking.
func Select(perSource map[string][]ScoredDeal, max int, rng *rand.Rand) []models.Deal {
	if max <= 0 || len(perSource) == 0 {
		return nil
	}

	sources := make([]string, 0, len(perSource))
	ranked := make(map[string][]ScoredDeal, len(perSource))
	for name, deals := range perSource {
		if len(deals) == 0 {
			continue
		}
		sources = append(sources, name)
		list := make([]ScoredDeal, len(deals))
		copy(list, deals)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
		ranked[name] = list
	}
	sort.Strings(sources)

	var selected []models.Deal
	for round := 0; len(selected) < max; round++ {
		progressed := false
		for _, name := range sources {
			if len(selected) >= max {
				break
			}
			list := ranked[name]
			if round >= len(list) {
				continue
			}
			selected = append(selected, list[round].Deal)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}
