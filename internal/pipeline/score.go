package pipeline

import (
	"log/slog"

	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/util"
)

const couponBonus = 20

// FilterNew drops every draft whose fingerprint is in the seen set, plus
// intra-cycle duplicates (the same listing scraped twice). Scrape order is
// preserved for the survivors.
func FilterNew(drafts []models.Deal, seen map[string]struct{}) []models.Deal {
	var fresh []models.Deal
	thisCycle := make(map[string]struct{}, len(drafts))
	for _, d := range drafts {
		fp := d.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		if _, ok := thisCycle[fp]; ok {
			continue
		}
		thisCycle[fp] = struct{}{}
		fresh = append(fresh, d)
	}
	return fresh
}

// Score rates a deal by discount depth plus a flat coupon bonus. A deal
// showing $40 down from $100 scores 60 (percent off), +20 with a coupon.
// Unparsable or inconsistent prices contribute nothing.
func Score(d models.Deal) float64 {
	var score float64

	if d.OriginalPrice != "" {
		current, errCur := util.ParseAmount(d.Price)
		original, errOrig := util.ParseAmount(d.OriginalPrice)
		switch {
		case errCur != nil || errOrig != nil:
			slog.Debug("Unparsable price pair, no discount score",
				"title", d.Title, "price", d.Price, "original_price", d.OriginalPrice)
		case original > current && original > 0:
			score += 100 * (original - current) / original
		}
	}

	if d.Coupon != "" {
		score += couponBonus
	}
	return score
}

// ScoredDeal pairs a deal with its score for ranking and selection.
type ScoredDeal struct {
	models.Deal
	Score float64
}

// ScoreAll attaches scores, preserving order.
func ScoreAll(deals []models.Deal) []ScoredDeal {
	out := make([]ScoredDeal, len(deals))
	for i, d := range deals {
		out[i] = ScoredDeal{Deal: d, Score: Score(d)}
	}
	return out
}
