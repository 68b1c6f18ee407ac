package handler

import "github.com/web3-frozen/pool-dashboard/internal/store"

// RecommendationScore rates a pool 0-100 for the comparison view. Additive
// tiers over hashrate, fee, luck proximity to 100%, recent blocks and payout
// method, clamped at both ends.
func RecommendationScore(hashrate, feePct, luck float64, blocks24h int, payoutMethod string) int {
	score := 50

	switch {
	case hashrate > 5e14:
		score += 20
	case hashrate > 1e14:
		score += 15
	case hashrate > 5e13:
		score += 10
	}

	switch {
	case feePct <= 1:
		score += 15
	case feePct <= 2:
		score += 10
	case feePct <= 3:
		score += 5
	}

	diff := luck - 100
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 5:
		score += 10
	case diff <= 15:
		score += 5
	}

	switch {
	case blocks24h > 5:
		score += 10
	case blocks24h > 0:
		score += 5
	}

	if payoutMethod == store.PayoutPPLNS {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func scorePool(p store.PoolWithStats) int {
	var hashrate, luck float64
	var blocks int
	if p.Hashrate != nil {
		hashrate = *p.Hashrate
	}
	if p.Luck7d != nil {
		luck = *p.Luck7d
	}
	if p.BlocksFound24 != nil {
		blocks = *p.BlocksFound24
	}
	return RecommendationScore(hashrate, p.FeePct, luck, blocks, p.PayoutMethod)
}
