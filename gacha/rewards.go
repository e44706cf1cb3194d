package gacha

import (
	"math/rand"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/UnKnowSoDev/pianissimo-gacha/errors"
)

// RewardEntry is a single weighted entry in the reward table.
// Name is the unique key within a table; Weight must be positive.
type RewardEntry struct {
	Name   string `json:"name"`
	Weight int64  `json:"weight"`
	IsRare bool   `json:"isRare,omitempty"`
}

// RewardTable is an ordered set of weighted reward entries.
// Order only affects interval construction during a draw, not probabilities.
type RewardTable []RewardEntry

// TotalWeight returns the sum of all entry weights.
func (t RewardTable) TotalWeight() int64 {
	return lo.SumBy(t, func(e RewardEntry) int64 { return e.Weight })
}

// Draw picks one entry with probability weight/totalWeight.
// Fails with ErrEmptyRewardTable if the table is empty or all weights are zero.
// If the walk exhausts the table (floating draw boundary edge case), the first
// entry is returned as a defined fallback so a draw never fails past the
// non-empty check.
func (t RewardTable) Draw(rng *rand.Rand) (RewardEntry, error) {
	total := t.TotalWeight()
	if len(t) == 0 || total <= 0 {
		return RewardEntry{}, errors.New(errors.ErrEmptyRewardTable, "reward table is empty")
	}

	r := rng.Int63n(total)
	for _, entry := range t {
		if r < entry.Weight {
			return entry, nil
		}
		r -= entry.Weight
	}
	return t[0], nil
}

// Upsert replaces the entry with a matching name, preserving its position,
// or appends the entry if absent. Returns the updated table and whether an
// existing entry was replaced.
func (t RewardTable) Upsert(entry RewardEntry) (RewardTable, bool) {
	_, idx, found := lo.FindIndexOf(t, func(e RewardEntry) bool { return e.Name == entry.Name })
	if found {
		out := make(RewardTable, len(t))
		copy(out, t)
		out[idx] = entry
		return out, true
	}
	out := make(RewardTable, len(t), len(t)+1)
	copy(out, t)
	return append(out, entry), false
}

// Remove deletes the entry with the given name. Returns the updated table and
// whether a removal occurred.
func (t RewardTable) Remove(name string) (RewardTable, bool) {
	out := lo.Reject(t, func(e RewardEntry, _ int) bool { return e.Name == name })
	return RewardTable(out), len(out) < len(t)
}

// RewardPercentage pairs an entry with its display probability.
type RewardPercentage struct {
	Name    string `json:"name"`
	Weight  int64  `json:"weight"`
	IsRare  bool   `json:"isRare,omitempty"`
	Percent string `json:"percent"`
}

// Percentages returns every entry with weight/totalWeight*100 rounded to one
// decimal place for display. An empty or zero-weight table yields all "0.0".
func (t RewardTable) Percentages() []RewardPercentage {
	total := t.TotalWeight()
	return lo.Map(t, func(e RewardEntry, _ int) RewardPercentage {
		percent := "0.0"
		if total > 0 {
			percent = decimal.NewFromInt(e.Weight).
				Div(decimal.NewFromInt(total)).
				Mul(decimal.NewFromInt(100)).
				StringFixed(1)
		}
		return RewardPercentage{
			Name:    e.Name,
			Weight:  e.Weight,
			IsRare:  e.IsRare,
			Percent: percent,
		}
	})
}
