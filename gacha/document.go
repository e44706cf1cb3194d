package gacha

import "time"

// Config holds the admin-mutable gacha configuration.
// It is read fresh at the start of every spin so admin changes take effect on
// the next spin without a restart.
type Config struct {
	CostPerSpin int64       `json:"costPerSpin"`
	Rewards     RewardTable `json:"rewards"`
}

// HistoryRecord is one completed spin. Records are append-only and never
// mutated or deleted after creation.
type HistoryRecord struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	ItemName  string    `json:"itemName"`
	Cost      int64     `json:"cost"`
	IsRare    bool      `json:"isRare,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the single persisted structure holding configuration and spin
// history. The entire document is the unit of durability: every mutation
// rewrites the whole backing file.
type Document struct {
	Config  Config          `json:"config"`
	History []HistoryRecord `json:"history"`
}

// DefaultDocument returns the built-in initial document used when no backing
// store exists yet: a non-empty reward table, a positive cost, empty history.
func DefaultDocument() Document {
	return Document{
		Config: Config{
			CostPerSpin: 50,
			Rewards: RewardTable{
				{Name: "Salt", Weight: 60},
				{Name: "Drinking Water", Weight: 25},
				{Name: "Buy 3 Get 1 Free", Weight: 10},
				{Name: "SSR Grand Prize", Weight: 5, IsRare: true},
			},
		},
		History: []HistoryRecord{},
	}
}
