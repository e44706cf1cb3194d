package gacha

import (
	"math"
	"math/rand"
	"testing"

	"github.com/UnKnowSoDev/pianissimo-gacha/errors"
)

func TestDrawEmptyTable(t *testing.T) {
	tests := []struct {
		name  string
		table RewardTable
	}{
		{"nil table", nil},
		{"empty table", RewardTable{}},
		{"all zero weights", RewardTable{{Name: "a", Weight: 0}, {Name: "b", Weight: 0}}},
	}

	rng := rand.New(rand.NewSource(1))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.table.Draw(rng)
			if err == nil {
				t.Fatal("Draw() succeeded on empty table")
			}
			if errors.GetCode(err) != errors.ErrEmptyRewardTable {
				t.Errorf("error code = %d, want %d", errors.GetCode(err), errors.ErrEmptyRewardTable)
			}
		})
	}
}

func TestDrawSingleEntry(t *testing.T) {
	table := RewardTable{{Name: "only", Weight: 7}}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		entry, err := table.Draw(rng)
		if err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		if entry.Name != "only" {
			t.Fatalf("Draw() = %q, want only", entry.Name)
		}
	}
}

func TestDrawFrequenciesConvergeToWeights(t *testing.T) {
	table := RewardTable{
		{Name: "common", Weight: 60},
		{Name: "uncommon", Weight: 30},
		{Name: "rare", Weight: 10, IsRare: true},
	}
	rng := rand.New(rand.NewSource(7))

	const n = 200000
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		entry, err := table.Draw(rng)
		if err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		counts[entry.Name]++
	}

	total := float64(table.TotalWeight())
	for _, entry := range table {
		want := float64(entry.Weight) / total
		got := float64(counts[entry.Name]) / n
		if math.Abs(got-want) > 0.01 {
			t.Errorf("frequency of %s = %.4f, want %.4f ± 0.01", entry.Name, got, want)
		}
	}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	table := RewardTable{
		{Name: "first", Weight: 10},
		{Name: "second", Weight: 20},
		{Name: "third", Weight: 30},
	}

	out, replaced := table.Upsert(RewardEntry{Name: "second", Weight: 99, IsRare: true})
	if !replaced {
		t.Fatal("Upsert() reported no replacement for existing name")
	}
	if len(out) != 3 {
		t.Fatalf("table length = %d, want 3", len(out))
	}
	if out[1].Name != "second" || out[1].Weight != 99 || !out[1].IsRare {
		t.Errorf("replaced entry = %+v, want second/99/rare at position 1", out[1])
	}
	// The original table is untouched.
	if table[1].Weight != 20 {
		t.Errorf("original table mutated: %+v", table[1])
	}
}

func TestUpsertAppendsNewEntry(t *testing.T) {
	table := RewardTable{{Name: "first", Weight: 10}}

	out, replaced := table.Upsert(RewardEntry{Name: "new", Weight: 5})
	if replaced {
		t.Fatal("Upsert() reported replacement for a new name")
	}
	if len(out) != 2 {
		t.Fatalf("table length = %d, want 2", len(out))
	}
	if out[1].Name != "new" {
		t.Errorf("appended entry = %+v, want new at the end", out[1])
	}
}

func TestRemove(t *testing.T) {
	table := RewardTable{
		{Name: "keep", Weight: 10},
		{Name: "drop", Weight: 20},
	}

	t.Run("existing entry", func(t *testing.T) {
		out, removed := table.Remove("drop")
		if !removed {
			t.Fatal("Remove() reported no removal for existing name")
		}
		if len(out) != 1 || out[0].Name != "keep" {
			t.Errorf("table after removal = %+v", out)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		out, removed := table.Remove("ghost")
		if removed {
			t.Fatal("Remove() reported removal for missing name")
		}
		if len(out) != 2 {
			t.Errorf("table length = %d, want 2", len(out))
		}
	})
}

func TestPercentages(t *testing.T) {
	table := RewardTable{
		{Name: "a", Weight: 60},
		{Name: "b", Weight: 25},
		{Name: "c", Weight: 10},
		{Name: "d", Weight: 5, IsRare: true},
	}

	got := table.Percentages()
	want := []string{"60.0", "25.0", "10.0", "5.0"}
	for i, p := range got {
		if p.Percent != want[i] {
			t.Errorf("percent of %s = %s, want %s", p.Name, p.Percent, want[i])
		}
	}
	if !got[3].IsRare {
		t.Error("rare flag lost in percentage listing")
	}
}

func TestPercentagesRounding(t *testing.T) {
	table := RewardTable{
		{Name: "a", Weight: 1},
		{Name: "b", Weight: 2},
	}

	got := table.Percentages()
	if got[0].Percent != "33.3" {
		t.Errorf("percent of a = %s, want 33.3", got[0].Percent)
	}
	if got[1].Percent != "66.7" {
		t.Errorf("percent of b = %s, want 66.7", got[1].Percent)
	}
}
