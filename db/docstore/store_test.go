package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestOpenCreatesDefaultDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")

	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	cfg := store.Config()
	if cfg.CostPerSpin <= 0 {
		t.Errorf("default cost per spin = %d, want > 0", cfg.CostPerSpin)
	}
	if len(cfg.Rewards) == 0 {
		t.Error("default reward table is empty")
	}
	if store.HistoryCount() != 0 {
		t.Errorf("default history count = %d, want 0", store.HistoryCount())
	}

	// The defaults must have been written to disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	var doc gacha.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("created file is not valid JSON: %v", err)
	}
	if doc.Config.CostPerSpin != cfg.CostPerSpin {
		t.Errorf("persisted cost = %d, want %d", doc.Config.CostPerSpin, cfg.CostPerSpin)
	}
}

func TestOpenLoadsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	doc := gacha.Document{
		Config: gacha.Config{
			CostPerSpin: 120,
			Rewards: gacha.RewardTable{
				{Name: "Prize", Weight: 1},
			},
		},
		History: []gacha.HistoryRecord{
			{UserID: "u1", Username: "alice", ItemName: "Prize", Cost: 120, Timestamp: time.Now().UTC()},
		},
	}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := store.Config().CostPerSpin; got != 120 {
		t.Errorf("cost per spin = %d, want 120", got)
	}
	if store.HistoryCount() != 1 {
		t.Errorf("history count = %d, want 1", store.HistoryCount())
	}
}

func TestOpenCorruptFileFallsBackWithoutOverwriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	corrupt := []byte("{not json at all")
	if err := os.WriteFile(path, corrupt, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !store.ReadOnly() {
		t.Error("store over a corrupt file is not read-only")
	}
	if len(store.Config().Rewards) == 0 {
		t.Error("fallback document has empty reward table")
	}

	// Mutations succeed in memory but never touch the corrupt file.
	err = store.AppendHistory(gacha.HistoryRecord{UserID: "u1", ItemName: "Prize", Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-reading file: %v", err)
	}
	if string(after) != string(corrupt) {
		t.Error("corrupt file was overwritten")
	}
}

func TestMutateConfigPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	err = store.MutateConfig(func(cfg *gacha.Config) error {
		cfg.CostPerSpin = 75
		return nil
	})
	if err != nil {
		t.Fatalf("MutateConfig() error = %v", err)
	}
	if got := store.Config().CostPerSpin; got != 75 {
		t.Errorf("cost per spin = %d, want 75", got)
	}

	// Reopen to prove the change survived.
	reopened, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	if got := reopened.Config().CostPerSpin; got != 75 {
		t.Errorf("reloaded cost per spin = %d, want 75", got)
	}
}

func TestMutateConfigAbortsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	before := store.Config().CostPerSpin

	wantErr := os.ErrInvalid
	err = store.MutateConfig(func(cfg *gacha.Config) error {
		cfg.CostPerSpin = 9999
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("MutateConfig() error = %v, want %v", err, wantErr)
	}
	if got := store.Config().CostPerSpin; got != before {
		t.Errorf("cost per spin changed to %d after aborted mutation, want %d", got, before)
	}
}

func TestAppendHistoryAndRecentHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	store, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	names := []string{"first", "second", "third"}
	for _, name := range names {
		err := store.AppendHistory(gacha.HistoryRecord{
			UserID:    "u1",
			Username:  "alice",
			ItemName:  name,
			Cost:      50,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("AppendHistory(%q) error = %v", name, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		recent := store.RecentHistory(2)
		if len(recent) != 2 {
			t.Fatalf("RecentHistory(2) returned %d records, want 2", len(recent))
		}
		if recent[0].ItemName != "third" || recent[1].ItemName != "second" {
			t.Errorf("RecentHistory(2) order = [%s, %s], want [third, second]",
				recent[0].ItemName, recent[1].ItemName)
		}
	})

	t.Run("limit larger than history", func(t *testing.T) {
		if got := len(store.RecentHistory(100)); got != 3 {
			t.Errorf("RecentHistory(100) returned %d records, want 3", got)
		}
	})

	t.Run("zero limit returns all", func(t *testing.T) {
		if got := len(store.RecentHistory(0)); got != 3 {
			t.Errorf("RecentHistory(0) returned %d records, want 3", got)
		}
	})
}
