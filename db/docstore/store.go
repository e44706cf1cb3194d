package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	apperrors "github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/gacha"
)

// Store persists the whole gacha document as a single JSON file. Every
// mutation serializes the full document and rewrites the file. A single
// mutex covers both the in-memory document and the file, so writers are
// fully serialized and readers always see a complete document.
type Store struct {
	mu       sync.RWMutex
	path     string
	doc      gacha.Document
	readOnly bool
	logger   zerolog.Logger
}

// Open loads the document from path, creating the file with defaults when it
// does not exist. A file that exists but cannot be parsed puts the store into
// read-only mode over an in-memory default document, so the unreadable file
// is preserved on disk for operator inspection instead of being overwritten.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "docstore").Logger(),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.doc = gacha.DefaultDocument()
		if err := s.writeFile(s.doc); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrPersistence, "failed to initialize document store")
		}
		s.logger.Info().Str("path", path).Msg("Document store initialized with defaults")
		return s, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence, "failed to read document store")
	}

	var doc gacha.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Keep the corrupt file untouched and serve defaults from memory.
		s.doc = gacha.DefaultDocument()
		s.readOnly = true
		s.logger.Error().
			Err(err).
			Str("path", path).
			Msg("Document store file is unreadable, serving in-memory defaults in read-only mode")
		return s, nil
	}

	if doc.History == nil {
		doc.History = []gacha.HistoryRecord{}
	}
	s.doc = doc
	s.logger.Info().
		Str("path", path).
		Int("history_records", len(doc.History)).
		Int("rewards", len(doc.Config.Rewards)).
		Msg("Document store loaded")
	return s, nil
}

// ReadOnly reports whether the store fell back to in-memory defaults because
// the backing file could not be parsed.
func (s *Store) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// Config returns a snapshot of the current configuration.
func (s *Store) Config() gacha.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.doc.Config
	cfg.Rewards = append(gacha.RewardTable(nil), s.doc.Config.Rewards...)
	return cfg
}

// MutateConfig applies fn to a copy of the current configuration and persists
// the resulting document. fn returning an error aborts without persisting.
func (s *Store) MutateConfig(fn func(cfg *gacha.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.doc.Config
	cfg.Rewards = append(gacha.RewardTable(nil), s.doc.Config.Rewards...)
	if err := fn(&cfg); err != nil {
		return err
	}

	next := s.doc
	next.Config = cfg
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// AppendHistory appends a completed spin record and persists the document.
// Records are never mutated or removed once appended.
func (s *Store) AppendHistory(record gacha.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc
	next.History = append(append([]gacha.HistoryRecord(nil), s.doc.History...), record)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// RecentHistory returns up to limit records, newest first. limit <= 0 returns
// all records.
func (s *Store) RecentHistory(limit int) []gacha.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.doc.History)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]gacha.HistoryRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.doc.History[i])
	}
	return out
}

// HistoryCount returns the total number of recorded spins.
func (s *Store) HistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.History)
}

// persistLocked writes doc to disk. Callers must hold the write lock. In
// read-only mode the in-memory document is still updated by callers but no
// file write happens, so the unreadable original file survives.
func (s *Store) persistLocked(doc gacha.Document) error {
	if s.readOnly {
		s.logger.Warn().Msg("Skipping persistence in read-only mode")
		return nil
	}
	if err := s.writeFile(doc); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence, "failed to persist document")
	}
	return nil
}

// writeFile writes the document atomically: serialize to a temp file in the
// same directory, then rename over the target.
func (s *Store) writeFile(doc gacha.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace document file: %w", err)
	}
	return nil
}
