// Package memory provides Beatrice's cross-session memory store and the
// per-run conversation session.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Speakers recorded in the memory file.
const (
	SpeakerUser      = "User"
	SpeakerAssistant = "Beatrice"
)

// TimestampLayout is the local-time format stored with each record.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Defaults used when Open is given non-positive limits.
const (
	DefaultCap      = 100
	DefaultMaxFacts = 5
	DefaultSearchN  = 5
)

// factKeywords mark a user record as a fact worth repeating in the
// system prompt. Matched against the lowercased text.
var factKeywords = []string{"my name is", "i am ", "i'm ", "call me", "i like", "i love", "i hate"}

// Record is one remembered utterance.
type Record struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Store is a capped, file-backed list of records. Every mutation
// rewrites the whole file. Persistence failures are logged and
// swallowed so a broken disk never breaks a conversation.
type Store struct {
	mu       sync.RWMutex
	path     string
	cap      int
	maxFacts int
	records  []Record
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFacts sets how many facts RecentFacts returns.
func WithMaxFacts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxFacts = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the store from path. A missing file yields an empty
// store; an unreadable or corrupt file yields an empty store and a
// warning. Open never fails.
func Open(path string, cap int, logger *slog.Logger, opts ...Option) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:     path,
		cap:      cap,
		maxFacts: DefaultMaxFacts,
		records:  []Record{},
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}

	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("memory file unreadable, starting empty", "path", s.path, "error", err)
		return
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("memory file corrupt, starting empty", "path", s.path, "error", err)
		return
	}
	if records == nil {
		records = []Record{}
	}
	if len(records) > s.cap {
		records = records[len(records)-s.cap:]
	}
	s.records = records
	s.logger.Debug("memory loaded", "path", s.path, "records", len(records))
}

// Store appends a record, evicts the oldest beyond the cap and persists.
func (s *Store) Store(speaker, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, Record{
		Speaker:   speaker,
		Text:      text,
		Timestamp: s.now().Format(TimestampLayout),
	})
	if over := len(s.records) - s.cap; over > 0 {
		s.records = append([]Record(nil), s.records[over:]...)
	}
	s.persistLocked()
}

// RecentFacts returns up to the configured number of user records that
// contain a fact keyword, most recent last.
func (s *Store) RecentFacts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var facts []string
	for _, r := range s.records {
		if r.Speaker != SpeakerUser {
			continue
		}
		lower := strings.ToLower(r.Text)
		for _, kw := range factKeywords {
			if strings.Contains(lower, kw) {
				facts = append(facts, r.Text)
				break
			}
		}
	}
	if len(facts) > s.maxFacts {
		facts = facts[len(facts)-s.maxFacts:]
	}
	return facts
}

// Search returns up to limit records, most recent first, whose text
// contains any whitespace-separated word of query (case-insensitive).
// Results are formatted "speaker: text". A non-positive limit uses
// DefaultSearchN.
func (s *Store) Search(query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSearchN
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []string
	for i := len(s.records) - 1; i >= 0 && len(matches) < limit; i-- {
		r := s.records[i]
		lower := strings.ToLower(r.Text)
		for _, w := range words {
			if strings.Contains(lower, w) {
				matches = append(matches, r.Speaker+": "+r.Text)
				break
			}
		}
	}
	return matches
}

// Records returns a copy of every record, oldest first.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Record(nil), s.records...)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes every record and persists the empty store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = []Record{}
	s.persistLocked()
	s.logger.Info("memory cleared", "path", s.path)
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Save writes the store to disk and returns any error.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.write()
}

func (s *Store) persistLocked() {
	if err := s.write(); err != nil {
		s.logger.Warn("memory not persisted", "path", s.path, "error", err)
	}
}

// write replaces the file atomically via a temp file in the same
// directory. Callers hold at least a read lock.
func (s *Store) write() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".memories-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close memory: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
