// Package file implements the status store on an append-only JSON Lines
// journal. Every mutation is a journal entry synced to disk before the call
// returns; opening the store replays the journal into memory.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Entry kinds persisted in the journal.
const (
	kindStatus   = "status"
	kindNotified = "notified"
)

type journalEntry struct {
	Kind       string    `json:"kind"`
	ID         int64     `json:"id"`
	Title      string    `json:"title,omitempty"`
	Volume     string    `json:"volume,omitempty"`
	Status     string    `json:"status,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// Store is the file-backed tracker.Store implementation.
type Store struct {
	mu sync.Mutex

	file  *os.File
	clock tracker.Clock
	log   *zap.Logger

	records []tracker.StatusRecord // creation order
	byID    map[int64]int          // record id -> index into records
	latest  map[string]int         // item key -> index of highest-id record
	nextID  int64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Open loads (or creates) the journal at path and replays it.
func Open(path string, clock tracker.Clock, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage.path is required for the file driver")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		clock:  clock,
		log:    logger,
		byID:   make(map[int64]int),
		latest: make(map[string]int),
		nextID: 1,
	}
	if err := s.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	s.file = f
	logger.Debug("journal replayed",
		zap.String("path", path),
		zap.Int("records", len(s.records)),
	)
	return s, nil
}

func (s *Store) replay(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open journal for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		switch e.Kind {
		case kindStatus:
			rec := tracker.StatusRecord{
				ID:         e.ID,
				Title:      e.Title,
				Volume:     e.Volume,
				Status:     e.Status,
				ObservedAt: e.ObservedAt,
			}
			s.insert(rec)
		case kindNotified:
			if idx, ok := s.byID[e.ID]; ok {
				s.records[idx].Notified = true
			}
		default:
			return fmt.Errorf("journal line %d: unknown entry kind %q", line, e.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}

func (s *Store) insert(rec tracker.StatusRecord) {
	s.records = append(s.records, rec)
	idx := len(s.records) - 1
	s.byID[rec.ID] = idx
	s.latest[rec.Key()] = idx
	if rec.ID >= s.nextID {
		s.nextID = rec.ID + 1
	}
}

func (s *Store) writeEntry(e journalEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	// Callers may crash-recover safely once this returns.
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// LatestStatus returns the highest-ID record for the item.
func (s *Store) LatestStatus(_ context.Context, title, volume string) (tracker.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tracker.StatusRecord{Title: title, Volume: volume}.Key()
	idx, ok := s.latest[key]
	if !ok {
		return tracker.StatusRecord{}, tracker.ErrNotFound
	}
	return s.records[idx], nil
}

// Append persists a new unnotified record and returns it.
func (s *Store) Append(_ context.Context, title, volume, status string) (tracker.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return tracker.StatusRecord{}, fmt.Errorf("store is closed")
	}
	rec := tracker.StatusRecord{
		ID:         s.nextID,
		Title:      title,
		Volume:     volume,
		Status:     status,
		ObservedAt: s.clock.Now(),
	}
	if err := s.writeEntry(journalEntry{
		Kind:       kindStatus,
		ID:         rec.ID,
		Title:      rec.Title,
		Volume:     rec.Volume,
		Status:     rec.Status,
		ObservedAt: rec.ObservedAt,
	}); err != nil {
		return tracker.StatusRecord{}, err
	}
	s.insert(rec)
	return rec, nil
}

// MarkNotified flips the notified flag. Marking twice is a no-op; marking an
// unknown id is an error.
func (s *Store) MarkNotified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("store is closed")
	}
	idx, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("mark notified: record %d does not exist", id)
	}
	if s.records[idx].Notified {
		return nil
	}
	if err := s.writeEntry(journalEntry{Kind: kindNotified, ID: id}); err != nil {
		return err
	}
	s.records[idx].Notified = true
	return nil
}

// Unnotified lists records awaiting delivery in creation order.
func (s *Store) Unnotified(_ context.Context) ([]tracker.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []tracker.StatusRecord
	for _, rec := range s.records {
		if !rec.Notified {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close closes the journal file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
