package tracker

import (
	"context"
	"sync"
	"time"
)

// fakeStore is an in-memory Store with error injection.
type fakeStore struct {
	mu      sync.Mutex
	records []StatusRecord
	nextID  int64

	latestErr     error
	appendErr     error
	markErr       error
	unnotifiedErr error

	appendCalls int
	markCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (s *fakeStore) seed(title, volume, status string, notified bool) StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := StatusRecord{
		ID:         s.nextID,
		Title:      title,
		Volume:     volume,
		Status:     status,
		ObservedAt: time.Unix(1700000000+s.nextID, 0).UTC(),
		Notified:   notified,
	}
	s.nextID++
	s.records = append(s.records, rec)
	return rec
}

func (s *fakeStore) LatestStatus(_ context.Context, title, volume string) (StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestErr != nil {
		return StatusRecord{}, s.latestErr
	}
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Title == title && s.records[i].Volume == volume {
			return s.records[i], nil
		}
	}
	return StatusRecord{}, ErrNotFound
}

func (s *fakeStore) Append(_ context.Context, title, volume, status string) (StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	if s.appendErr != nil {
		return StatusRecord{}, s.appendErr
	}
	rec := StatusRecord{
		ID:         s.nextID,
		Title:      title,
		Volume:     volume,
		Status:     status,
		ObservedAt: time.Unix(1700000000+s.nextID, 0).UTC(),
	}
	s.nextID++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakeStore) MarkNotified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return s.markErr
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Notified = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) Unnotified(_ context.Context) ([]StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unnotifiedErr != nil {
		return nil, s.unnotifiedErr
	}
	var out []StatusRecord
	for _, rec := range s.records {
		if !rec.Notified {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

// fakeTransport replays scripted outcomes in order; once the script is
// exhausted every send succeeds.
type fakeTransport struct {
	mu       sync.Mutex
	script   []DeliveryOutcome
	sendErr  error
	messages []Message
}

func (t *fakeTransport) Send(_ context.Context, msg Message) (DeliveryOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	if len(t.script) == 0 {
		return OutcomeSent, nil
	}
	outcome := t.script[0]
	t.script = t.script[1:]
	if outcome == OutcomeSent {
		return outcome, nil
	}
	err := t.sendErr
	if err == nil {
		err = errTransport
	}
	return outcome, err
}

func (t *fakeTransport) sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// fakeSource returns a fixed page or error.
type fakeSource struct {
	page Page
	err  error
}

func (s *fakeSource) Fetch(context.Context) (Page, error) {
	if s.err != nil {
		return Page{}, s.err
	}
	return s.page, nil
}

// fakeArchiver records archived snapshots.
type fakeArchiver struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (a *fakeArchiver) Put(_ context.Context, path string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.paths = append(a.paths, path)
	return "file:///archive/" + path, nil
}
