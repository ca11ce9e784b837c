// Package tracker defines core types shared across subsystems and implements
// the change-detection and notification pipeline.
package tracker

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.LatestStatus when an item has no history.
var ErrNotFound = errors.New("status record not found")

// StatusRecord is one observed status for a tracked (title, volume) item.
// Records are immutable once written except for the one-way Notified flip.
type StatusRecord struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Volume     string    `json:"volume"`
	Status     string    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
	Notified   bool      `json:"notified"`
}

// Key returns the item key identifying the tracked unit.
func (r StatusRecord) Key() string {
	return r.Title + "#" + r.Volume
}

// Observation is a single (title, volume, status) triple produced by one
// scrape of the source page.
type Observation struct {
	Title  string `json:"title"`
	Volume string `json:"volume"`
	Status string `json:"status"`
}

// Page is the result of fetching the source feed once: the extracted
// observations plus the raw payload for archiving.
type Page struct {
	Observations []Observation
	Raw          []byte
	FetchedAt    time.Time
}

// Store is the durable append-only status history. The most recent record
// per (title, volume), ordered by ID, is the current known status.
type Store interface {
	// LatestStatus returns the highest-ID record for the item, or
	// ErrNotFound when the item has never been observed.
	LatestStatus(ctx context.Context, title, volume string) (StatusRecord, error)
	// Append durably persists a new record with Notified=false and
	// returns it. The record is on disk before Append returns.
	Append(ctx context.Context, title, volume, status string) (StatusRecord, error)
	// MarkNotified flips the Notified flag for the given record.
	// Marking an already-notified record is a no-op.
	MarkNotified(ctx context.Context, id int64) error
	// Unnotified lists every record still awaiting delivery, oldest first.
	Unnotified(ctx context.Context) ([]StatusRecord, error)
	Close() error
}

// Source produces observations from the external status page.
type Source interface {
	Fetch(ctx context.Context) (Page, error)
}

// DeliveryOutcome classifies one notification delivery attempt.
type DeliveryOutcome int

const (
	// OutcomeSent means the transport confirmed delivery.
	OutcomeSent DeliveryOutcome = iota
	// OutcomeAuthFailed means the transport rejected our credentials.
	// The record stays unnotified and is retried on the next run, but
	// this usually needs operator attention.
	OutcomeAuthFailed
	// OutcomeTransient covers every other transport failure.
	OutcomeTransient
)

func (o DeliveryOutcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeAuthFailed:
		return "auth_failed"
	default:
		return "transient_failure"
	}
}

// Message is one outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport sends notifications. The outcome classifies the attempt; err
// carries the underlying cause for logging and is nil iff OutcomeSent.
type Transport interface {
	Send(ctx context.Context, msg Message) (DeliveryOutcome, error)
}

// Publisher emits change events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archiver stores raw page snapshots and returns the stored object's URI.
type Archiver interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
