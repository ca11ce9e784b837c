package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Detector decides whether an observation is a new status transition.
type Detector struct {
	store  Store
	logger *zap.Logger
}

// NewDetector constructs a Detector.
func NewDetector(store Store, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{store: store, logger: logger}
}

// NormalizeStatus trims and collapses internal whitespace so that cosmetic
// markup changes on the source page do not register as transitions.
func NormalizeStatus(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Detect compares the observation against the latest stored record for the
// item and appends a new record when the status differs or the item has
// never been seen. Comparison is against the single most recent record
// only, so a status that reverts to an earlier value is a new transition.
// Returns the appended record and true when a transition was recorded.
func (d *Detector) Detect(ctx context.Context, obs Observation) (StatusRecord, bool, error) {
	status := NormalizeStatus(obs.Status)

	last, err := d.store.LatestStatus(ctx, obs.Title, obs.Volume)
	switch {
	case errors.Is(err, ErrNotFound):
		// First sighting of this item.
	case err != nil:
		return StatusRecord{}, false, fmt.Errorf("latest status for %s#%s: %w", obs.Title, obs.Volume, err)
	case last.Status == status:
		d.logger.Debug("status unchanged",
			zap.String("title", obs.Title),
			zap.String("volume", obs.Volume),
			zap.String("status", status),
		)
		return StatusRecord{}, false, nil
	}

	rec, err := d.store.Append(ctx, obs.Title, obs.Volume, status)
	if err != nil {
		return StatusRecord{}, false, fmt.Errorf("append status for %s#%s: %w", obs.Title, obs.Volume, err)
	}
	d.logger.Info("status transition recorded",
		zap.Int64("record_id", rec.ID),
		zap.String("title", rec.Title),
		zap.String("volume", rec.Volume),
		zap.String("status", rec.Status),
	)
	return rec, true, nil
}
