package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/metrics"
)

// RunnerConfig carries optional runner behavior.
type RunnerConfig struct {
	// Topic names the change-event topic; empty disables publishing.
	Topic string
	// ArchivePrefix prefixes archived page snapshots; used only when an
	// archiver is configured.
	ArchivePrefix string
}

// Runner drives one batch run: reconcile leftover notifications, fetch the
// page, detect transitions, deliver. The process keeps no state between
// runs other than the store, so a killed run recovers by simply running
// again.
type Runner struct {
	source     Source
	store      Store
	detector   *Detector
	dispatcher *Dispatcher
	publisher  Publisher
	archiver   Archiver
	metrics    *metrics.Metrics
	cfg        RunnerConfig
	logger     *zap.Logger
}

// NewRunner constructs a Runner. Publisher and archiver may be nil.
func NewRunner(
	source Source,
	store Store,
	detector *Detector,
	dispatcher *Dispatcher,
	publisher Publisher,
	archiver Archiver,
	m *metrics.Metrics,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		source:     source,
		store:      store,
		detector:   detector,
		dispatcher: dispatcher,
		publisher:  publisher,
		archiver:   archiver,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
}

// changeEvent is the payload published for each recorded transition.
type changeEvent struct {
	RecordID   int64  `json:"record_id"`
	Title      string `json:"title"`
	Volume     string `json:"volume"`
	Status     string `json:"status"`
	ObservedAt string `json:"observed_at"`
	RunID      string `json:"run_id"`
}

// RunOnce executes a single batch run. Fetch and storage errors abort the
// run; delivery failures never do.
func (r *Runner) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("run started")

	if err := r.run(ctx, runID, log); err != nil {
		r.metrics.RunsTotal.WithLabelValues("error").Inc()
		return err
	}
	r.metrics.RunsTotal.WithLabelValues("ok").Inc()
	log.Info("run finished")
	return nil
}

func (r *Runner) run(ctx context.Context, runID string, log *zap.Logger) error {
	// Failed sends from prior runs get priority over new discoveries.
	if err := r.reconcile(ctx, log); err != nil {
		return err
	}

	page, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch observations: %w", err)
	}
	log.Info("page fetched", zap.Int("observations", len(page.Observations)))
	r.metrics.ObservationsTotal.Add(float64(len(page.Observations)))
	r.archivePage(ctx, runID, page, log)

	for _, obs := range page.Observations {
		rec, changed, err := r.detector.Detect(ctx, obs)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		r.metrics.ChangesDetectedTotal.Inc()
		r.publishChange(ctx, runID, rec, log)

		outcome, err := r.dispatcher.Deliver(ctx, rec)
		if err != nil {
			return err
		}
		r.metrics.DeliveriesTotal.WithLabelValues(outcome.String()).Inc()
	}

	if pending, err := r.store.Unnotified(ctx); err == nil {
		r.metrics.UnnotifiedAfterRunGauge.Set(float64(len(pending)))
	}
	return nil
}

// reconcile re-attempts delivery for every record a prior run left
// unnotified, oldest first. A failed delivery never blocks the rest.
func (r *Runner) reconcile(ctx context.Context, log *zap.Logger) error {
	pending, err := r.store.Unnotified(ctx)
	if err != nil {
		return fmt.Errorf("list unnotified: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	log.Info("reconciling unnotified records", zap.Int("count", len(pending)))

	for _, rec := range pending {
		r.metrics.ReconcileRetriesTotal.Inc()
		outcome, err := r.dispatcher.Deliver(ctx, rec)
		if err != nil {
			return err
		}
		r.metrics.DeliveriesTotal.WithLabelValues(outcome.String()).Inc()
	}
	return nil
}

// publishChange emits the transition to the configured topic. Best effort:
// a publish failure must not abort the batch.
func (r *Runner) publishChange(ctx context.Context, runID string, rec StatusRecord, log *zap.Logger) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	event := changeEvent{
		RecordID:   rec.ID,
		Title:      rec.Title,
		Volume:     rec.Volume,
		Status:     rec.Status,
		ObservedAt: rec.ObservedAt.Format(time.RFC3339),
		RunID:      runID,
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, event); err != nil {
		log.Warn("change event publish failed",
			zap.Int64("record_id", rec.ID),
			zap.Error(err),
		)
	}
}

// archivePage stores the raw page snapshot. Best effort as well.
func (r *Runner) archivePage(ctx context.Context, runID string, page Page, log *zap.Logger) {
	if r.archiver == nil || len(page.Raw) == 0 {
		return
	}
	path := fmt.Sprintf("%s.html", runID)
	if r.cfg.ArchivePrefix != "" {
		path = fmt.Sprintf("%s/%s", r.cfg.ArchivePrefix, path)
	}
	uri, err := r.archiver.Put(ctx, path, page.Raw)
	if err != nil {
		log.Warn("page snapshot archive failed", zap.Error(err))
		return
	}
	log.Debug("page snapshot archived", zap.String("uri", uri))
}
