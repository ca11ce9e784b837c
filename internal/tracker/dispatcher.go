package tracker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DispatcherConfig carries the fixed parts of the notification template.
type DispatcherConfig struct {
	// Recipient is the notification address, supplied on the command line.
	Recipient string
	// PageURL is the watched page, included in the message body.
	PageURL string
	// ServiceName signs the message body.
	ServiceName string
}

// Dispatcher formats notifications for status records and delivers them
// through the transport, marking records notified only after a confirmed
// send. A crash between send and mark replays as a duplicate notification,
// never a lost one.
type Dispatcher struct {
	store     Store
	transport Transport
	cfg       DispatcherConfig
	logger    *zap.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, transport Transport, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Automated status notification service"
	}
	return &Dispatcher{store: store, transport: transport, cfg: cfg, logger: logger}
}

// Deliver attempts delivery for one record. The returned error is non-nil
// only for storage faults (marking the record notified); transport failures
// are reported through the outcome and the record is left for retry.
func (d *Dispatcher) Deliver(ctx context.Context, rec StatusRecord) (DeliveryOutcome, error) {
	outcome, sendErr := d.transport.Send(ctx, d.Compose(rec))
	switch outcome {
	case OutcomeSent:
		if err := d.store.MarkNotified(ctx, rec.ID); err != nil {
			// The email went out but the flag did not stick; the next
			// reconciliation sweep will re-send. Duplicates are accepted
			// over silently dropped notifications.
			return outcome, fmt.Errorf("mark record %d notified: %w", rec.ID, err)
		}
		d.logger.Info("notification delivered",
			zap.Int64("record_id", rec.ID),
			zap.String("item", rec.Key()),
			zap.String("to", d.cfg.Recipient),
		)
	case OutcomeAuthFailed:
		// Will not self-heal on retry; flag loudly but leave the record
		// unnotified so it goes out once credentials are fixed.
		d.logger.Error("transport rejected credentials",
			zap.Int64("record_id", rec.ID),
			zap.String("item", rec.Key()),
			zap.Error(sendErr),
		)
	default:
		d.logger.Warn("notification delivery failed, will retry next run",
			zap.Int64("record_id", rec.ID),
			zap.String("item", rec.Key()),
			zap.Error(sendErr),
		)
	}
	return outcome, nil
}

// Compose renders the notification message for a record.
func (d *Dispatcher) Compose(rec StatusRecord) Message {
	body := fmt.Sprintf(
		"%s LN vol.%s translation status has changed!\n"+
			"Current status is: %s\n\n"+
			"If you want to directly access the website, here is link:\n"+
			"%s\n\n"+
			"Have a great day!\n"+
			"%s",
		rec.Title, rec.Volume, rec.Status, d.cfg.PageURL, d.cfg.ServiceName,
	)
	return Message{
		To:      d.cfg.Recipient,
		Subject: fmt.Sprintf("%s status has changed!", rec.Title),
		Body:    body,
	}
}
