package broadcast

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	"szenai/internal/metrics"
	"szenai/internal/privacy"
)

// Fanout publishes every event to each of its publishers in order. A failing
// publisher does not stop the others.
type Fanout struct {
	publishers []Publisher
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	mask       privacy.Masker
}

func NewFanout(logger *logrus.Logger, m *metrics.Metrics, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fanout{
		publishers: publishers,
		logger:     logger,
		metrics:    m,
	}
}

// WithVerboseLogging disables id masking in log entries.
func (f *Fanout) WithVerboseLogging(verbose bool) *Fanout {
	f.mask = privacy.Masker{Verbose: verbose}
	return f
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				constants.LogFieldEvent:     event.Type,
				constants.LogFieldChatID:    f.mask.ChatID(event.ChatID),
				constants.LogFieldMessageID: f.mask.MessageID(event.MessageID),
			}).Warn("Failed to publish event")
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	f.metrics.EventPublished(event.Type, err)
	return err
}
