package publish

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/gauge-data-service/internal/circuitbreaker"
	"github.com/kjstillabower/gauge-data-service/internal/observability"
)

type entry struct {
	sink    Sink
	limiter *rate.Limiter
}

// Fanout runs a set of sinks for each publication. Sinks are independent:
// a failure or skip at one is logged and counted but never stops the rest.
type Fanout struct {
	entries []entry
	logger  *zap.Logger
}

// NewFanout builds an empty Fanout.
func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{logger: logger}
}

// Add registers a sink. A positive minInterval rate-limits the sink to at
// most one delivery per interval; zero means every publication is shipped.
func (f *Fanout) Add(s Sink, minInterval time.Duration) {
	var limiter *rate.Limiter
	if minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	f.entries = append(f.entries, entry{sink: s, limiter: limiter})
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int { return len(f.entries) }

// Publish ships body to every registered sink and returns the number of
// sinks that accepted it.
func (f *Fanout) Publish(ctx context.Context, body []byte, generated time.Time) int {
	pub := Publication{
		ID:        uuid.NewString(),
		Timestamp: generated,
		Body:      body,
	}

	delivered := 0
	for _, e := range f.entries {
		name := e.sink.Name()
		if e.limiter != nil && !e.limiter.Allow() {
			observability.RecordSinkSkipped(name)
			continue
		}

		start := time.Now()
		err := e.sink.Publish(ctx, pub)
		switch {
		case err == nil:
			delivered++
			observability.RecordSinkSuccess(name)
			f.logger.Debug("published",
				zap.String("sink", name),
				zap.String("correlationId", pub.ID),
				zap.Duration("took", time.Since(start)))
		case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, ErrStale):
			observability.RecordSinkSkipped(name)
			f.logger.Debug("publication skipped",
				zap.String("sink", name),
				zap.String("correlationId", pub.ID),
				zap.Error(err))
		default:
			observability.RecordSinkFailure(name)
			f.logger.Warn("publication failed",
				zap.String("sink", name),
				zap.String("correlationId", pub.ID),
				zap.Error(err))
		}
	}
	return delivered
}
