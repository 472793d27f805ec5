package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/accum"
	"github.com/kjstillabower/gauge-data-service/internal/config"
	"github.com/kjstillabower/gauge-data-service/internal/forecast"
	"github.com/kjstillabower/gauge-data-service/internal/models"
	"github.com/kjstillabower/gauge-data-service/internal/observability"
	"github.com/kjstillabower/gauge-data-service/internal/snapshot"
)

// Publisher ships a serialized document to the configured sinks.
type Publisher interface {
	Publish(ctx context.Context, body []byte, generated time.Time) int
}

// ForecastSource supplies the cached scroller text.
type ForecastSource interface {
	Current(now time.Time) string
}

// Engine owns all accumulator state (single writer) and runs the consumer
// loop: drain queue, update accumulators, gate on the minimum publish
// interval, build and fan out a snapshot.
type Engine struct {
	cfg      *config.Config
	queue    *Queue
	buffer   *accum.Buffer
	windrose *accum.Windrose
	builder  *snapshot.Builder
	pub      Publisher
	fc       ForecastSource
	contact  *linkQuality
	logger   *zap.Logger

	lastPublish time.Time
	dayEnd      time.Time

	now func() time.Time

	condMu  sync.RWMutex
	cond    forecast.Conditions
	condSet bool
}

// New assembles an Engine from validated configuration.
func New(cfg *config.Config, builder *snapshot.Builder, pub Publisher, fc ForecastSource, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:   cfg,
		queue: NewQueue(cfg.QueueCapacity),
		buffer: accum.NewBuffer(accum.BufferConfig{
			Manifest:    cfg.Manifest,
			Histories:   cfg.Histories,
			WindHistory: cfg.WindHistory,
		}),
		windrose: accum.NewWindrose(cfg.WindrosePoints, cfg.WindrosePeriod),
		builder:  builder,
		pub:      pub,
		fc:       fc,
		contact:  newLinkQuality(cfg.ContactField, cfg.IgnoreLostContact),
		logger:   logger,
		now:      time.Now,
	}
}

// OfferSample enqueues a loop sample without blocking the producer.
func (e *Engine) OfferSample(s models.Sample) { e.offer(s) }

// OfferSummary enqueues an archive summary without blocking the producer.
func (e *Engine) OfferSummary(s models.ArchiveSummary) { e.offer(s) }

// Offer enqueues an arbitrary inbound item. Items that are neither samples
// nor summaries are counted and skipped by the consumer loop.
func (e *Engine) Offer(v any) { e.offer(v) }

func (e *Engine) offer(v any) {
	if e.queue.Enqueue(v) {
		observability.SamplesDroppedTotal.Inc()
	}
	observability.QueueDepth.Set(float64(e.queue.Len()))
}

// Run executes the consumer loop until ctx is cancelled, then drains and
// publishes one final snapshot within the shutdown grace period.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MinPublishInterval)
	defer ticker.Stop()

	e.logger.Info("engine started",
		zap.Duration("minPublishInterval", e.cfg.MinPublishInterval),
		zap.Int("queueCapacity", e.cfg.QueueCapacity))

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.queue.Wake():
			e.process(false)
		case <-ticker.C:
			e.process(false)
		}
	}
}

// shutdown drains whatever is queued and emits a final best-effort
// snapshot. In-flight network publications past the grace period are
// abandoned.
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownGrace)
	defer cancel()

	e.drainAndUpdate()
	e.publishSnapshot(ctx, e.now())
	e.logger.Info("engine stopped")
}

// process runs one Draining -> Updating -> Gate -> Publishing pass.
func (e *Engine) process(force bool) {
	e.drainAndUpdate()

	now := e.now()
	if !force && now.Sub(e.lastPublish) < e.cfg.MinPublishInterval {
		return
	}
	e.publishSnapshot(context.Background(), now)
}

func (e *Engine) drainAndUpdate() {
	items := e.queue.Drain()
	observability.QueueDepth.Set(0)

	for _, item := range items {
		switch v := item.(type) {
		case models.Sample:
			e.applySample(v)
		case models.ArchiveSummary:
			e.buffer.Reseed(v)
			observability.SummariesConsumedTotal.Inc()
		default:
			observability.MalformedItemsTotal.Inc()
			e.logger.Warn("skipping malformed inbound item", zap.Any("item", item))
		}
	}
}

func (e *Engine) applySample(s models.Sample) {
	e.checkRollover(s.Timestamp)
	e.buffer.AddSample(s)
	e.windrose.Add(s.Observations[accum.ObsWindSpeed], s.Observations[accum.ObsWindDir], s.Timestamp)
	e.contact.observe(s)
	e.updateConditions(s.Timestamp)
	observability.SamplesConsumedTotal.Inc()
}

// checkRollover resets the day statistics when a sample timestamp falls
// past the end of the current local day. Driven by sample time, not wall
// clock, so an idle station cannot cause a missed rollover.
func (e *Engine) checkRollover(ts time.Time) {
	local := ts.In(e.cfg.Timezone)
	if !e.dayEnd.IsZero() && local.Before(e.dayEnd) {
		return
	}
	if !e.dayEnd.IsZero() {
		e.buffer.StartOfDayReset()
		e.logger.Info("day rollover", zap.Time("newDay", local))
	}
	y, m, d := local.Date()
	e.dayEnd = time.Date(y, m, d+1, 0, 0, 0, 0, e.cfg.Timezone)
}

// updateConditions publishes the current pressure, its 3 hour trend and
// the average wind direction for the forecast goroutine to read.
func (e *Engine) updateConditions(now time.Time) {
	baro := e.buffer.Scalar("barometer")
	level, ok := baro.Last()
	if !ok {
		return
	}
	then, ok := baro.ValueAt(now.Add(-3*time.Hour), 10*time.Minute)
	if !ok {
		return
	}
	cond := forecast.Conditions{Pressure: level, Trend: level - then}
	if _, dir, ok := e.buffer.Wind().HistoryVecAvg(now, e.cfg.WindHistory); ok {
		d := dir
		cond.WindDir = &d
	}

	e.condMu.Lock()
	e.cond = cond
	e.condSet = true
	e.condMu.Unlock()
}

// Conditions is a forecast.ConditionsFunc backed by the engine's buffer
// state. Safe to call from the forecast refresher goroutine.
func (e *Engine) Conditions(_ time.Time) (forecast.Conditions, bool) {
	e.condMu.RLock()
	defer e.condMu.RUnlock()
	return e.cond, e.condSet
}

func (e *Engine) publishSnapshot(ctx context.Context, now time.Time) {
	start := time.Now()

	doc := e.builder.Build(snapshot.Input{
		Now:         now,
		Buffer:      e.buffer,
		Windrose:    e.windrose.Snapshot(now),
		Forecast:    e.fc.Current(now),
		ContactLost: e.contact.contactLost(),
	})
	body, err := doc.Marshal()
	if err != nil {
		// Build failure must not suppress the next attempt.
		e.logger.Error("snapshot marshal failed", zap.Error(err))
		return
	}
	e.lastPublish = now
	observability.PublishesTotal.Inc()

	delivered := e.pub.Publish(ctx, body, now)
	observability.PublishDuration.Observe(time.Since(start).Seconds())
	if delivered > 0 {
		observability.LastPublishTimestamp.Set(float64(now.Unix()))
	}
	e.logger.Debug("snapshot published",
		zap.Int("bytes", len(body)),
		zap.Int("sinksDelivered", delivered))
}
