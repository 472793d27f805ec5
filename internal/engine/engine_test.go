package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/config"
	"github.com/kjstillabower/gauge-data-service/internal/models"
	"github.com/kjstillabower/gauge-data-service/internal/snapshot"
)

func f(v float64) *float64 { return &v }

type countingPublisher struct {
	calls  int
	bodies [][]byte
}

func (p *countingPublisher) Publish(_ context.Context, body []byte, _ time.Time) int {
	p.calls++
	p.bodies = append(p.bodies, body)
	return 1
}

type staticForecast struct{ text string }

func (s staticForecast) Current(time.Time) string { return s.text }

func testConfig() *config.Config {
	return &config.Config{
		MinPublishInterval: 5 * time.Second,
		QueueCapacity:      256,
		ShutdownGrace:      time.Second,
		Timezone:           time.UTC,
		Manifest: []string{
			"outTemp", "outHumidity", "barometer", "rain", "rainRate",
			"windSpeed", "windDir", "rxCheckPercent",
		},
		Histories: map[string]time.Duration{
			"outTemp":   70 * time.Minute,
			"barometer": 190 * time.Minute,
		},
		WindHistory:    10 * time.Minute,
		WindrosePeriod: time.Hour,
		WindrosePoints: 16,
		ContactField:   "rxCheckPercent",
	}
}

func testEngine(cfg *config.Config) (*Engine, *countingPublisher) {
	pub := &countingPublisher{}
	builder := snapshot.NewBuilder(snapshot.Options{Timezone: time.UTC})
	e := New(cfg, builder, pub, staticForecast{text: "fine"}, zap.NewNop())
	return e, pub
}

func sampleAt(ts time.Time, obs map[string]*float64) models.Sample {
	return models.Sample{Timestamp: ts, Units: models.UnitMetric, Observations: obs}
}

// TestEngine_GateCoalescesBurst verifies that a burst of 100 samples inside
// one second yields exactly one publication with a 5 second gate.
func TestEngine_GateCoalescesBurst(t *testing.T) {
	e, pub := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		now := base.Add(time.Duration(i) * 10 * time.Millisecond)
		e.now = func() time.Time { return now }
		e.OfferSample(sampleAt(now, map[string]*float64{"outTemp": f(20)}))
		e.process(false)
	}

	if pub.calls != 1 {
		t.Fatalf("publisher called %d times for a 1s burst, want 1", pub.calls)
	}
}

// TestEngine_PublishesAgainAfterInterval verifies the gate reopens once the
// minimum interval has elapsed.
func TestEngine_PublishesAgainAfterInterval(t *testing.T) {
	e, pub := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	e.now = func() time.Time { return base }
	e.OfferSample(sampleAt(base, map[string]*float64{"outTemp": f(20)}))
	e.process(false)

	later := base.Add(6 * time.Second)
	e.now = func() time.Time { return later }
	e.OfferSample(sampleAt(later, map[string]*float64{"outTemp": f(21)}))
	e.process(false)

	if pub.calls != 2 {
		t.Fatalf("publisher called %d times, want 2", pub.calls)
	}
}

// TestEngine_MalformedItemSkipped verifies an unexpected item type is
// skipped while samples in the same drain still apply.
func TestEngine_MalformedItemSkipped(t *testing.T) {
	e, pub := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.Offer("not a sample")
	e.OfferSample(sampleAt(base, map[string]*float64{"outTemp": f(17.5)}))
	e.process(false)

	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
	if v, ok := e.buffer.Scalar("outTemp").Last(); !ok || v != 17.5 {
		t.Fatalf("outTemp last = %v/%v after malformed item", v, ok)
	}
}

// TestEngine_OutOfRangeWindDirection verifies a sample carrying a negative
// wind direction flows through update and publish without killing the
// consumer loop.
func TestEngine_OutOfRangeWindDirection(t *testing.T) {
	e, pub := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.OfferSample(sampleAt(base, map[string]*float64{
		"windSpeed": f(8.0),
		"windDir":   f(-30.0),
	}))
	e.process(false)

	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
}

// TestEngine_DayRollover verifies a sample past local midnight resets the
// day statistics and seeds min == max from the first new-day sample.
func TestEngine_DayRollover(t *testing.T) {
	e, _ := testEngine(testConfig())
	evening := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	e.now = func() time.Time { return evening }

	e.OfferSample(sampleAt(evening, map[string]*float64{"outTemp": f(3.0)}))
	e.process(false)

	morning := time.Date(2024, time.March, 11, 0, 1, 0, 0, time.UTC)
	e.now = func() time.Time { return morning }
	e.OfferSample(sampleAt(morning, map[string]*float64{"outTemp": f(8.0)}))
	e.process(false)

	s := e.buffer.Scalar("outTemp")
	mn, _, okMin := s.Min()
	mx, _, okMax := s.Max()
	if !okMin || !okMax {
		t.Fatal("day statistics unset after rollover sample")
	}
	if mn != 8.0 || mx != 8.0 {
		t.Fatalf("min/max = %v/%v after rollover, want 8.0/8.0", mn, mx)
	}
}

// TestEngine_ReseedFromSummary verifies archive summaries adopt stricter
// extrema.
func TestEngine_ReseedFromSummary(t *testing.T) {
	e, _ := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.OfferSample(sampleAt(base, map[string]*float64{"outTemp": f(15.0)}))
	e.OfferSummary(models.ArchiveSummary{
		PeriodStart: base.Add(-5 * time.Minute),
		PeriodEnd:   base,
		Units:       models.UnitMetric,
		Observations: map[string]models.Agg{
			"outTemp": {Min: f(9.0), Max: f(18.0)},
		},
	})
	e.process(false)

	s := e.buffer.Scalar("outTemp")
	mn, _, _ := s.Min()
	mx, _, _ := s.Max()
	if mn != 9.0 || mx != 18.0 {
		t.Fatalf("min/max = %v/%v after reseed, want 9.0/18.0", mn, mx)
	}
}

// TestEngine_ShutdownFlushesFinalSnapshot verifies shutdown publishes even
// when the gate has not elapsed.
func TestEngine_ShutdownFlushesFinalSnapshot(t *testing.T) {
	e, pub := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.OfferSample(sampleAt(base, map[string]*float64{"outTemp": f(20)}))
	e.process(false)
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}

	// Still inside the gate window; a plain process must not publish, but
	// shutdown must.
	e.OfferSample(sampleAt(base.Add(time.Second), map[string]*float64{"outTemp": f(21)}))
	e.shutdown()
	if pub.calls != 2 {
		t.Fatalf("publisher called %d times after shutdown, want 2", pub.calls)
	}
}

// TestEngine_ConditionsForForecast verifies pressure trend conditions become
// available once three hours of barometer history exist.
func TestEngine_ConditionsForForecast(t *testing.T) {
	e, _ := testEngine(testConfig())
	base := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)

	if _, ok := e.Conditions(base); ok {
		t.Fatal("conditions available before any sample")
	}

	e.now = func() time.Time { return base }
	e.OfferSample(sampleAt(base, map[string]*float64{"barometer": f(1010.0)}))
	e.process(false)
	if _, ok := e.Conditions(base); ok {
		t.Fatal("conditions available without 3h of history")
	}

	later := base.Add(3 * time.Hour)
	e.now = func() time.Time { return later }
	e.OfferSample(sampleAt(later, map[string]*float64{"barometer": f(1014.0)}))
	e.process(false)

	cond, ok := e.Conditions(later)
	if !ok {
		t.Fatal("conditions unavailable with 3h of history")
	}
	if cond.Pressure != 1014.0 {
		t.Errorf("pressure = %v, want 1014.0", cond.Pressure)
	}
	if cond.Trend != 4.0 {
		t.Errorf("trend = %v, want 4.0", cond.Trend)
	}
}
