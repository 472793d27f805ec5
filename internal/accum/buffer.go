package accum

import (
	"time"

	"github.com/kjstillabower/gauge-data-service/internal/models"
)

// Observation names with special handling in the buffer.
const (
	ObsWindSpeed = "windSpeed"
	ObsWindDir   = "windDir"
	ObsWindGust  = "windGust"
	ObsWindrun   = "windrun"
	ObsRain      = "rain"
)

// BufferConfig configures which observations are buffered and which carry a
// trailing history.
type BufferConfig struct {
	// Manifest lists the observation names to buffer. Unknown names in a
	// sample are ignored.
	Manifest []string
	// Histories maps observation name to trailing history retention.
	// Observations not listed keep day statistics only.
	Histories map[string]time.Duration
	// WindHistory is the retention of the wind vector history, used for the
	// 10-minute average, gust and bearing range.
	WindHistory time.Duration
}

// Buffer owns the per-observation accumulators for the current day. Loop
// samples update it, archive summaries reseed it, and the snapshot builder
// reads it. Only the engine goroutine touches a Buffer.
type Buffer struct {
	manifest map[string]struct{}
	scalars  map[string]*Scalar
	wind     *Vector

	histories   map[string]time.Duration
	windHistory time.Duration

	lastWindTime time.Time
	lastRainTime time.Time
	units        models.UnitSystem
}

// NewBuffer returns a Buffer for the given manifest.
func NewBuffer(cfg BufferConfig) *Buffer {
	b := &Buffer{
		manifest:    make(map[string]struct{}, len(cfg.Manifest)),
		scalars:     make(map[string]*Scalar, len(cfg.Manifest)),
		histories:   cfg.Histories,
		windHistory: cfg.WindHistory,
	}
	for _, name := range cfg.Manifest {
		b.manifest[name] = struct{}{}
	}
	b.wind = NewVector(cfg.WindHistory)
	return b
}

// Scalar returns the accumulator for an observation, creating it on first
// use so observations that appear mid-stream are picked up.
func (b *Buffer) Scalar(name string) *Scalar {
	s, ok := b.scalars[name]
	if !ok {
		s = NewScalar(b.histories[name])
		b.scalars[name] = s
	}
	return s
}

// Wind returns the wind vector accumulator.
func (b *Buffer) Wind() *Vector { return b.wind }

// Units returns the unit system of the buffered values, taken from the
// first sample seen.
func (b *Buffer) Units() models.UnitSystem { return b.units }

// LastRainTime returns the timestamp of the most recent sample with
// non-zero rainfall. Zero time when no rain has been seen.
func (b *Buffer) LastRainTime() time.Time { return b.lastRainTime }

// AddSample applies one loop sample. Absent observations leave their
// accumulators untouched; present ones update normally. windSpeed
// additionally feeds the wind vector and the incremental windrun integral.
func (b *Buffer) AddSample(s models.Sample) {
	if b.units == "" {
		b.units = s.Units
	}
	for name, val := range s.Observations {
		if _, ok := b.manifest[name]; !ok {
			continue
		}
		b.Scalar(name).AddValue(val, s.Timestamp)
		switch name {
		case ObsWindSpeed:
			b.addWind(s, val)
		case ObsRain:
			if val != nil && *val > 0 {
				b.lastRainTime = s.Timestamp
			}
		}
	}
}

// addWind feeds the wind vector and integrates windrun from the speed and
// the elapsed time since the previous windSpeed report.
func (b *Buffer) addWind(s models.Sample, speed *float64) {
	b.wind.AddValue(speed, s.Observations[ObsWindDir], s.Timestamp)
	if speed == nil {
		return
	}
	if !b.lastWindTime.IsZero() {
		dt := s.Timestamp.Sub(b.lastWindTime)
		if dt > 0 {
			run := windrunIncrement(*speed, dt, s.Units)
			b.Scalar(ObsWindrun).AddValue(&run, s.Timestamp)
		}
	}
	b.lastWindTime = s.Timestamp
}

// windrunIncrement converts speed over elapsed time into distance in the
// unit system's distance unit (miles, km, or km for m/s speeds).
func windrunIncrement(speed float64, dt time.Duration, units models.UnitSystem) float64 {
	switch units {
	case models.UnitMetricWX:
		// m/s * seconds = meters
		return speed * dt.Seconds() / 1000.0
	default:
		// mph or km/h * hours
		return speed * dt.Hours()
	}
}

// Reseed folds an archive summary's authoritative aggregates into the
// matching accumulators. Observations absent from the summary are left to
// reseed themselves from subsequent samples.
func (b *Buffer) Reseed(sum models.ArchiveSummary) {
	for name, agg := range sum.Observations {
		if _, ok := b.manifest[name]; !ok {
			continue
		}
		minTime := sum.PeriodStart
		if agg.MinTime != nil {
			minTime = *agg.MinTime
		}
		maxTime := sum.PeriodStart
		if agg.MaxTime != nil {
			maxTime = *agg.MaxTime
		}
		b.Scalar(name).Reseed(agg.Min, agg.Max, minTime, maxTime)
		if name == ObsWindSpeed {
			b.wind.Reseed(agg.Max, maxTime)
		}
	}
}

// StartOfDayReset resets every accumulator's day statistics. Histories are
// kept; they may span the day boundary.
func (b *Buffer) StartOfDayReset() {
	for _, s := range b.scalars {
		s.DayReset()
	}
	b.wind.DayReset()
}
