package models

import "time"

// UnitSystem tags the unit system a sample's values are expressed in.
// Conversion happens upstream in the host engine; this service only carries
// the tag through to the snapshot document's unit label fields.
type UnitSystem string

const (
	UnitUS       UnitSystem = "us"       // F, mph, inHg, in
	UnitMetric   UnitSystem = "metric"   // C, km/h, hPa, mm
	UnitMetricWX UnitSystem = "metricwx" // C, m/s, hPa, mm
)

// Sample is one loop packet: a single high-frequency sensor reading cycle.
// Observation values are optional; a nil value means the sensor did not
// report that observation this cycle, which is a first-class state and never
// an error. A Sample is immutable once constructed.
type Sample struct {
	Timestamp    time.Time
	Units        UnitSystem
	Observations map[string]*float64
}

// Value returns the named observation value, or ok=false when the
// observation is absent from this sample.
func (s Sample) Value(name string) (float64, bool) {
	v, present := s.Observations[name]
	if !present || v == nil {
		return 0, false
	}
	return *v, true
}

// Agg is an authoritative min/max/avg rollup for one observation over an
// archive period. Any member may be nil when the archive holds no data for
// the period. MinTime/MaxTime, when set, carry the time-of-extreme.
type Agg struct {
	Min     *float64
	Max     *float64
	Avg     *float64
	MinTime *time.Time
	MaxTime *time.Time
}

// ArchiveSummary is one archive record rollup: authoritative per-observation
// aggregates over [PeriodStart, PeriodEnd]. Used to reseed accumulators so
// day extrema do not drift when loop samples are sparse.
type ArchiveSummary struct {
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Units        UnitSystem
	Observations map[string]Agg
}

// Float is a convenience for building optional observation values in tests
// and sample generators.
func Float(v float64) *float64 { return &v }
