// Package accum holds the running-statistics buffers the engine maintains
// over the loop sample stream: scalar and vector accumulators scoped to the
// current local day with optional trailing history, and the windrose
// directional histogram. All state in this package is single-writer: only
// the engine goroutine mutates it.
package accum

import "time"

// obs is one retained history entry.
type obs struct {
	val float64
	ts  time.Time
}

// Scalar accumulates running day statistics for one observation: min/max
// with time-of-extreme, sum/count for averaging, and the last seen value.
// With a non-zero retention it also keeps a trailing history used for
// short-window aggregates (10-minute gust, rain rate smoothing, trends).
//
// Absent values are a first-class state: AddValue(nil, ts) advances
// last-seen bookkeeping and nothing else. Before any value has arrived
// min/max/avg report ok=false, which is distinct from zero.
type Scalar struct {
	min, max         float64
	minTime, maxTime time.Time
	hasMin, hasMax   bool

	sum   float64
	count int

	last     float64
	lastTime time.Time
	hasLast  bool

	lastSeen time.Time

	retention time.Duration
	history   []obs
}

// NewScalar returns a Scalar. retention > 0 enables the trailing history
// with the given maximum entry age.
func NewScalar(retention time.Duration) *Scalar {
	return &Scalar{retention: retention}
}

// AddValue folds a value into the day statistics and the history. A nil
// value only advances last-seen bookkeeping. Comparisons are strict, so a
// tie keeps the earlier time-of-extreme.
func (s *Scalar) AddValue(v *float64, ts time.Time) {
	s.lastSeen = ts
	if v == nil {
		return
	}
	val := *v
	if !s.hasMin || val < s.min {
		s.min = val
		s.minTime = ts
		s.hasMin = true
	}
	if !s.hasMax || val > s.max {
		s.max = val
		s.maxTime = ts
		s.hasMax = true
	}
	s.sum += val
	s.count++
	if !s.hasLast || !ts.Before(s.lastTime) {
		s.last = val
		s.lastTime = ts
		s.hasLast = true
	}
	if s.retention > 0 {
		s.history = append(s.history, obs{val: val, ts: ts})
		s.trimHistory(ts)
	}
}

// Min returns the day minimum and its timestamp.
func (s *Scalar) Min() (float64, time.Time, bool) { return s.min, s.minTime, s.hasMin }

// Max returns the day maximum and its timestamp.
func (s *Scalar) Max() (float64, time.Time, bool) { return s.max, s.maxTime, s.hasMax }

// Avg returns the day running average.
func (s *Scalar) Avg() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum / float64(s.count), true
}

// Sum returns the day running total.
func (s *Scalar) Sum() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum, true
}

// Last returns the most recent value.
func (s *Scalar) Last() (float64, bool) { return s.last, s.hasLast }

// LastTime returns the timestamp of the most recent value.
func (s *Scalar) LastTime() time.Time { return s.lastTime }

// DayReset clears the day statistics at a day boundary. The last value and
// the trailing history survive: the history window may span midnight and the
// last value seeds the new day's first comparison when it is re-reported.
func (s *Scalar) DayReset() {
	s.hasMin = false
	s.hasMax = false
	s.sum = 0
	s.count = 0
}

// Reseed folds authoritative min/max from archive data into the day
// statistics. An authoritative extreme only replaces the buffered one when
// it is stricter, so reseeding is idempotent. nil values leave the
// accumulator untouched; it falls back to the next sample it sees.
func (s *Scalar) Reseed(min, max *float64, minTime, maxTime time.Time) {
	if min != nil && (!s.hasMin || *min < s.min) {
		s.min = *min
		s.minTime = minTime
		s.hasMin = true
	}
	if max != nil && (!s.hasMax || *max > s.max) {
		s.max = *max
		s.maxTime = maxTime
		s.hasMax = true
	}
}

// HistoryMax returns the maximum value within the last age of history,
// searching back from ts.
func (s *Scalar) HistoryMax(ts time.Time, age time.Duration) (float64, time.Time, bool) {
	born := ts.Add(-age)
	var best obs
	found := false
	for _, o := range s.history {
		if o.ts.Before(born) {
			continue
		}
		if !found || o.val > best.val {
			best = o
			found = true
		}
	}
	return best.val, best.ts, found
}

// HistoryAvg returns the mean of history values within the last age,
// searching back from ts.
func (s *Scalar) HistoryAvg(ts time.Time, age time.Duration) (float64, bool) {
	born := ts.Add(-age)
	sum := 0.0
	n := 0
	for _, o := range s.history {
		if o.ts.Before(born) {
			continue
		}
		sum += o.val
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ValueAt returns the history value closest to target, provided it is
// within grace of it. Used for trend deltas (now minus then).
func (s *Scalar) ValueAt(target time.Time, grace time.Duration) (float64, bool) {
	var best obs
	bestDiff := grace + 1
	for _, o := range s.history {
		diff := o.ts.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= grace && diff < bestDiff {
			best = o
			bestDiff = diff
		}
	}
	if bestDiff > grace {
		return 0, false
	}
	return best.val, true
}

func (s *Scalar) trimHistory(ts time.Time) {
	oldest := ts.Add(-s.retention)
	i := 0
	for ; i < len(s.history) && s.history[i].ts.Before(oldest); i++ {
	}
	if i > 0 {
		s.history = append(s.history[:0], s.history[i:]...)
	}
}
