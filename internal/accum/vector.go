package accum

import (
	"math"
	"time"
)

// vecObs is one retained vector history entry.
type vecObs struct {
	mag float64
	dir float64
	ts  time.Time
}

// Vector accumulates running day statistics for a magnitude+direction
// observation (wind). On top of the scalar stats it keeps x/y component
// sums for the day dominant direction and a trailing history for the
// 10-minute average, gust and bearing range.
type Vector struct {
	min, max         float64
	minTime, maxTime time.Time
	maxDir           float64
	hasMaxDir        bool
	hasMin, hasMax   bool

	xsum, ysum float64
	sumTime    time.Duration

	lastMag  float64
	lastDir  float64
	hasDir   bool
	lastTime time.Time
	hasLast  bool

	retention time.Duration
	history   []vecObs
}

// NewVector returns a Vector with the given trailing history retention.
func NewVector(retention time.Duration) *Vector {
	return &Vector{retention: retention}
}

// AddValue folds a magnitude and optional direction into the statistics.
// A nil magnitude advances nothing; a nil direction still updates the
// scalar stats but is excluded from the component sums and the history.
func (v *Vector) AddValue(mag, dir *float64, ts time.Time) {
	if mag == nil {
		return
	}
	m := *mag
	if !v.hasMin || m < v.min {
		v.min = m
		v.minTime = ts
		v.hasMin = true
	}
	if !v.hasMax || m > v.max {
		v.max = m
		v.maxTime = ts
		v.hasMax = true
		if dir != nil {
			v.maxDir = *dir
			v.hasMaxDir = true
		} else {
			v.hasMaxDir = false
		}
	}
	if v.hasLast {
		v.sumTime += ts.Sub(v.lastTime)
	}
	if dir != nil {
		rad := (90.0 - *dir) * math.Pi / 180.0
		v.xsum += m * math.Cos(rad)
		v.ysum += m * math.Sin(rad)
	}
	if !v.hasLast || !ts.Before(v.lastTime) {
		v.lastMag = m
		if dir != nil {
			v.lastDir = *dir
			v.hasDir = true
		}
		v.lastTime = ts
		v.hasLast = true
	}
	if v.retention > 0 && dir != nil {
		v.history = append(v.history, vecObs{mag: m, dir: *dir, ts: ts})
		v.trimHistory(ts)
	}
}

// Max returns the day maximum magnitude, the direction it arrived from and
// its timestamp.
func (v *Vector) Max() (mag float64, dir float64, ts time.Time, ok bool) {
	return v.max, v.maxDir, v.maxTime, v.hasMax
}

// Last returns the most recent magnitude and direction.
func (v *Vector) Last() (mag float64, dir float64, hasDir bool, ok bool) {
	return v.lastMag, v.lastDir, v.hasDir, v.hasLast
}

// DayReset clears the day statistics, preserving the trailing history and
// the last value.
func (v *Vector) DayReset() {
	v.hasMin = false
	v.hasMax = false
	v.hasMaxDir = false
	v.xsum = 0
	v.ysum = 0
	v.sumTime = 0
}

// Reseed folds an authoritative day maximum in, keeping the stricter value.
func (v *Vector) Reseed(max *float64, maxTime time.Time) {
	if max != nil && (!v.hasMax || *max > v.max) {
		v.max = *max
		v.maxTime = maxTime
		v.hasMax = true
		v.hasMaxDir = false
	}
}

// DayVecAvg returns the day average vector. Direction is in [0, 360).
// With no elapsed time accumulated both components are zero.
func (v *Vector) DayVecAvg() (mag float64, dir float64) {
	secs := v.sumTime.Seconds()
	if secs == 0 {
		return 0, 0
	}
	mag = math.Sqrt(v.xsum*v.xsum+v.ysum*v.ysum) / secs
	dir = normalizeDir(90.0 - math.Atan2(v.ysum, v.xsum)*180.0/math.Pi)
	return mag, dir
}

// HistoryVecAvg returns the vector average over the last period of history,
// searching back from now. ok is false when the window is empty.
func (v *Vector) HistoryVecAvg(now time.Time, period time.Duration) (mag float64, dir float64, ok bool) {
	born := now.Add(-period)
	var xsum, ysum float64
	oldest := now
	n := 0
	for _, o := range v.history {
		if o.ts.Before(born) {
			continue
		}
		rad := (90.0 - o.dir) * math.Pi / 180.0
		xsum += o.mag * math.Cos(rad)
		ysum += o.mag * math.Sin(rad)
		if o.ts.Before(oldest) {
			oldest = o.ts
		}
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	secs := now.Sub(oldest).Seconds()
	if secs > 0 {
		mag = math.Sqrt(xsum*xsum+ysum*ysum) / secs
	}
	dir = normalizeDir(90.0 - math.Atan2(ysum, xsum)*180.0/math.Pi)
	return mag, dir, true
}

// HistoryMax returns the maximum magnitude within the last age of history.
func (v *Vector) HistoryMax(ts time.Time, age time.Duration) (float64, time.Time, bool) {
	born := ts.Add(-age)
	var best vecObs
	found := false
	for _, o := range v.history {
		if o.ts.Before(born) {
			continue
		}
		if !found || o.mag > best.mag {
			best = o
			found = true
		}
	}
	return best.mag, best.ts, found
}

// BearingRange returns the lowest and highest bearing seen over the last
// period, expressed relative to avgDir so the range behaves across the
// 0/360 wrap. Both are zero when the window is empty.
func (v *Vector) BearingRange(now time.Time, period time.Duration, avgDir float64) (from, to float64) {
	born := now.Add(-period)
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	found := false
	for _, o := range v.history {
		if o.ts.Before(born) {
			continue
		}
		off := toPlusMinus(o.dir - avgDir)
		if off < lo {
			lo = off
		}
		if off > hi {
			hi = off
		}
		found = true
	}
	if !found {
		return 0, 0
	}
	return normalizeDir(lo + avgDir), normalizeDir(hi + avgDir)
}

func (v *Vector) trimHistory(ts time.Time) {
	oldest := ts.Add(-v.retention)
	i := 0
	for ; i < len(v.history) && v.history[i].ts.Before(oldest); i++ {
	}
	if i > 0 {
		v.history = append(v.history[:0], v.history[i:]...)
	}
}

// toPlusMinus maps a 0..360 degree offset into -180..+180.
func toPlusMinus(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}

// normalizeDir maps a direction into [0, 360).
func normalizeDir(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}
