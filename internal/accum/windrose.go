package accum

import (
	"math"
	"time"
)

// CompassPoints are the ordinal compass point labels, north first.
var CompassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// DegreeToCompass converts a direction in degrees to the nearest ordinal
// compass point label.
func DegreeToCompass(deg float64) string {
	idx := int((normalizeDir(deg)+11.25)/22.5) % len(CompassPoints)
	return CompassPoints[idx]
}

// roseEntry is one retained windrose contribution.
type roseEntry struct {
	sector int
	weight float64
	ts     time.Time
}

// Windrose bins wind speed into N compass sectors over a rolling period.
// Each update adds the sample speed as weight to the sector the wind came
// from; Snapshot evicts entries older than the period and returns the
// per-sector totals. With no entries in the period every sector is zero.
type Windrose struct {
	sectors int
	period  time.Duration
	entries []roseEntry
}

// NewWindrose returns a Windrose with the given sector count (commonly 8 or
// 16) and rolling period.
func NewWindrose(sectors int, period time.Duration) *Windrose {
	return &Windrose{sectors: sectors, period: period}
}

// Sectors returns the configured sector count.
func (w *Windrose) Sectors() int { return w.sectors }

// Add records one wind observation. Ignored when speed or direction is
// absent. Directions outside [0, 360) are normalized first, so 360 and
// out-of-range values from a buggy host fold into a valid sector.
func (w *Windrose) Add(speed, dir *float64, ts time.Time) {
	if speed == nil || dir == nil {
		return
	}
	width := 360.0 / float64(w.sectors)
	sector := int(math.Round(normalizeDir(*dir)/width)) % w.sectors
	w.entries = append(w.entries, roseEntry{sector: sector, weight: *speed, ts: ts})
}

// Snapshot evicts entries older than the period relative to now and returns
// the per-sector weight totals rounded to one decimal place.
func (w *Windrose) Snapshot(now time.Time) []float64 {
	born := now.Add(-w.period)
	i := 0
	for ; i < len(w.entries) && w.entries[i].ts.Before(born); i++ {
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
	rose := make([]float64, w.sectors)
	for _, e := range w.entries {
		// Entries can arrive out of timestamp order, so the prefix prune
		// above is not enough on its own.
		if e.ts.Before(born) {
			continue
		}
		rose[e.sector] += e.weight
	}
	for s := range rose {
		rose[s] = math.Round(rose[s]*10) / 10
	}
	return rose
}
