// Package snapshot assembles the published gauge document from the
// engine's accumulator state. Build is a pure read: it never mutates the
// buffer, and it always emits the full field set so the consuming
// dashboard sees a stable schema with sentinels where data is missing.
package snapshot

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/gauge-data-service/internal/accum"
	"github.com/kjstillabower/gauge-data-service/internal/models"
)

// Document is the outbound snapshot. Marshalling a map gives lexicographic
// key order and minimal whitespace, which the consuming dashboard relies on.
type Document map[string]any

// Marshal serializes the document.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Options controls formatting and derivation.
type Options struct {
	// Timezone for local date/time fields.
	Timezone *time.Location
	// DateFormat and TimeFormat are Go layouts for the date and
	// time-of-extreme fields.
	DateFormat string
	TimeFormat string
	// FieldRemap renames output fields after assembly.
	FieldRemap map[string]string
	// RainRateSmoothing is the trailing window averaged for the rrate field.
	RainRateSmoothing time.Duration
	// WindHistory is the trailing window for wspeed, wgust and the bearing
	// range, normally 10 minutes.
	WindHistory time.Duration
	// Version and Build are reported verbatim.
	Version string
	Build   string
}

// Input is the engine state a document is derived from.
type Input struct {
	Now         time.Time
	Buffer      *accum.Buffer
	Windrose    []float64
	Forecast    string
	ContactLost bool
}

// Builder derives documents from engine state.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder.
func NewBuilder(opts Options) *Builder {
	if opts.Timezone == nil {
		opts.Timezone = time.Local
	}
	if opts.DateFormat == "" {
		opts.DateFormat = "2006/01/02"
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04"
	}
	if opts.WindHistory <= 0 {
		opts.WindHistory = 10 * time.Minute
	}
	return &Builder{opts: opts}
}

// Gauges protocol version expected by the dashboard.
const gaugesVersion = "14"

const rainTipLayout = "2006-01-02 15:04:05"

// Build assembles a complete document as of in.Now.
func (b *Builder) Build(in Input) Document {
	now := in.Now.In(b.opts.Timezone)
	buf := in.Buffer
	doc := Document{}

	doc["ver"] = gaugesVersion
	doc["version"] = b.opts.Version
	doc["build"] = b.opts.Build
	doc["timeUTC"] = in.Now.UTC().Format("2006,01,02,15,04,05")
	doc["date"] = now.Format(b.opts.DateFormat)
	doc["dateFormat"] = dashboardDateFormat(b.opts.DateFormat)

	b.unitLabels(doc, buf.Units())

	b.scalarGroup(doc, buf, "outTemp", scalarFields{
		last: "temp", lo: "tempTL", hi: "tempTH", loTime: "TtempTL", hiTime: "TtempTH", prec: 1,
	})
	b.scalarGroup(doc, buf, "outHumidity", scalarFields{
		last: "hum", lo: "humTL", hi: "humTH", loTime: "ThumTL", hiTime: "ThumTH", prec: 0,
	})
	b.scalarGroup(doc, buf, "barometer", scalarFields{
		last: "press", lo: "pressTL", hi: "pressTH", loTime: "TpressTL", hiTime: "TpressTH", prec: 1,
	})

	doc["intemp"] = b.lastValue(buf, "inTemp", 1)
	doc["inhum"] = b.lastValue(buf, "inHumidity", 0)
	doc["dew"] = b.lastValue(buf, "dewpoint", 1)
	doc["apptemp"] = b.lastValue(buf, "appTemp", 1)
	doc["wchill"] = b.lastValue(buf, "windchill", 1)
	doc["heatindex"] = b.lastValue(buf, "heatindex", 1)
	doc["humidex"] = b.lastValue(buf, "humidex", 1)
	doc["UV"] = b.lastValue(buf, "UV", 1)
	doc["SolarRad"] = b.lastValue(buf, "radiation", 0)

	doc["temptrend"] = b.trend(buf, "outTemp", time.Hour, in.Now)
	doc["presstrendval"] = b.trend(buf, "barometer", 3*time.Hour, in.Now)

	b.rainFields(doc, buf, in.Now)
	b.windFields(doc, buf, in.Now)

	doc["WindRoseData"] = in.Windrose
	doc["WindRosePoints"] = strconv.Itoa(len(in.Windrose))

	if in.ContactLost {
		doc["SensorContactLost"] = "1"
	} else {
		doc["SensorContactLost"] = "0"
	}
	doc["forecast"] = in.Forecast

	b.remap(doc)
	return doc
}

// unitLabels emits the per-quantity unit label fields for the declared
// unit system.
func (b *Builder) unitLabels(doc Document, units models.UnitSystem) {
	switch units {
	case models.UnitUS:
		doc["tempunit"] = "F"
		doc["windunit"] = "mph"
		doc["pressunit"] = "inHg"
		doc["rainunit"] = "in"
	case models.UnitMetricWX:
		doc["tempunit"] = "C"
		doc["windunit"] = "m/s"
		doc["pressunit"] = "hPa"
		doc["rainunit"] = "mm"
	default:
		doc["tempunit"] = "C"
		doc["windunit"] = "km/h"
		doc["pressunit"] = "hPa"
		doc["rainunit"] = "mm"
	}
}

type scalarFields struct {
	last, lo, hi   string
	loTime, hiTime string
	prec           int
}

func (b *Builder) scalarGroup(doc Document, buf *accum.Buffer, obs string, f scalarFields) {
	prec := f.prec
	s := buf.Scalar(obs)
	doc[f.last] = b.scalarLast(s, prec)
	if v, ts, ok := s.Min(); ok {
		doc[f.lo] = formatFloat(v, prec)
		doc[f.loTime] = ts.In(b.opts.Timezone).Format(b.opts.TimeFormat)
	} else {
		doc[f.lo] = sentinel(prec)
		doc[f.loTime] = b.sentinelTime()
	}
	if v, ts, ok := s.Max(); ok {
		doc[f.hi] = formatFloat(v, prec)
		doc[f.hiTime] = ts.In(b.opts.Timezone).Format(b.opts.TimeFormat)
	} else {
		doc[f.hi] = sentinel(prec)
		doc[f.hiTime] = b.sentinelTime()
	}
}

func (b *Builder) lastValue(buf *accum.Buffer, obs string, prec int) string {
	return b.scalarLast(buf.Scalar(obs), prec)
}

func (b *Builder) scalarLast(s *accum.Scalar, prec int) string {
	if v, ok := s.Last(); ok {
		return formatFloat(v, prec)
	}
	return sentinel(prec)
}

// trend is the signed change over the given period, taken from trailing
// history. The comparison point may be up to ten minutes off target before
// the trend is considered unknown.
func (b *Builder) trend(buf *accum.Buffer, obs string, period time.Duration, now time.Time) string {
	s := buf.Scalar(obs)
	last, ok := s.Last()
	if !ok {
		return "0.0"
	}
	then, ok := s.ValueAt(now.Add(-period), 10*time.Minute)
	if !ok {
		return "0.0"
	}
	return formatFloat(last-then, 1)
}

func (b *Builder) rainFields(doc Document, buf *accum.Buffer, now time.Time) {
	if total, ok := buf.Scalar("rain").Sum(); ok {
		doc["rfall"] = formatFloat(total, 1)
	} else {
		doc["rfall"] = "0.0"
	}

	rate := buf.Scalar("rainRate")
	if avg, ok := rate.HistoryAvg(now, b.opts.RainRateSmoothing); ok && b.opts.RainRateSmoothing > 0 {
		doc["rrate"] = formatFloat(avg, 1)
	} else {
		doc["rrate"] = b.scalarLast(rate, 1)
	}
	if v, ts, ok := rate.Max(); ok {
		doc["rrateTM"] = formatFloat(v, 1)
		doc["TrrateTM"] = ts.In(b.opts.Timezone).Format(b.opts.TimeFormat)
	} else {
		doc["rrateTM"] = "0.0"
		doc["TrrateTM"] = b.sentinelTime()
	}

	if tip := buf.LastRainTime(); !tip.IsZero() {
		doc["LastRainTipISO"] = tip.In(b.opts.Timezone).Format(rainTipLayout)
	} else {
		doc["LastRainTipISO"] = time.Unix(0, 0).UTC().Format(rainTipLayout)
	}
}

func (b *Builder) windFields(doc Document, buf *accum.Buffer, now time.Time) {
	wind := buf.Wind()

	if mag, dir, hasDir, ok := wind.Last(); ok {
		doc["wlatest"] = formatFloat(mag, 1)
		if hasDir {
			doc["bearing"] = formatFloat(dir, 0)
		} else {
			doc["bearing"] = "0"
		}
	} else {
		doc["wlatest"] = "0.0"
		doc["bearing"] = "0"
	}

	if mag, _, ok := wind.HistoryVecAvg(now, b.opts.WindHistory); ok {
		doc["wspeed"] = formatFloat(mag, 1)
	} else {
		doc["wspeed"] = "0.0"
	}
	if gust, _, ok := wind.HistoryMax(now, b.opts.WindHistory); ok {
		doc["wgust"] = formatFloat(gust, 1)
	} else {
		doc["wgust"] = "0.0"
	}

	if mag, dir, ts, ok := wind.Max(); ok {
		doc["wgustTM"] = formatFloat(mag, 1)
		doc["bearingTM"] = formatFloat(dir, 0)
		doc["TwgustTM"] = ts.In(b.opts.Timezone).Format(b.opts.TimeFormat)
	} else {
		doc["wgustTM"] = "0.0"
		doc["bearingTM"] = "0"
		doc["TwgustTM"] = b.sentinelTime()
	}

	var avgDir float64
	if _, dir, ok := wind.HistoryVecAvg(now, b.opts.WindHistory); ok {
		avgDir = dir
		doc["avgbearing"] = formatFloat(dir, 0)
	} else {
		doc["avgbearing"] = "0"
	}
	from, to := wind.BearingRange(now, b.opts.WindHistory, avgDir)
	doc["BearingRangeFrom10"] = formatFloat(from, 0)
	doc["BearingRangeTo10"] = formatFloat(to, 0)

	_, domDir := wind.DayVecAvg()
	doc["domwinddir"] = accum.DegreeToCompass(domDir)

	if run, ok := buf.Scalar(accum.ObsWindrun).Sum(); ok {
		doc["windrun"] = formatFloat(run, 1)
	} else {
		doc["windrun"] = "0.0"
	}
}

func (b *Builder) remap(doc Document) {
	for from, to := range b.opts.FieldRemap {
		if v, ok := doc[from]; ok {
			delete(doc, from)
			doc[to] = v
		}
	}
}

func (b *Builder) sentinelTime() string {
	return time.Unix(0, 0).UTC().Format(b.opts.TimeFormat)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func sentinel(prec int) string {
	if prec == 0 {
		return "0"
	}
	return "0.0"
}

// dashboardDateFormat converts a Go date layout into the token form the
// dashboard uses to re-parse the date field.
func dashboardDateFormat(layout string) string {
	r := strings.NewReplacer("2006", "y", "06", "y", "01", "m", "02", "d")
	return r.Replace(layout)
}
