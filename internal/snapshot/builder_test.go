package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/gauge-data-service/internal/accum"
	"github.com/kjstillabower/gauge-data-service/internal/models"
)

func f(v float64) *float64 { return &v }

var docFields = []string{
	"ver", "version", "build", "timeUTC", "date", "dateFormat",
	"tempunit", "windunit", "pressunit", "rainunit",
	"temp", "tempTL", "tempTH", "TtempTL", "TtempTH", "temptrend",
	"hum", "humTL", "humTH", "ThumTL", "ThumTH",
	"press", "pressTL", "pressTH", "TpressTL", "TpressTH", "presstrendval",
	"intemp", "inhum", "dew", "apptemp", "wchill", "heatindex", "humidex",
	"UV", "SolarRad",
	"rfall", "rrate", "rrateTM", "TrrateTM", "LastRainTipISO",
	"wlatest", "bearing", "wspeed", "wgust", "wgustTM", "bearingTM",
	"TwgustTM", "avgbearing", "BearingRangeFrom10", "BearingRangeTo10",
	"domwinddir", "windrun", "WindRoseData", "WindRosePoints",
	"SensorContactLost", "forecast",
}

func testBuilder() *Builder {
	return NewBuilder(Options{
		Timezone:          time.UTC,
		RainRateSmoothing: 5 * time.Minute,
		WindHistory:       10 * time.Minute,
		Version:           "1.0.0",
		Build:             "test",
	})
}

func testBuffer() *accum.Buffer {
	return accum.NewBuffer(accum.BufferConfig{
		Manifest: []string{
			"outTemp", "inTemp", "outHumidity", "inHumidity", "barometer",
			"rain", "rainRate", "windSpeed", "windDir",
		},
		Histories: map[string]time.Duration{
			"outTemp":   70 * time.Minute,
			"barometer": 190 * time.Minute,
			"rainRate":  10 * time.Minute,
		},
		WindHistory: 10 * time.Minute,
	})
}

// TestBuild_StableSchemaWhenEmpty verifies every field is present with its
// sentinel before any sample has arrived.
func TestBuild_StableSchemaWhenEmpty(t *testing.T) {
	doc := testBuilder().Build(Input{
		Now:      time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
		Buffer:   testBuffer(),
		Windrose: make([]float64, 16),
	})

	for _, field := range docFields {
		if _, ok := doc[field]; !ok {
			t.Errorf("field %q missing from empty-buffer document", field)
		}
	}
	if got := doc["temp"]; got != "0.0" {
		t.Errorf("temp sentinel = %v, want 0.0", got)
	}
	if got := doc["hum"]; got != "0" {
		t.Errorf("hum sentinel = %v, want 0", got)
	}
	if got := doc["SensorContactLost"]; got != "0" {
		t.Errorf("SensorContactLost = %v, want 0", got)
	}
	if got := doc["LastRainTipISO"]; got != "1970-01-01 00:00:00" {
		t.Errorf("LastRainTipISO sentinel = %v", got)
	}
}

// TestBuild_DerivedFields verifies formatting and derivation over a small
// populated buffer.
func TestBuild_DerivedFields(t *testing.T) {
	buf := testBuffer()
	base := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		buf.AddSample(models.Sample{
			Timestamp: ts,
			Units:     models.UnitMetric,
			Observations: map[string]*float64{
				"outTemp":     f(15.0 + float64(i)),
				"outHumidity": f(60),
				"barometer":   f(1013.2),
				"windSpeed":   f(12.0),
				"windDir":     f(90.0),
				"rain":        f(0.2),
				"rainRate":    f(2.4),
			},
		})
	}
	now := base.Add(9 * time.Minute)

	doc := testBuilder().Build(Input{
		Now:         now,
		Buffer:      buf,
		Windrose:    make([]float64, 16),
		Forecast:    "Fine weather",
		ContactLost: true,
	})

	if got := doc["temp"]; got != "24.0" {
		t.Errorf("temp = %v, want 24.0", got)
	}
	if got := doc["tempTL"]; got != "15.0" {
		t.Errorf("tempTL = %v, want 15.0", got)
	}
	if got := doc["TtempTL"]; got != "06:00" {
		t.Errorf("TtempTL = %v, want 06:00", got)
	}
	if got := doc["tempTH"]; got != "24.0" {
		t.Errorf("tempTH = %v, want 24.0", got)
	}
	if got := doc["hum"]; got != "60" {
		t.Errorf("hum = %v, want 60", got)
	}
	if got := doc["rfall"]; got != "2.0" {
		t.Errorf("rfall = %v, want 2.0", got)
	}
	if got := doc["rrate"]; got != "2.4" {
		t.Errorf("rrate = %v, want 2.4", got)
	}
	if got := doc["wlatest"]; got != "12.0" {
		t.Errorf("wlatest = %v, want 12.0", got)
	}
	if got := doc["bearing"]; got != "90" {
		t.Errorf("bearing = %v, want 90", got)
	}
	if got := doc["domwinddir"]; got != "E" {
		t.Errorf("domwinddir = %v, want E", got)
	}
	if got := doc["windunit"]; got != "km/h" {
		t.Errorf("windunit = %v, want km/h", got)
	}
	if got := doc["SensorContactLost"]; got != "1" {
		t.Errorf("SensorContactLost = %v, want 1", got)
	}
	if got := doc["forecast"]; got != "Fine weather" {
		t.Errorf("forecast = %v", got)
	}
	// Steady wind means a steady run: 12 km/h for 9 minutes.
	if got := doc["windrun"]; got != "1.8" {
		t.Errorf("windrun = %v, want 1.8", got)
	}
}

// TestBuild_Trend verifies the temperature trend is the change against the
// value an hour back.
func TestBuild_Trend(t *testing.T) {
	buf := testBuffer()
	base := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)

	buf.AddSample(models.Sample{
		Timestamp:    base,
		Units:        models.UnitMetric,
		Observations: map[string]*float64{"outTemp": f(10.0)},
	})
	now := base.Add(time.Hour)
	buf.AddSample(models.Sample{
		Timestamp:    now,
		Units:        models.UnitMetric,
		Observations: map[string]*float64{"outTemp": f(12.5)},
	})

	doc := testBuilder().Build(Input{Now: now, Buffer: buf, Windrose: make([]float64, 16)})
	if got := doc["temptrend"]; got != "2.5" {
		t.Errorf("temptrend = %v, want 2.5", got)
	}
}

// TestBuild_FieldRemap verifies remapping renames output fields last.
func TestBuild_FieldRemap(t *testing.T) {
	b := NewBuilder(Options{
		Timezone:   time.UTC,
		FieldRemap: map[string]string{"temp": "outsideTemp"},
	})
	doc := b.Build(Input{Now: time.Now(), Buffer: testBuffer(), Windrose: make([]float64, 16)})
	if _, ok := doc["temp"]; ok {
		t.Error("temp still present after remap")
	}
	if _, ok := doc["outsideTemp"]; !ok {
		t.Error("outsideTemp missing after remap")
	}
}

// TestDocument_MarshalOrderedAndCompact verifies serialized documents are
// key-sorted and whitespace-minimal.
func TestDocument_MarshalOrderedAndCompact(t *testing.T) {
	doc := testBuilder().Build(Input{
		Now:      time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
		Buffer:   testBuffer(),
		Windrose: make([]float64, 16),
	})
	raw, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(raw)

	if !strings.HasPrefix(out, `{"BearingRangeFrom10":`) {
		t.Errorf("output not key-sorted, starts with %q", out[:40])
	}
	if strings.Contains(out, ": ") || strings.Contains(out, ", ") {
		t.Error("output contains whitespace separators")
	}
}
