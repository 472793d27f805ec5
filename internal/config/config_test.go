package config

import (
	"strings"
	"testing"
	"time"
)

// TestParse_Defaults verifies an empty config yields the documented
// defaults.
func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse empty config: %v", err)
	}
	if cfg.MinPublishInterval != 10*time.Second {
		t.Fatalf("MinPublishInterval = %v, want 10s", cfg.MinPublishInterval)
	}
	if cfg.QueueCapacity != 32 {
		t.Fatalf("QueueCapacity = %d, want 32", cfg.QueueCapacity)
	}
	if cfg.WindrosePoints != 16 {
		t.Fatalf("WindrosePoints = %d, want 16", cfg.WindrosePoints)
	}
	if cfg.WindrosePeriod != 24*time.Hour {
		t.Fatalf("WindrosePeriod = %v, want 24h", cfg.WindrosePeriod)
	}
	if cfg.ForecastSource != ForecastText {
		t.Fatalf("ForecastSource = %q, want %q", cfg.ForecastSource, ForecastText)
	}
	if cfg.FileName != "gauge-data.txt" {
		t.Fatalf("FileName = %q, want gauge-data.txt", cfg.FileName)
	}
	if len(cfg.Manifest) == 0 {
		t.Fatalf("Manifest empty, want defaults")
	}
}

// TestParse_Overrides verifies YAML values land in the Config.
func TestParse_Overrides(t *testing.T) {
	yaml := `
engine:
  min_publish_interval: 5s
  queue_capacity: 8
windrose:
  period: 6h
  points: 8
snapshot:
  field_remap:
    temp: outsideTemp
sinks:
  http:
    enabled: true
    url: http://example.com/gauge
    interval: 30s
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MinPublishInterval != 5*time.Second {
		t.Fatalf("MinPublishInterval = %v, want 5s", cfg.MinPublishInterval)
	}
	if cfg.QueueCapacity != 8 {
		t.Fatalf("QueueCapacity = %d, want 8", cfg.QueueCapacity)
	}
	if cfg.WindrosePeriod != 6*time.Hour || cfg.WindrosePoints != 8 {
		t.Fatalf("windrose = (%v, %d), want (6h, 8)", cfg.WindrosePeriod, cfg.WindrosePoints)
	}
	if cfg.FieldRemap["temp"] != "outsideTemp" {
		t.Fatalf("FieldRemap[temp] = %q, want outsideTemp", cfg.FieldRemap["temp"])
	}
	if !cfg.HTTPEnabled || cfg.HTTPURL != "http://example.com/gauge" || cfg.HTTPInterval != 30*time.Second {
		t.Fatalf("http sink = (%v, %q, %v)", cfg.HTTPEnabled, cfg.HTTPURL, cfg.HTTPInterval)
	}
}

// TestParse_Invalid verifies configuration errors fail fast with a
// descriptive message.
func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "windrose points not dividing 360",
			yaml: "windrose:\n  points: 7\n",
			want: "windrose.points",
		},
		{
			name: "unknown forecast source",
			yaml: "forecast:\n  source: magic\n",
			want: "forecast.source",
		},
		{
			name: "api source without url",
			yaml: "forecast:\n  source: api\n",
			want: "forecast.api_url",
		},
		{
			name: "http sink without url",
			yaml: "sinks:\n  http:\n    enabled: true\n",
			want: "sinks.http.url",
		},
		{
			name: "rsync sink without server",
			yaml: "sinks:\n  rsync:\n    enabled: true\n",
			want: "sinks.rsync",
		},
		{
			name: "bad timezone",
			yaml: "engine:\n  timezone: Mars/Olympus\n",
			want: "engine.timezone",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("Parse accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
