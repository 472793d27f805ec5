package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Forecast source kinds.
const (
	ForecastZambretti = "zambretti"
	ForecastAPI       = "api"
	ForecastFile      = "file"
	ForecastText      = "text"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	// Engine
	MinPublishInterval time.Duration
	QueueCapacity      int
	ShutdownGrace      time.Duration
	Timezone           *time.Location

	// Buffer
	Manifest    []string
	WindHistory time.Duration
	Histories   map[string]time.Duration

	// Windrose
	WindrosePeriod time.Duration
	WindrosePoints int

	// Snapshot
	DateFormat        string
	TimeFormat        string
	FieldRemap        map[string]string
	RainRateSmoothing time.Duration

	// Link quality
	ContactField      string
	IgnoreLostContact bool

	// Forecast
	ForecastSource     string
	ForecastInterval   time.Duration
	ForecastAPIURL     string
	ForecastAPIKey     string
	ForecastAPITimeout time.Duration
	ForecastFilePath   string
	ForecastText       string
	ForecastSubstitute bool

	// File sink
	FilePath     string
	FileName     string
	FileInterval time.Duration

	// HTTP sink
	HTTPEnabled  bool
	HTTPURL      string
	HTTPTimeout  time.Duration
	HTTPInterval time.Duration

	// Rsync sink
	RsyncEnabled       bool
	RsyncServer        string
	RsyncUser          string
	RsyncPort          int
	RsyncRemotePath    string
	RsyncSSHOptions    string
	RsyncTimeout       time.Duration
	RsyncSkipOlderThan time.Duration
	RsyncInterval      time.Duration

	// Memcached sink
	MemcachedEnabled  bool
	MemcachedAddrs    string
	MemcachedKey      string
	MemcachedTTL      time.Duration
	MemcachedTimeout  time.Duration
	MemcachedInterval time.Duration
}

type fileConfig struct {
	Engine struct {
		MinPublishInterval string `yaml:"min_publish_interval"`
		QueueCapacity      int    `yaml:"queue_capacity"`
		ShutdownGrace      string `yaml:"shutdown_grace"`
		Timezone           string `yaml:"timezone"`
	} `yaml:"engine"`

	Buffer struct {
		Manifest    []string          `yaml:"manifest"`
		WindHistory string            `yaml:"wind_history"`
		Histories   map[string]string `yaml:"histories"`
	} `yaml:"buffer"`

	Windrose struct {
		Period string `yaml:"period"`
		Points int    `yaml:"points"`
	} `yaml:"windrose"`

	Snapshot struct {
		DateFormat        string            `yaml:"date_format"`
		TimeFormat        string            `yaml:"time_format"`
		FieldRemap        map[string]string `yaml:"field_remap"`
		RainRateSmoothing string            `yaml:"rain_rate_smoothing"`
	} `yaml:"snapshot"`

	Contact struct {
		Field  string `yaml:"field"`
		Ignore *bool  `yaml:"ignore_lost_contact"`
	} `yaml:"contact"`

	Forecast struct {
		Source     string `yaml:"source"`
		Interval   string `yaml:"interval"`
		APIURL     string `yaml:"api_url"`
		APITimeout string `yaml:"api_timeout"`
		FilePath   string `yaml:"file_path"`
		Text       string `yaml:"text"`
		Substitute *bool  `yaml:"substitute"`
	} `yaml:"forecast"`

	Sinks struct {
		File struct {
			Path     string `yaml:"path"`
			Name     string `yaml:"name"`
			Interval string `yaml:"interval"`
		} `yaml:"file"`
		HTTP struct {
			Enabled  bool   `yaml:"enabled"`
			URL      string `yaml:"url"`
			Timeout  string `yaml:"timeout"`
			Interval string `yaml:"interval"`
		} `yaml:"http"`
		Rsync struct {
			Enabled       bool   `yaml:"enabled"`
			Server        string `yaml:"server"`
			User          string `yaml:"user"`
			Port          int    `yaml:"port"`
			RemotePath    string `yaml:"remote_path"`
			SSHOptions    string `yaml:"ssh_options"`
			Timeout       string `yaml:"timeout"`
			SkipOlderThan string `yaml:"skip_if_older_than"`
			Interval      string `yaml:"interval"`
		} `yaml:"rsync"`
		Memcached struct {
			Enabled  bool   `yaml:"enabled"`
			Addrs    string `yaml:"addrs"`
			Key      string `yaml:"key"`
			TTL      string `yaml:"ttl"`
			Timeout  string `yaml:"timeout"`
			Interval string `yaml:"interval"`
		} `yaml:"memcached"`
	} `yaml:"sinks"`
}

// defaultManifest lists the observations buffered when the config does not
// name its own set.
var defaultManifest = []string{
	"outTemp", "inTemp", "outHumidity", "inHumidity", "barometer",
	"rain", "rainRate", "windSpeed", "windDir", "windGust",
	"dewpoint", "appTemp", "windchill", "heatindex", "humidex",
	"UV", "radiation",
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// The forecast API key comes from FORECAST_API_KEY env. Call from project
// root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.MinPublishInterval = parseDuration(fc.Engine.MinPublishInterval, 10*time.Second)
	cfg.QueueCapacity = fc.Engine.QueueCapacity
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 32
	}
	cfg.ShutdownGrace = parseDuration(fc.Engine.ShutdownGrace, 5*time.Second)

	tzName := fc.Engine.Timezone
	if tzName == "" {
		tzName = "Local"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone %q: %w", tzName, err)
	}
	cfg.Timezone = loc

	cfg.Manifest = fc.Buffer.Manifest
	if len(cfg.Manifest) == 0 {
		cfg.Manifest = defaultManifest
	}
	cfg.WindHistory = parseDuration(fc.Buffer.WindHistory, 10*time.Minute)
	cfg.Histories = map[string]time.Duration{
		"windSpeed": cfg.WindHistory,
		"windGust":  cfg.WindHistory,
		"windDir":   cfg.WindHistory,
		"rainRate":  cfg.WindHistory,
		// trend sources need a longer reach
		"outTemp":   time.Hour + 10*time.Minute,
		"barometer": 3*time.Hour + 10*time.Minute,
	}
	for name, raw := range fc.Buffer.Histories {
		cfg.Histories[name] = parseDuration(raw, cfg.WindHistory)
	}

	cfg.WindrosePeriod = parseDuration(fc.Windrose.Period, 24*time.Hour)
	cfg.WindrosePoints = fc.Windrose.Points
	if cfg.WindrosePoints == 0 {
		cfg.WindrosePoints = 16
	}

	cfg.DateFormat = fc.Snapshot.DateFormat
	if cfg.DateFormat == "" {
		cfg.DateFormat = "2006/01/02"
	}
	cfg.TimeFormat = fc.Snapshot.TimeFormat
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "15:04"
	}
	cfg.FieldRemap = fc.Snapshot.FieldRemap
	cfg.RainRateSmoothing = parseDuration(fc.Snapshot.RainRateSmoothing, 5*time.Minute)

	cfg.ContactField = fc.Contact.Field
	if cfg.ContactField == "" {
		cfg.ContactField = "rxCheckPercent"
	}
	if fc.Contact.Ignore != nil {
		cfg.IgnoreLostContact = *fc.Contact.Ignore
	}

	cfg.ForecastSource = strings.TrimSpace(strings.ToLower(fc.Forecast.Source))
	if cfg.ForecastSource == "" {
		cfg.ForecastSource = ForecastText
	}
	cfg.ForecastInterval = parseDuration(fc.Forecast.Interval, 30*time.Minute)
	cfg.ForecastAPIURL = fc.Forecast.APIURL
	cfg.ForecastAPIKey = os.Getenv("FORECAST_API_KEY")
	cfg.ForecastAPITimeout = parseDuration(fc.Forecast.APITimeout, 2*time.Second)
	cfg.ForecastFilePath = fc.Forecast.FilePath
	cfg.ForecastText = fc.Forecast.Text
	cfg.ForecastSubstitute = true
	if fc.Forecast.Substitute != nil {
		cfg.ForecastSubstitute = *fc.Forecast.Substitute
	}

	cfg.FilePath = fc.Sinks.File.Path
	if cfg.FilePath == "" {
		cfg.FilePath = "/var/tmp"
	}
	cfg.FileName = fc.Sinks.File.Name
	if cfg.FileName == "" {
		cfg.FileName = "gauge-data.txt"
	}
	cfg.FileInterval = parseDurationOrZero(fc.Sinks.File.Interval, 0)

	cfg.HTTPEnabled = fc.Sinks.HTTP.Enabled
	cfg.HTTPURL = fc.Sinks.HTTP.URL
	cfg.HTTPTimeout = parseDuration(fc.Sinks.HTTP.Timeout, 2*time.Second)
	cfg.HTTPInterval = parseDurationOrZero(fc.Sinks.HTTP.Interval, 0)

	cfg.RsyncEnabled = fc.Sinks.Rsync.Enabled
	cfg.RsyncServer = fc.Sinks.Rsync.Server
	cfg.RsyncUser = fc.Sinks.Rsync.User
	cfg.RsyncPort = fc.Sinks.Rsync.Port
	if cfg.RsyncPort == 0 {
		cfg.RsyncPort = 22
	}
	cfg.RsyncRemotePath = fc.Sinks.Rsync.RemotePath
	cfg.RsyncSSHOptions = fc.Sinks.Rsync.SSHOptions
	if cfg.RsyncSSHOptions == "" {
		cfg.RsyncSSHOptions = "-o ConnectTimeout=1"
	}
	cfg.RsyncTimeout = parseDuration(fc.Sinks.Rsync.Timeout, 5*time.Second)
	cfg.RsyncSkipOlderThan = parseDurationOrZero(fc.Sinks.Rsync.SkipOlderThan, 4*time.Second)
	cfg.RsyncInterval = parseDurationOrZero(fc.Sinks.Rsync.Interval, 0)

	cfg.MemcachedEnabled = fc.Sinks.Memcached.Enabled
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Sinks.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedKey = fc.Sinks.Memcached.Key
	if cfg.MemcachedKey == "" {
		cfg.MemcachedKey = "gauge-data"
	}
	cfg.MemcachedTTL = parseDuration(fc.Sinks.Memcached.TTL, 5*time.Minute)
	cfg.MemcachedTimeout = parseDuration(fc.Sinks.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedInterval = parseDurationOrZero(fc.Sinks.Memcached.Interval, 0)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on
// empty string or parse error. Zero is a valid result (no per-sink limit).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. Configuration errors are the only
// fatal error class in the service, so everything suspect is rejected here
// before the engine starts.
func validate(cfg *Config) error {
	if cfg.MinPublishInterval <= 0 {
		return fmt.Errorf("engine.min_publish_interval must be positive")
	}
	if cfg.WindrosePoints <= 0 || 360%cfg.WindrosePoints != 0 {
		return fmt.Errorf("windrose.points must divide 360 evenly, got %d", cfg.WindrosePoints)
	}
	if cfg.WindrosePeriod <= 0 {
		return fmt.Errorf("windrose.period must be positive")
	}
	switch cfg.ForecastSource {
	case ForecastZambretti, ForecastAPI, ForecastFile, ForecastText:
		// valid
	default:
		return fmt.Errorf("forecast.source must be zambretti, api, file or text, got %q", cfg.ForecastSource)
	}
	if cfg.ForecastSource == ForecastAPI && cfg.ForecastAPIURL == "" {
		return fmt.Errorf("forecast.api_url required when forecast.source is api")
	}
	if cfg.ForecastSource == ForecastFile && cfg.ForecastFilePath == "" {
		return fmt.Errorf("forecast.file_path required when forecast.source is file")
	}
	if cfg.HTTPEnabled && cfg.HTTPURL == "" {
		return fmt.Errorf("sinks.http.url required when sinks.http.enabled")
	}
	if cfg.RsyncEnabled && (cfg.RsyncServer == "" || cfg.RsyncRemotePath == "") {
		return fmt.Errorf("sinks.rsync.server and sinks.rsync.remote_path required when sinks.rsync.enabled")
	}
	return nil
}
