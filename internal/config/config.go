package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketdata/internal/fx"
	"marketdata/internal/httpx"
	"marketdata/internal/provider/yahoo"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type HTTP struct {
	TimeoutSec int    `json:"timeout_sec"`
	UserAgent  string `json:"user_agent"`
}

type Yahoo struct {
	BaseURL string `json:"base_url"`
	// Timezone names the IANA zone in which chart timestamps become days.
	// Empty means the process local zone.
	Timezone              string `json:"timezone"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
}

type Rates struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

type Log struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

type Config struct {
	Server Server `json:"server"`
	HTTP   HTTP   `json:"http"`
	Yahoo  Yahoo  `json:"yahoo"`
	Rates  Rates  `json:"rates"`
	Log    Log    `json:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 30},
		HTTP: HTTP{
			TimeoutSec: int(httpx.DefaultTimeout / time.Second),
			UserAgent:  httpx.BrowserUserAgent,
		},
		Yahoo: Yahoo{
			BaseURL:              yahoo.DefaultBaseURL,
			MaxRequestsPerMinute: 60,
			Burst:                5,
		},
		Rates: Rates{URL: fx.DefaultURL, FileName: fx.DefaultFileName},
		Log:   Log{Level: "info"},
	}
}

// Load reads JSON config from path. If path is empty, config.json in the
// working directory is used when present; otherwise defaults apply. A .env
// file is loaded into the environment first, and environment variables
// override the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	envInt("HTTP_TIMEOUT_SEC", 1, &cfg.HTTP.TimeoutSec)
	if v := os.Getenv("HTTP_USER_AGENT"); v != "" {
		cfg.HTTP.UserAgent = v
	}

	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("YAHOO_TIMEZONE"); v != "" {
		cfg.Yahoo.Timezone = v
	}
	envInt("YAHOO_MAX_RPM", 0, &cfg.Yahoo.MaxRequestsPerMinute)
	envInt("YAHOO_BURST", 1, &cfg.Yahoo.Burst)
	envInt("YAHOO_MIN_INTERVAL_SEC", 0, &cfg.Yahoo.MinRequestIntervalSec)

	if v := os.Getenv("RATES_URL"); v != "" {
		cfg.Rates.URL = v
	}
	if v := os.Getenv("RATES_FILE_NAME"); v != "" {
		cfg.Rates.FileName = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Log.Pretty = true
		case "0", "false", "no", "n":
			cfg.Log.Pretty = false
		}
	}
}

// envInt sets *dst from the named variable when it parses as an integer no
// smaller than min. Anything else leaves *dst alone.
func envInt(name string, min int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err != nil {
		return
	}
	if x >= min {
		*dst = x
	}
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.Server.RequestTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout_sec must be positive, got %d", c.Server.RequestTimeoutSec))
	}
	if c.HTTP.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout_sec must be positive, got %d", c.HTTP.TimeoutSec))
	}
	if c.Yahoo.BaseURL == "" {
		errs = append(errs, errors.New("yahoo.base_url is empty"))
	}
	if c.Yahoo.MaxRequestsPerMinute < 0 || c.Yahoo.MinRequestIntervalSec < 0 {
		errs = append(errs, errors.New("yahoo rate limits must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Rates.URL == "" || c.Rates.FileName == "" {
		errs = append(errs, errors.New("rates.url and rates.file_name are required"))
	}
	return errors.Join(errs...)
}

// Location resolves Yahoo.Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Yahoo.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Yahoo.Timezone)
	if err != nil {
		return nil, fmt.Errorf("yahoo.timezone: %w", err)
	}
	return loc, nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSec) * time.Second
}

func (c Config) YahooMinInterval() time.Duration {
	return time.Duration(c.Yahoo.MinRequestIntervalSec) * time.Second
}
