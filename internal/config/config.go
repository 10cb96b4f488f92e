package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"novawatch/internal/archive"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/offapi"
	"novawatch/lib/configutil"
)

const DefaultPath = "novawatch.json5"

type Config struct {
	BaseUrl           string  `json:"base_url"`
	UserAgent         string  `json:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	// directory to dump every request/response pair to, for debugging
	DebugHttpDir string `json:"debug_http_dir"`

	Country string `json:"country"`
	// products last modified on or before this date (YYYY-MM-DD) are not fetched
	DateCutoff   string   `json:"date_cutoff"`
	DefaultBrand string   `json:"default_brand"`
	Brands       []string `json:"brands"`
	// IANA zone the status date is computed in, empty means UTC
	Timezone string `json:"timezone"`

	DataDir     string `json:"data_dir"`
	StatusFile  string `json:"status_file"`
	ChartOutput string `json:"chart_output"`

	Archive   archive.Config   `json:"archive"`
	Telemetry telemetry.Config `json:"telemetry"`
}

var defaultBrands = []string{
	"amul", "britannia", "nestle", "dabur", "parle", "patanjali", "haldiram",
	"sunfeast", "heritage", "kellogg's", "cadbury", "maggi", "nandini",
	"aashirvaad", "milky mist", "unibic", "veeba", "yoga bar", "good life", "saffola",
}

func Defaults() Config {
	return Config{
		BaseUrl:           offapi.DefaultBaseUrl,
		UserAgent:         "novawatch/1.0",
		RequestsPerSecond: 2,
		Country:           "India",
		DateCutoff:        "2025-07-21",
		DefaultBrand:      "amul",
		Brands:            append([]string(nil), defaultBrands...),
		DataDir:           "Brands",
		StatusFile:        "README.md",
		ChartOutput:       "Charts/nova_distribution_top20.png",
	}
}

// Load reads the config at path over the defaults, a missing file means
// the defaults are used as is.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfigOver(path, Defaults())
	if errors.Is(err, os.ErrNotExist) {
		cfg = Defaults()
	} else if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Cutoff parses DateCutoff.
func (c Config) Cutoff() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.DateCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("date_cutoff %q: %w", c.DateCutoff, err)
	}
	return t, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Country) == "" {
		errs = append(errs, fmt.Errorf("country must be set"))
	}
	if _, err := c.Cutoff(); err != nil {
		errs = append(errs, err)
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative"))
	}
	for i, b := range c.Brands {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("brands[%d] is empty", i))
		}
	}
	if c.DataDir == "" || c.StatusFile == "" || c.ChartOutput == "" {
		errs = append(errs, fmt.Errorf("data_dir, status_file and chart_output must be set"))
	}
	return errors.Join(errs...)
}
