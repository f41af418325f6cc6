package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dev/bravebird/airline-entry/pkg/models"
)

// TaskQueue is the Temporal task queue shared by the worker and the API
const TaskQueue = "airline-entry"

// Config holds everything the entry binaries need
type Config struct {
	Search          models.SearchParams   `yaml:"search"`
	Form            models.FormSelectors  `yaml:"form"`
	Timing          models.Timing         `yaml:"timing"`
	ResultsSelector models.Selector       `yaml:"results_selector"`
	Browser         models.BrowserOptions `yaml:"browser"`
	Output          models.OutputOptions  `yaml:"output"`

	TemporalHost string `yaml:"temporal_host"`
	MySQLDSN     string `yaml:"mysql_dsn"`
	Port         string `yaml:"port"`
	Debug        bool   `yaml:"debug"`
}

// Default returns the configuration of the DFW -> NRT entry test
func Default() *Config {
	return &Config{
		Search:          models.DefaultSearchParams(),
		Form:            models.DefaultFormSelectors(),
		Timing:          models.DefaultTiming(),
		ResultsSelector: models.Selector{By: models.ByTag, Value: "body"},
		Browser: models.BrowserOptions{
			Headless:  false,
			Maximized: true,
		},
		Output:       models.DefaultOutputOptions(),
		TemporalHost: "localhost:7233",
		MySQLDSN:     "automator:automator@tcp(localhost:3306)/automator?parseTime=true",
		Port:         "8080",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ENTRY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Search = c.Search.Merge(models.SearchParams{
		URL:         os.Getenv("ENTRY_URL"),
		Origin:      os.Getenv("ENTRY_ORIGIN"),
		Destination: os.Getenv("ENTRY_DESTINATION"),
		Date:        os.Getenv("ENTRY_DATE"),
		Cabin:       os.Getenv("ENTRY_CABIN"),
	})

	c.Browser.Bin = getEnvOrDefault("CHROME_BIN", c.Browser.Bin)
	c.Output.Dir = getEnvOrDefault("SNAPSHOT_DIR", c.Output.Dir)
	c.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", c.TemporalHost)
	c.MySQLDSN = getEnvOrDefault("MYSQL_DSN", c.MySQLDSN)
	c.Port = getEnvOrDefault("PORT", c.Port)

	var err error
	if c.Browser.Headless, err = getEnvBool("HEADLESS", c.Browser.Headless); err != nil {
		return err
	}
	if c.Debug, err = getEnvBool("DEBUG", c.Debug); err != nil {
		return err
	}
	if c.Timing.ResultsTimeout, err = getEnvDuration("RESULTS_TIMEOUT", c.Timing.ResultsTimeout); err != nil {
		return err
	}
	return nil
}

// EntryInput turns the configuration into a run input
func (c *Config) EntryInput(runID string) models.EntryInput {
	return models.EntryInput{
		RunID:           runID,
		Params:          c.Search,
		Form:            c.Form,
		Timing:          c.Timing,
		ResultsSelector: c.ResultsSelector,
		Browser:         c.Browser,
		Output:          c.Output,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
