package fel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config carries the runtime knobs of the validation engine. Zero value is
// not usable; build one with DefaultConfig or LoadConfig.
type Config struct {
	// SchemaCacheDir is the directory holding cached XSD blobs and their
	// metadata sidecars.
	SchemaCacheDir string `mapstructure:"schema_cache_dir"`

	// SchemaBaseURL is the base URL schemas are fetched from when missing
	// or stale.
	SchemaBaseURL string `mapstructure:"schema_base_url"`

	// SchemaRefreshHours is the cache freshness window.
	SchemaRefreshHours int `mapstructure:"schema_refresh_hours"`

	// HTTPTimeoutSeconds bounds each schema fetch.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`

	// MonetaryTolerance is the absolute difference allowed on recomputed
	// amounts, in currency units.
	MonetaryTolerance decimal.Decimal `mapstructure:"-"`

	// MaxCFAmountGTQ is the consumidor final cap. A grand total at or
	// above this amount requires an identified receptor.
	MaxCFAmountGTQ decimal.Decimal `mapstructure:"-"`

	// MaxEmissionDaysBack is how many days emission may precede
	// certification before the late-emission rule fires.
	MaxEmissionDaysBack int `mapstructure:"max_emission_days_back"`

	// RulebookVersion overrides the compiled-in rulebook version string on
	// verdicts. Empty keeps the default.
	RulebookVersion string `mapstructure:"rulebook_version"`
}

// RefreshWindow returns the schema freshness window as a duration.
func (c *Config) RefreshWindow() time.Duration {
	return time.Duration(c.SchemaRefreshHours) * time.Hour
}

// HTTPTimeout returns the schema fetch timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// DefaultConfig returns the engine defaults used when no configuration file
// is present.
func DefaultConfig() *Config {
	return &Config{
		SchemaCacheDir:      "schemas_cache",
		SchemaBaseURL:       "https://cat.sat.gob.gt/xsd",
		SchemaRefreshHours:  24,
		HTTPTimeoutSeconds:  30,
		MonetaryTolerance:   decimal.RequireFromString("0.01"),
		MaxCFAmountGTQ:      decimal.RequireFromString("2500.00"),
		MaxEmissionDaysBack: 5,
		RulebookVersion:     RulebookVersion,
	}
}

func setConfigDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("schema_cache_dir", d.SchemaCacheDir)
	v.SetDefault("schema_base_url", d.SchemaBaseURL)
	v.SetDefault("schema_refresh_hours", d.SchemaRefreshHours)
	v.SetDefault("http_timeout_seconds", d.HTTPTimeoutSeconds)
	v.SetDefault("monetary_tolerance", "0.01")
	v.SetDefault("max_cf_amount_gtq", "2500.00")
	v.SetDefault("max_emission_days_back", d.MaxEmissionDaysBack)
	v.SetDefault("rulebook_version", d.RulebookVersion)
}

// LoadConfig reads the configuration file at path (YAML, JSON or TOML as
// determined by its extension) on top of the defaults. Environment variables
// prefixed FEL_ override file values. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setConfigDefaults(v)
	v.SetEnvPrefix("FEL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fel: reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("fel: parsing config: %w", err)
	}

	tol, err := decimal.NewFromString(v.GetString("monetary_tolerance"))
	if err != nil {
		return nil, fmt.Errorf("fel: invalid monetary_tolerance: %w", err)
	}
	cfg.MonetaryTolerance = tol
	maxCF, err := decimal.NewFromString(v.GetString("max_cf_amount_gtq"))
	if err != nil {
		return nil, fmt.Errorf("fel: invalid max_cf_amount_gtq: %w", err)
	}
	cfg.MaxCFAmountGTQ = maxCF

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SchemaRefreshHours <= 0 {
		return fmt.Errorf("fel: schema_refresh_hours must be positive, got %d", c.SchemaRefreshHours)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("fel: http_timeout_seconds must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.MaxEmissionDaysBack < 0 {
		return fmt.Errorf("fel: max_emission_days_back must not be negative, got %d", c.MaxEmissionDaysBack)
	}
	if c.MonetaryTolerance.IsNegative() {
		return fmt.Errorf("fel: monetary_tolerance must not be negative")
	}
	if !c.MaxCFAmountGTQ.IsPositive() {
		return fmt.Errorf("fel: max_cf_amount_gtq must be positive")
	}
	return nil
}
