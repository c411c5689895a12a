package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"dividend-recon/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Recon     ReconConfig     `mapstructure:"recon"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Overrides OverridesConfig `mapstructure:"overrides"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// BandConfig is one inclusive day-gap range for frequency detection.
type BandConfig struct {
	MinDays int `mapstructure:"min_days"`
	MaxDays int `mapstructure:"max_days"`
}

// ReconConfig tunes the reconciliation pipeline. Every threshold lives here
// so operators can adjust without a rebuild.
type ReconConfig struct {
	WindowDays        int        `mapstructure:"window_days"`
	DivergenceRatio   float64    `mapstructure:"divergence_ratio"`
	Workers           int        `mapstructure:"workers"`
	WriteRetries      int        `mapstructure:"write_retries"`
	BandToleranceDays int        `mapstructure:"band_tolerance_days"`
	MonthlyBand       BandConfig `mapstructure:"monthly_band"`
	QuarterlyBand     BandConfig `mapstructure:"quarterly_band"`
	SemiAnnualBand    BandConfig `mapstructure:"semi_annual_band"`
	AnnualBand        BandConfig `mapstructure:"annual_band"`
}

// ProviderConfig captures external quote provider connectivity.
type ProviderConfig struct {
	BaseURL         string            `mapstructure:"base_url"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	UserAgent       string            `mapstructure:"user_agent"`
	MinCallInterval time.Duration     `mapstructure:"min_call_interval"`
	SymbolOverrides map[string]string `mapstructure:"symbol_overrides"`
}

// OverridesConfig points at the hand-curated configuration files.
type OverridesConfig struct {
	RegistryPath  string `mapstructure:"registry_path"`
	BlacklistPath string `mapstructure:"blacklist_path"`
}

// AuditConfig tunes the read-only audit findings.
type AuditConfig struct {
	DivergencePct float64       `mapstructure:"divergence_pct"`
	Staleness     time.Duration `mapstructure:"staleness"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DIVRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "divrecon")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("recon.window_days", 365)
	v.SetDefault("recon.divergence_ratio", 2.0)
	v.SetDefault("recon.workers", 0) // 0 = NumCPU
	v.SetDefault("recon.write_retries", 3)
	v.SetDefault("recon.band_tolerance_days", 45)
	v.SetDefault("recon.monthly_band.min_days", 28)
	v.SetDefault("recon.monthly_band.max_days", 35)
	v.SetDefault("recon.quarterly_band.min_days", 80)
	v.SetDefault("recon.quarterly_band.max_days", 100)
	v.SetDefault("recon.semi_annual_band.min_days", 170)
	v.SetDefault("recon.semi_annual_band.max_days", 190)
	v.SetDefault("recon.annual_band.min_days", 350)
	v.SetDefault("recon.annual_band.max_days", 380)

	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "divrecon/1.0")
	v.SetDefault("provider.min_call_interval", "2s")

	v.SetDefault("overrides.registry_path", "overrides.yaml")
	v.SetDefault("overrides.blacklist_path", "blacklist.yaml")

	v.SetDefault("audit.divergence_pct", 0.30)
	v.SetDefault("audit.staleness", "2160h") // 90 days

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// ResolveMaxPoints clamps a requested export size to the configured ceiling.
func (c *Config) ResolveMaxPoints(requested int) int {
	if requested <= 0 || requested > c.Export.MaxDataPoints {
		return c.Export.MaxDataPoints
	}
	return requested
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Recon.WindowDays <= 0 {
		return fmt.Errorf("recon.window_days must be greater than zero")
	}
	if c.Recon.DivergenceRatio <= 1.0 {
		return fmt.Errorf("recon.divergence_ratio must be greater than one")
	}
	if c.Recon.WriteRetries < 1 {
		return fmt.Errorf("recon.write_retries must be at least one")
	}
	for _, band := range []struct {
		name string
		b    BandConfig
	}{
		{"recon.monthly_band", c.Recon.MonthlyBand},
		{"recon.quarterly_band", c.Recon.QuarterlyBand},
		{"recon.semi_annual_band", c.Recon.SemiAnnualBand},
		{"recon.annual_band", c.Recon.AnnualBand},
	} {
		if band.b.MinDays <= 0 || band.b.MaxDays < band.b.MinDays {
			return fmt.Errorf("%s is not a valid day range", band.name)
		}
	}
	if c.Audit.DivergencePct <= 0 {
		return fmt.Errorf("audit.divergence_pct must be greater than zero")
	}
	if c.Audit.Staleness <= 0 {
		return fmt.Errorf("audit.staleness must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}
