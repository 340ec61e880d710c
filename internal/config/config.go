package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/medvault/medvault/internal/domain/patient"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	StoreDriver             string        `mapstructure:"STORE_DRIVER"`
	DataDir                 string        `mapstructure:"DATA_DIR"`
	StoreKeyPrefix          string        `mapstructure:"STORE_KEY_PREFIX"`
	RedisURL                string        `mapstructure:"REDIS_URL"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	DeletePolicy            string        `mapstructure:"DELETE_POLICY"`
	EnforcePatientReference bool          `mapstructure:"ENFORCE_PATIENT_REFERENCE"`
	BodyLimit               string        `mapstructure:"BODY_LIMIT"`
	ImportBodyLimit         string        `mapstructure:"IMPORT_BODY_LIMIT"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MetricsEnabled          bool          `mapstructure:"METRICS_ENABLED"`
	ConsentAgreementText    string        `mapstructure:"CONSENT_AGREEMENT_TEXT"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"STORE_DRIVER",
	"DATA_DIR",
	"STORE_KEY_PREFIX",
	"REDIS_URL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"CORS_ORIGINS",
	"DELETE_POLICY",
	"ENFORCE_PATIENT_REFERENCE",
	"BODY_LIMIT",
	"IMPORT_BODY_LIMIT",
	"REQUEST_TIMEOUT",
	"METRICS_ENABLED",
	"CONSENT_AGREEMENT_TEXT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", "leveldb")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("STORE_KEY_PREFIX", "medvault:")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("DELETE_POLICY", "orphan")
	v.SetDefault("ENFORCE_PATIENT_REFERENCE", true)
	v.SetDefault("BODY_LIMIT", "10M")
	v.SetDefault("IMPORT_BODY_LIMIT", "100M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("CONSENT_AGREEMENT_TEXT", patient.DefaultAgreementText)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.DeletePolicy = strings.ToLower(strings.TrimSpace(cfg.DeletePolicy))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() && cfg.StoreDriver == "memory" {
		log.Println("WARNING: STORE_DRIVER=memory keeps all data in process memory; it is lost on exit.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the selected store driver has what it needs and that
// the enumerated settings hold known values.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "leveldb":
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when STORE_DRIVER is \"leveldb\"")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_DRIVER is \"redis\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is \"postgres\"")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be \"memory\", \"leveldb\", \"redis\", or \"postgres\", got %q", c.StoreDriver)
	}

	switch c.DeletePolicy {
	case "orphan", "cascade", "restrict":
	default:
		return fmt.Errorf("DELETE_POLICY must be \"orphan\", \"cascade\", or \"restrict\", got %q", c.DeletePolicy)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if strings.TrimSpace(c.ConsentAgreementText) == "" {
		return fmt.Errorf("CONSENT_AGREEMENT_TEXT must not be empty")
	}
	return nil
}
