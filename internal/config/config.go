// Package config loads service configuration from a YAML file, a .env file,
// RECLAIM_* environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/price"
)

// EnvPrefix prefixes every environment override, e.g. RECLAIM_SOLANA_RPC_URL.
const EnvPrefix = "RECLAIM"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SolanaConfig struct {
	RPCURL     string        `mapstructure:"rpc_url"`
	WSURL      string        `mapstructure:"ws_url"` // empty: confirm by polling
	Commitment string        `mapstructure:"commitment"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// FeeConfig is the process-wide service fee. It is read-only after startup.
type FeeConfig struct {
	Collector          string `mapstructure:"collector"`
	LamportsPerAccount uint64 `mapstructure:"lamports_per_account"`
}

type MetadataConfig struct {
	RegistryPath string        `mapstructure:"registry_path"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

type PriceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the metadata cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects persistent stores. Empty DSNs fall back to memory.
type StorageConfig struct {
	PostgresDSN      string `mapstructure:"postgres_dsn"`
	PostgresMaxConns int32  `mapstructure:"postgres_max_conns"`
	ClickhouseDSN    string `mapstructure:"clickhouse_dsn"`
}

type DashboardConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	ZeroValuePolicy  string `mapstructure:"zero_value_policy"`
	ExplorerBaseURL  string `mapstructure:"explorer_base_url"`
	SwapBaseURL      string `mapstructure:"swap_base_url"`
	PlaceholderImage string `mapstructure:"placeholder_image"`
}

type ClosureConfig struct {
	SigningTimeout time.Duration `mapstructure:"signing_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"` // production: JSON, otherwise console
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	Fee       FeeConfig       `mapstructure:"fee"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Price     PriceConfig     `mapstructure:"price"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Closure   ClosureConfig   `mapstructure:"closure"`
	Log       LogConfig       `mapstructure:"log"`
}

// New returns a viper instance with defaults and environment overrides set up.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.ws_url", "")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.timeout", 30*time.Second)
	v.SetDefault("solana.max_retries", 3)

	v.SetDefault("fee.collector", "")
	v.SetDefault("fee.lamports_per_account", 0)

	v.SetDefault("metadata.registry_path", "")
	v.SetDefault("metadata.cache_ttl", 24*time.Hour)
	v.SetDefault("metadata.http_timeout", 10*time.Second)

	v.SetDefault("price.base_url", price.DefaultBaseURL)
	v.SetDefault("price.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_max_conns", 10)
	v.SetDefault("storage.clickhouse_dsn", "")

	v.SetDefault("dashboard.concurrency", dashboard.DefaultConcurrency)
	v.SetDefault("dashboard.zero_value_policy", string(dashboard.UnresolvedIsUnknown))
	v.SetDefault("dashboard.explorer_base_url", "https://solscan.io")
	v.SetDefault("dashboard.swap_base_url", "https://jup.ag")
	v.SetDefault("dashboard.placeholder_image", "/static/token-placeholder.png")

	v.SetDefault("closure.signing_timeout", 2*time.Minute)
	v.SetDefault("closure.confirm_timeout", 90*time.Second)
	v.SetDefault("closure.poll_interval", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "production")
}

// LoadEnvFile loads path (".env" when empty) into the process environment.
// A missing file is not an error; existing variables are not overwritten.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads cfgFile (optional) into v and returns the validated config.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg, err := Read(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that need only part of the config.
func Read(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	} else if _, err := os.Stat("configs/config.yml"); err == nil {
		v.SetConfigFile("configs/config.yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Solana.RPCURL == "" {
		return errors.New("solana.rpc_url is required")
	}
	if c.Fee.Collector == "" {
		return errors.New("fee.collector is required")
	}
	if _, err := solanago.PublicKeyFromBase58(c.Fee.Collector); err != nil {
		return fmt.Errorf("fee.collector %q is not a public key: %w", c.Fee.Collector, err)
	}
	if _, err := dashboard.ParseZeroValuePolicy(c.Dashboard.ZeroValuePolicy); err != nil {
		return fmt.Errorf("dashboard.zero_value_policy: %w", err)
	}
	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("solana.commitment %q must be processed, confirmed or finalized", c.Solana.Commitment)
	}
	if c.Dashboard.Concurrency < 1 {
		return fmt.Errorf("dashboard.concurrency must be positive, got %d", c.Dashboard.Concurrency)
	}
	return nil
}

// ZeroValuePolicy returns the parsed dashboard policy.
func (c *Config) ZeroValuePolicy() dashboard.ZeroValuePolicy {
	p, _ := dashboard.ParseZeroValuePolicy(c.Dashboard.ZeroValuePolicy)
	return p
}
