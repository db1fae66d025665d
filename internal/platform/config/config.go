// Package config loads runtime configuration from defaults, an optional config
// file and MINTGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"

	"mintgate/internal/sale/models"
)

// EnvPrefix is prepended to every environment override, e.g. MINTGATE_SALE_TOTAL_SUPPLY_CAP.
const EnvPrefix = "MINTGATE"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures listener configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	AdminAddr       string        `mapstructure:"admin_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Admin guards the admin listener.
type Admin struct {
	Token string `mapstructure:"token"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store selects where sale state lives.
type Store struct {
	Backend string `mapstructure:"backend"`
	SaleID  string `mapstructure:"sale_id"`
}

// Postgres configures the postgres state store.
type Postgres struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the redis state store.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Sale holds the immutable sale parameters. Prices are decimal wei strings.
type Sale struct {
	TotalSupplyCap     uint64 `mapstructure:"total_supply_cap"`
	EarlySupplyCap     uint64 `mapstructure:"early_supply_cap"`
	EarlyMaxPerTx      uint64 `mapstructure:"early_max_per_tx"`
	OpenMaxPerTx       uint64 `mapstructure:"open_max_per_tx"`
	EarlyMaxPerAddress uint64 `mapstructure:"early_max_per_address"`
	OpenMaxPerAddress  uint64 `mapstructure:"open_max_per_address"`
	EarlyPrice         string `mapstructure:"early_price"`
	OpenPrice          string `mapstructure:"open_price"`
	AllowlistRoot      string `mapstructure:"allowlist_root"`
	AllowlistFile      string `mapstructure:"allowlist_file"`
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server      `mapstructure:"server"`
	Admin    Admin       `mapstructure:"admin"`
	Log      Log         `mapstructure:"log"`
	Store    Store       `mapstructure:"store"`
	Postgres Postgres    `mapstructure:"postgres"`
	Redis    RedisConfig `mapstructure:"redis"`
	Sale     Sale        `mapstructure:"sale"`
}

// SetDefaults registers every key so environment overrides resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.admin_addr", "127.0.0.1:8081")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("admin.token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.sale_id", "default")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("sale.total_supply_cap", 15)
	v.SetDefault("sale.early_supply_cap", 12)
	v.SetDefault("sale.early_max_per_tx", 4)
	v.SetDefault("sale.open_max_per_tx", 5)
	v.SetDefault("sale.early_max_per_address", 4)
	v.SetDefault("sale.open_max_per_address", 5)
	v.SetDefault("sale.early_price", "50000000000000000")
	v.SetDefault("sale.open_price", "80000000000000000")
	v.SetDefault("sale.allowlist_root", "")
	v.SetDefault("sale.allowlist_file", "")
}

// BindEnv enables MINTGATE_SECTION_KEY overrides for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load applies defaults, then unmarshals whatever v has accumulated from
// config files, environment and flags.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the allowlist.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres store"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.SaleID == "" {
		errs = append(errs, errors.New("store.sale_id is required"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SaleConfig converts the sale section into sale parameters. root is used when
// non-zero; otherwise sale.allowlist_root must be set.
func (s Sale) SaleConfig(root common.Hash) (models.Config, error) {
	earlyPrice, err := parseWei("sale.early_price", s.EarlyPrice)
	if err != nil {
		return models.Config{}, err
	}
	openPrice, err := parseWei("sale.open_price", s.OpenPrice)
	if err != nil {
		return models.Config{}, err
	}

	if root == (common.Hash{}) {
		if s.AllowlistRoot == "" {
			return models.Config{}, errors.New("sale.allowlist_root or sale.allowlist_file is required")
		}
		raw, err := hexutil.Decode(strings.TrimSpace(s.AllowlistRoot))
		if err != nil || len(raw) != common.HashLength {
			return models.Config{}, fmt.Errorf("sale.allowlist_root must be a 0x-prefixed %d-byte hex value", common.HashLength)
		}
		root = common.BytesToHash(raw)
	}

	cfg := models.Config{
		TotalSupplyCap:     s.TotalSupplyCap,
		EarlySupplyCap:     s.EarlySupplyCap,
		EarlyMaxPerTx:      s.EarlyMaxPerTx,
		OpenMaxPerTx:       s.OpenMaxPerTx,
		EarlyMaxPerAddress: s.EarlyMaxPerAddress,
		OpenMaxPerAddress:  s.OpenMaxPerAddress,
		EarlyPrice:         earlyPrice,
		OpenPrice:          openPrice,
		AllowlistRoot:      root,
	}
	if err := cfg.Validate(); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

func parseWei(key, raw string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative decimal wei amount", key)
	}
	return n, nil
}
