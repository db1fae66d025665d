package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.AdminAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "default", cfg.Store.SaleID)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, uint64(15), cfg.Sale.TotalSupplyCap)
	assert.Equal(t, uint64(12), cfg.Sale.EarlySupplyCap)
	assert.Equal(t, uint64(4), cfg.Sale.EarlyMaxPerTx)
	assert.Equal(t, uint64(5), cfg.Sale.OpenMaxPerTx)
	assert.Equal(t, uint64(4), cfg.Sale.EarlyMaxPerAddress)
	assert.Equal(t, uint64(5), cfg.Sale.OpenMaxPerAddress)
	assert.Equal(t, "50000000000000000", cfg.Sale.EarlyPrice)
	assert.Equal(t, "80000000000000000", cfg.Sale.OpenPrice)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MINTGATE_SERVER_ADDR", ":9090")
	t.Setenv("MINTGATE_SALE_TOTAL_SUPPLY_CAP", "100")
	t.Setenv("MINTGATE_SALE_OPEN_PRICE", "1")
	t.Setenv("MINTGATE_REDIS_READ_TIMEOUT", "750ms")
	t.Setenv("MINTGATE_STORE_BACKEND", "redis")
	t.Setenv("MINTGATE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, uint64(100), cfg.Sale.TotalSupplyCap)
	assert.Equal(t, "1", cfg.Sale.OpenPrice)
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.ReadTimeout)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mintgate.toml")
	content := `
[store]
backend = "postgres"
sale_id = "genesis"

[postgres]
dsn = "postgres://mintgate@localhost/mintgate?sslmode=disable"

[sale]
early_supply_cap = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, "genesis", cfg.Store.SaleID)
	assert.Equal(t, uint64(10), cfg.Sale.EarlySupplyCap)
	assert.Equal(t, uint64(15), cfg.Sale.TotalSupplyCap)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "postgres without dsn",
			env:     map[string]string{"MINTGATE_STORE_BACKEND": "postgres"},
			wantErr: "postgres.dsn is required",
		},
		{
			name:    "redis without url",
			env:     map[string]string{"MINTGATE_STORE_BACKEND": "redis"},
			wantErr: "redis.url is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"MINTGATE_STORE_BACKEND": "etcd"},
			wantErr: `unknown store backend "etcd"`,
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"MINTGATE_LOG_FORMAT": "xml"},
			wantErr: `unknown log format "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaleConfig(t *testing.T) {
	base, err := Load(viper.New())
	require.NoError(t, err)

	t.Run("explicit root is used", func(t *testing.T) {
		root := common.HexToHash("0x01")
		cfg, err := base.Sale.SaleConfig(root)
		require.NoError(t, err)
		assert.Equal(t, root, cfg.AllowlistRoot)
		assert.Equal(t, "50000000000000000", cfg.EarlyPrice.String())
	})

	t.Run("configured root is parsed", func(t *testing.T) {
		sale := base.Sale
		sale.AllowlistRoot = "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
		cfg, err := sale.SaleConfig(common.Hash{})
		require.NoError(t, err)
		assert.Equal(t, byte(0xab), cfg.AllowlistRoot[0])
	})

	t.Run("missing root is rejected", func(t *testing.T) {
		_, err := base.Sale.SaleConfig(common.Hash{})
		require.Error(t, err)
	})

	t.Run("short root is rejected", func(t *testing.T) {
		sale := base.Sale
		sale.AllowlistRoot = "0xabcd"
		_, err := sale.SaleConfig(common.Hash{})
		require.Error(t, err)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		sale := base.Sale
		sale.OpenPrice = "-1"
		_, err := sale.SaleConfig(common.HexToHash("0x01"))
		require.ErrorContains(t, err, "sale.open_price")
	})

	t.Run("early cap above total cap is rejected", func(t *testing.T) {
		sale := base.Sale
		sale.EarlySupplyCap = 16
		_, err := sale.SaleConfig(common.HexToHash("0x01"))
		require.Error(t, err)
	})
}
