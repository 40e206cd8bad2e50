package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`

	TLS struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`

	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"` // http | grpc
	} `mapstructure:"OTEL"`

	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`

	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`

	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`

	// Drip holds everything specific to the drip ledger and its two
	// cross-system protocols.
	Drip struct {
		// OwnAccount is this deployment's own source identifier. A candidate
		// source whose two-label root matches OwnAccount's root is trusted
		// without an allow-list entry.
		OwnAccount string `mapstructure:"OWN_ACCOUNT"`
		// OwnerAccount may mutate the allow-list and the weighting table.
		OwnerAccount string `mapstructure:"OWNER_ACCOUNT"`

		// StorageCostPerSlot is the payment charged for registering the
		// account itself and for each new per-source balance slot.
		StorageCostPerSlot uint64 `mapstructure:"STORAGE_COST_PER_SLOT"`

		// DefaultCoefficient applies to metrics absent from the weighting
		// table: 0 ignores unlisted metrics, 1 passes them through unweighted.
		DefaultCoefficient uint64 `mapstructure:"DEFAULT_COEFFICIENT"`

		// VerifyAllowListDNS requires a DNS TXT proof before a source outside
		// the own root domain can be added to the allow-list.
		VerifyAllowListDNS bool `mapstructure:"VERIFY_ALLOWLIST_DNS"`

		// RedemptionTimeout is how long a redemption may sit awaiting
		// confirmation before the sweeper refunds it.
		RedemptionTimeout time.Duration `mapstructure:"REDEMPTION_TIMEOUT"`

		// SourceCallTimeout bounds one remote call to a source.
		SourceCallTimeout time.Duration `mapstructure:"SOURCE_CALL_TIMEOUT"`

		// SourceScheme is the URL scheme used to reach sources by their
		// identifier (https in production, http in local setups).
		SourceScheme string `mapstructure:"SOURCE_SCHEME"`

		Budget struct {
			InvocationCost   uint64 `mapstructure:"INVOCATION_COST"`
			CollectCallCost  uint64 `mapstructure:"COLLECT_CALL_COST"`
			ResolveBaseCost  uint64 `mapstructure:"RESOLVE_BASE_COST"`
			ResolvePerSource uint64 `mapstructure:"RESOLVE_PER_SOURCE"`
			RedeemCallCost   uint64 `mapstructure:"REDEEM_CALL_COST"`
			RedeemResolve    uint64 `mapstructure:"REDEEM_RESOLVE_COST"`
		} `mapstructure:"BUDGET"`
	} `mapstructure:"DRIP"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults()

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}

func setDefaults() {
	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "drip-controlplane")

	config.SetDefault("HTTP_SERVER.ADDR", "8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)

	config.SetDefault("DATABASE.TYPE", "sqlite")
	config.SetDefault("DATABASE.DBNAME", "drip.db")

	config.SetDefault("REDIS.ADDR", "127.0.0.1:6379")

	config.SetDefault("DRIP.STORAGE_COST_PER_SLOT", uint64(1))
	config.SetDefault("DRIP.DEFAULT_COEFFICIENT", uint64(0))
	config.SetDefault("DRIP.REDEMPTION_TIMEOUT", 10*time.Minute)
	config.SetDefault("DRIP.SOURCE_CALL_TIMEOUT", 10*time.Second)
	config.SetDefault("DRIP.SOURCE_SCHEME", "https")

	config.SetDefault("DRIP.BUDGET.INVOCATION_COST", uint64(50))
	config.SetDefault("DRIP.BUDGET.COLLECT_CALL_COST", uint64(10))
	config.SetDefault("DRIP.BUDGET.RESOLVE_BASE_COST", uint64(3))
	config.SetDefault("DRIP.BUDGET.RESOLVE_PER_SOURCE", uint64(2))
	config.SetDefault("DRIP.BUDGET.REDEEM_CALL_COST", uint64(25))
	config.SetDefault("DRIP.BUDGET.REDEEM_RESOLVE_COST", uint64(5))
}
