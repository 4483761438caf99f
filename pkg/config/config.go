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
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
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
		PartnerTTL  time.Duration `mapstructure:"PARTNER_TTL"`
	} `mapstructure:"REDIS"`
	Kafka struct {
		Addrs          string        `mapstructure:"ADDR"`
		ReceiveTimeout time.Duration `mapstructure:"RECEIVE_TIMEOUT"`
		DeadLetter     string        `mapstructure:"DEAD_LETTER_TOPIC"`
	} `mapstructure:"KAFKA"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if cfg.Kafka.ReceiveTimeout == 0 {
		cfg.Kafka.ReceiveTimeout = time.Second
	}
	if cfg.Redis.PartnerTTL == 0 {
		cfg.Redis.PartnerTTL = 5 * time.Minute
	}

	return &cfg
}
