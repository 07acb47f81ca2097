package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Solana     Solana     `mapstructure:"solana"`
	MarketData MarketData `mapstructure:"market_data"`
	Trading    Trading    `mapstructure:"trading"`
	Settlement Settlement `mapstructure:"settlement"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
}

// Solana holds the configuration for the RPC node and the owner wallet.
type Solana struct {
	RPCNode        string  `mapstructure:"rpc_node"`
	PublicKey      string  `mapstructure:"public_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CallTimeout    int     `mapstructure:"call_timeout"` // seconds, per RPC round-trip
	ConfirmTimeout int     `mapstructure:"confirm_timeout"` // seconds, finalized confirmation wait
}

// MarketData holds the configuration for the DexScreener client.
type MarketData struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Trading holds the configuration for the position monitor.
type Trading struct {
	TickInterval      int     `mapstructure:"tick_interval"` // seconds
	DedupWindowHours  int     `mapstructure:"dedup_window_hours"`
	DefaultTargetGain float64 `mapstructure:"default_target_gain"`
	DefaultTargetLoss float64 `mapstructure:"default_target_loss"`
	DryRun            bool    `mapstructure:"dry_run"`
	Strategy          string  `mapstructure:"strategy"`
}

// Settlement holds the retry policy for on-chain settlement.
type Settlement struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("solana.rate_limit", 10) // requests per second
	viper.SetDefault("solana.rate_limit_burst", 5)
	viper.SetDefault("solana.call_timeout", 30)
	viper.SetDefault("solana.confirm_timeout", 90)
	viper.SetDefault("market_data.base_url", "https://api.dexscreener.com")
	viper.SetDefault("market_data.rate_limit", 5)
	viper.SetDefault("market_data.rate_limit_burst", 2)
	viper.SetDefault("trading.tick_interval", 30)
	viper.SetDefault("trading.dedup_window_hours", 24)
	viper.SetDefault("settlement.max_attempts", 3)
	viper.SetDefault("settlement.backoff_seconds", 2)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
