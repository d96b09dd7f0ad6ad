package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Node     NodeConfig     `mapstructure:"node"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Booths   []string       `mapstructure:"booths"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type NodeConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	VerifyInterval string `mapstructure:"verify_interval"`
}

type StorageConfig struct {
	// Engine selects the durable store: "bolt" (default) or "postgres".
	Engine string `mapstructure:"engine"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

type AlertsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SlackWebhook string `mapstructure:"slack_webhook"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("node.data_dir", "data")
	v.SetDefault("node.verify_interval", "5m")
	v.SetDefault("storage.engine", "bolt")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if expanded := os.ExpandEnv(val); expanded != val {
			v.Set(key, expanded)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(cfg *Config) error {
	switch cfg.Storage.Engine {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("unknown storage engine: %q", cfg.Storage.Engine)
	}

	if cfg.Storage.Engine == "postgres" && cfg.Database.Host == "" {
		return fmt.Errorf("database.host is required for the postgres engine")
	}

	return nil
}
