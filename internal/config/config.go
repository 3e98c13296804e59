package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		Enabled bool
		DSN     string
	} `mapstructure:"postgres"`

	Backend struct {
		BaseURL      string        `mapstructure:"base_url"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"backend"`

	Vehicles struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"vehicles"`

	Session struct {
		TTL time.Duration
	} `mapstructure:"session"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// Позже можно будет переопределять через ENV (APP_*), если надо
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("backend.poll_interval", 2*time.Second)
	v.SetDefault("session.ttl", 7*24*time.Hour)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
