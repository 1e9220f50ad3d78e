package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries the engine settings. Values come from defaults, an
// optional desdemona.yaml in the working directory, and DESDEMONA_*
// environment variables, in rising priority.
type Config struct {
	TableMemFraction float64
	Threads          int
	Depth            int
	Selectivity      int
	MultiPV          int
	TimeBudget       time.Duration
	LogLevel         string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("table-mem-fraction", 0.25)
	v.SetDefault("threads", 1)
	v.SetDefault("depth", 24)
	v.SetDefault("selectivity", 5)
	v.SetDefault("multi-pv", 1)
	v.SetDefault("time-budget", time.Duration(0))
	v.SetDefault("log-level", "info")

	v.SetConfigName("desdemona")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("desdemona")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &Config{
		TableMemFraction: v.GetFloat64("table-mem-fraction"),
		Threads:          v.GetInt("threads"),
		Depth:            v.GetInt("depth"),
		Selectivity:      v.GetInt("selectivity"),
		MultiPV:          v.GetInt("multi-pv"),
		TimeBudget:       v.GetDuration("time-budget"),
		LogLevel:         v.GetString("log-level"),
	}, nil
}
