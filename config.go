package main

import (
	"strings"
	"time"

	"github.com/hangyeol-kang/d3RW/session"
	"github.com/packethost/pkg/env"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is everything read from d3rw.{yaml,json,toml} and D3RW_* variables.
type Config struct {
	Target struct {
		Host string
		Port int
	}
	HTTP struct {
		Port int
	}
	GRPC struct {
		Port int
	}
	Prefs struct {
		Path string
	}
	Upstream struct {
		Timeout time.Duration
		Workers int
	}
	Capture struct {
		Timeout time.Duration
	}
	Setting session.Settings
}

func loadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("target.host", "127.0.0.1")
	v.SetDefault("target.port", 80)
	v.SetDefault("http.port", env.Int("HTTP_PORT", 8080))
	v.SetDefault("grpc.port", env.Int("GRPC_PORT", 42113))
	v.SetDefault("prefs.path", "d3rw.db")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.workers", env.Int("D3RW_CONCURRENT_FETCHES", 4))
	v.SetDefault("capture.timeout", session.DefaultCaptureWait)
	v.SetDefault("setting.minValue", session.DefaultSettings.MinValue)
	v.SetDefault("setting.maxValue", session.DefaultSettings.MaxValue)
	v.SetDefault("setting.soloMode", session.DefaultSettings.SoloMode)
	v.SetDefault("setting.allowUpgrade", session.DefaultSettings.AllowUpgrade)

	v.SetEnvPrefix("D3RW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("d3rw")
	v.AddConfigPath("$HOME/.config/d3rw/")
	v.AddConfigPath("/etc/d3rw/")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	var config Config
	if err := v.ReadInConfig(); err != nil {
		// running on defaults and env is fine
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, errors.Wrap(err, "read config file")
		}
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "unmarshal config")
	}
	if config.Setting.MinValue >= config.Setting.MaxValue {
		return config, errors.Errorf("setting.minValue %v must be below setting.maxValue %v",
			config.Setting.MinValue, config.Setting.MaxValue)
	}
	return config, nil
}
