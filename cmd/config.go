package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/snackoverflow/snack-gateway/types"
)

type Config struct {
	Gateway types.GatewayConfig `yaml:"gateway"`
	Server  Server              `yaml:"server"`
}

type Server struct {
	Dsn           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func LoadConfig(path string) (Config, error) {
	var config Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, errors.Wrap(err, "parse config")
	}

	if config.Gateway.APIBase == "" {
		return config, errors.New("gateway.apiBase is required")
	}
	if config.Gateway.FQDN == "" {
		return config, errors.New("gateway.fqdn is required")
	}

	return config, nil
}
