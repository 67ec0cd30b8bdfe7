package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Registry  RegistryConfig
	LogLevel  string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Address         string
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"`
	Mode     string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SendBuffer  int           `mapstructure:"sendBuffer"`
}

// RegistryConfig bounds the display names accepted by the registration gate.
type RegistryConfig struct {
	NameMinLen int `mapstructure:"nameMinLen"`
	NameMaxLen int `mapstructure:"nameMaxLen"`
}
