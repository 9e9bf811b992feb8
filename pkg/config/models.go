package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Registry  RegistryConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typing    TypingConfig
	Dispatch  DispatchConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
	ShutdownTimeout time.Duration         `mapstructure:"shutdownTimeout"`
}

// AuthConfig enables bearer token checks on socket upgrades when JWTSecret is set.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwtSecret"`
	CookieName string `mapstructure:"cookieName"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"` // 0 disables the limit
	Mode       string `mapstructure:"mode"`       // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type RegistryConfig struct {
	Shards int `mapstructure:"shards"`
}

// DatabaseConfig selects the postgres store. An empty DSN runs on the in-memory store.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig selects the shared typing throttle. An empty address keeps it process-local.
type RedisConfig struct {
	Address string `mapstructure:"address"`
}

type TypingConfig struct {
	Window time.Duration `mapstructure:"window"`
}

type DispatchConfig struct {
	DeliveredTimeout time.Duration `mapstructure:"deliveredTimeout"`
	PresenceTimeout  time.Duration `mapstructure:"presenceTimeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
