package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetFrontendURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
}

// Load reads an optional .env file into the process environment and
// returns the environment-backed configuration. A missing .env file is
// not an error.
func Load() Config {
	_ = godotenv.Load()
	return mainConfig{}
}

func New() Config {
	return mainConfig{}
}
