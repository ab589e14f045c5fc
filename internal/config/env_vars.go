package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	frontendURLEnvVar = "FRONTEND_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Token Exchange")
}

// GetFrontendURL returns the origin of the single-page app that drives
// the login flow. It is the only origin allowed by CORS.
func (EnvVars) GetFrontendURL() string {
	return GetEnv(frontendURLEnvVar, "http://localhost:5173")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
