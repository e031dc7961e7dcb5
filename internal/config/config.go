package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults match the hosted deployment; the self-hosted variant overrides
// the endpoint and requires a caller-supplied API key.
const (
	DefaultEndpoint = "http://localhost:8000"

	envEndpoint           = "MAKEUP_API_URL"
	envAPIKey             = "MAKEUP_API_KEY"
	envCredentialRequired = "MAKEUP_CREDENTIAL_REQUIRED"
)

// Config parameterizes the two deployment variants of the analysis service:
// a fixed remote host that needs no credential, and a self-hosted endpoint
// that rejects requests without a caller-supplied API key.
type Config struct {
	EndpointBase       string
	APIKey             string
	CredentialRequired bool
}

// FromEnv builds a Config from environment variables, falling back to the
// hosted defaults. godotenv loading happens in the root command, so a local
// .env file is already merged into the environment by the time this runs.
func FromEnv() (Config, error) {
	cfg := Config{
		EndpointBase: getenvDefault(envEndpoint, DefaultEndpoint),
		APIKey:       os.Getenv(envAPIKey),
	}

	if v := os.Getenv(envCredentialRequired); v != "" {
		required, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", envCredentialRequired, v, err)
		}
		cfg.CredentialRequired = required
	}

	cfg.EndpointBase = strings.TrimRight(cfg.EndpointBase, "/")
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
