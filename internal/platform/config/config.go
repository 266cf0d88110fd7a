package config

import (
	"os"
	"strconv"
	"time"

	dErrors "credchain/pkg/domain-errors"
)

// Server captures process-level configuration for the issuer daemon.
type Server struct {
	Addr        string
	Environment string

	// Ledger access.
	AlgodURL   string
	AlgodToken string
	// RegistryAppID is the on-chain application holding the authority registry.
	// Zero means not configured; authority resolution fails fast on it.
	RegistryAppID uint64
	// ConfirmationRounds bounds how many rounds a submitted transaction is
	// awaited before the wait is treated as indeterminate.
	ConfirmationRounds uint64

	// IssuerSeed is the hex-encoded ed25519 seed of the issuing authority's
	// operational signing account.
	IssuerSeed string

	// Content-addressed storage provider.
	PinataAPIKey string
	PinataSecret string

	// Session tokens issued after a wallet challenge.
	JWTSigningKey string
	TokenTTL      time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               getEnv("ISSUER_ADDR", ":8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		AlgodURL:           os.Getenv("ALGOD_URL"),
		AlgodToken:         os.Getenv("ALGOD_TOKEN"),
		IssuerSeed:         os.Getenv("ISSUER_SEED"),
		PinataAPIKey:       os.Getenv("PINATA_API_KEY"),
		PinataSecret:       os.Getenv("PINATA_SECRET_KEY"),
		JWTSigningKey:      getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:           15 * time.Minute,
		ConfirmationRounds: 4,
	}

	if v := os.Getenv("REGISTRY_APP_ID"); v != "" {
		if appID, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RegistryAppID = appID
		}
	}
	if v := os.Getenv("CONFIRMATION_ROUNDS"); v != "" {
		if rounds, err := strconv.ParseUint(v, 10, 64); err == nil && rounds > 0 {
			cfg.ConfirmationRounds = rounds
		}
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TokenTTL = d
		}
	}

	return cfg
}

// Validate reports missing required values. Configuration problems are fatal
// and never retried.
func (c Server) Validate() error {
	required := map[string]string{
		"ALGOD_URL":         c.AlgodURL,
		"ISSUER_SEED":       c.IssuerSeed,
		"PINATA_API_KEY":    c.PinataAPIKey,
		"PINATA_SECRET_KEY": c.PinataSecret,
	}
	for name, value := range required {
		if value == "" {
			return dErrors.New(dErrors.CodeConfiguration, "missing required config: "+name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
