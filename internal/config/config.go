package config

import (
	"os"
	"strconv"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	_ "github.com/joho/godotenv/autoload"
)

// Config holds runtime configuration for the coordinator process.
type Config struct {
	APIPort int

	// EVM side
	EVMRPCURL       string
	EVMPrivateKey   string
	RequiredNetwork common.ChainID

	// Native ledger
	LedgerAPIURL string
	SignerURL    string

	// Real-time update channel
	ChannelURL           string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

// Load populates Config from environment variables, with .env support.
func Load() Config {
	return Config{
		APIPort:              parseIntEnv("API_PORT", 8080),
		EVMRPCURL:            os.Getenv("EVM_RPC_URL"),
		EVMPrivateKey:        os.Getenv("EVM_PRIVATE_KEY"),
		RequiredNetwork:      common.ChainID(parseIntEnv("REQUIRED_NETWORK", int(common.EthereumMainnet))),
		LedgerAPIURL:         getenv("LEDGER_API_URL", "http://localhost:50002"),
		SignerURL:            getenv("SIGNER_URL", "http://localhost:50003"),
		ChannelURL:           os.Getenv("CHANNEL_URL"),
		ReconnectInterval:    parseDurationEnv("CHANNEL_RECONNECT_INTERVAL", 3*time.Second),
		MaxReconnectAttempts: parseIntEnv("CHANNEL_MAX_RECONNECTS", 0),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
