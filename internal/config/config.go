package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Chain node configuration
	Chain ChainConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Discovery worker configuration
	Discovery DiscoveryConfig

	// Telegram ingestion configuration
	Telegram TelegramConfig

	// Logging configuration
	Log LogConfig
}

// ChainConfig holds L2 node connection settings
type ChainConfig struct {
	RPCURL         string        `envconfig:"CHAIN_RPC_URL" default:"https://api.mainnet.abs.xyz"`
	ChainID        int64         `envconfig:"CHAIN_ID" default:"2741"`
	RequestTimeout time.Duration `envconfig:"CHAIN_REQUEST_TIMEOUT" default:"15s"`
}

// RedisConfig holds Redis connection settings.
// An empty URL selects the in-memory cache backend.
type RedisConfig struct {
	URL         string        `envconfig:"REDIS_URL" default:""`
	KeyPrefix   string        `envconfig:"REDIS_KEY_PREFIX" default:"token-radar:"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"3s"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	WebhookRPM      int           `envconfig:"API_WEBHOOK_RATE_LIMIT_RPM" default:"600"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// DiscoveryConfig holds worker cadence and scan limits
type DiscoveryConfig struct {
	DeploymentInterval time.Duration `envconfig:"DISCOVERY_DEPLOYMENT_INTERVAL" default:"5s"`
	MintInterval       time.Duration `envconfig:"DISCOVERY_MINT_INTERVAL" default:"10s"`
	DexInterval        time.Duration `envconfig:"DISCOVERY_DEX_INTERVAL" default:"20s"`
	DexAPIInterval     time.Duration `envconfig:"DISCOVERY_DEX_API_INTERVAL" default:"30s"`
	APIInterval        time.Duration `envconfig:"DISCOVERY_API_INTERVAL" default:"60s"`

	// 0 starts from the current head
	StartBlock          uint64 `envconfig:"DISCOVERY_START_BLOCK" default:"0"`
	MaxBlocksPerCycle   int    `envconfig:"DISCOVERY_MAX_BLOCKS_PER_CYCLE" default:"20"`
	MaxBlockAttempts    int    `envconfig:"DISCOVERY_MAX_BLOCK_ATTEMPTS" default:"5"`
	MintOverlapBlocks   uint64 `envconfig:"DISCOVERY_MINT_OVERLAP_BLOCKS" default:"10"`
	MintLookbackBlocks  uint64 `envconfig:"DISCOVERY_MINT_LOOKBACK_BLOCKS" default:"100"`
	LogBatchSize        int    `envconfig:"DISCOVERY_LOG_BATCH_SIZE" default:"500"`
	WorkerCount         int    `envconfig:"DISCOVERY_WORKER_COUNT" default:"4"`
	MaxCandidatesPerRun int    `envconfig:"DISCOVERY_MAX_CANDIDATES_PER_CYCLE" default:"50"`

	MetadataTTL time.Duration `envconfig:"DISCOVERY_METADATA_TTL" default:"1h"`
	NegativeTTL time.Duration `envconfig:"DISCOVERY_NEGATIVE_TTL" default:"10m"`
	SeenLogTTL  time.Duration `envconfig:"DISCOVERY_SEEN_LOG_TTL" default:"10m"`

	// name=0xaddr or bare 0xaddr, comma separated
	Factories       []string `envconfig:"DISCOVERY_FACTORIES" default:""`
	// WETH and USDC.e on Abstract
	ReferenceTokens []string `envconfig:"DISCOVERY_REFERENCE_TOKENS" default:"0x3439153EB7AF838Ad19d56E1571FBD09333C2809,0x84A71ccD554Cc1b02749b35d22F684CC8ec987e1"`

	DexScreenerURL   string        `envconfig:"DEXSCREENER_URL" default:"https://api.dexscreener.com"`
	DexScreenerChain string        `envconfig:"DEXSCREENER_CHAIN" default:"abstract"`
	GeckoTerminalURL string        `envconfig:"GECKOTERMINAL_URL" default:"https://api.geckoterminal.com/api/v2"`
	GeckoNetwork     string        `envconfig:"GECKOTERMINAL_NETWORK" default:"abstract"`
	HTTPTimeout      time.Duration `envconfig:"DISCOVERY_HTTP_TIMEOUT" default:"10s"`
}

// TelegramConfig holds Bot API settings. An empty token disables the poller.
type TelegramConfig struct {
	BotToken     string        `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	APIURL       string        `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	Channels     []string      `envconfig:"TELEGRAM_CHANNELS" default:""`
	PollInterval time.Duration `envconfig:"TELEGRAM_POLL_INTERVAL" default:"30s"`
	SeenTTL      time.Duration `envconfig:"TELEGRAM_SEEN_TTL" default:"1h"`
	WebhookToken string        `envconfig:"TELEGRAM_WEBHOOK_SECRET" default:""`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Factory is a configured DEX factory contract
type Factory struct {
	Name    string
	Address common.Address
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}

	// intervals and cache ttls; a zero ttl would mean "never expire" on Redis
	durations := map[string]time.Duration{
		"DISCOVERY_DEPLOYMENT_INTERVAL": c.Discovery.DeploymentInterval,
		"DISCOVERY_MINT_INTERVAL":       c.Discovery.MintInterval,
		"DISCOVERY_DEX_INTERVAL":        c.Discovery.DexInterval,
		"DISCOVERY_DEX_API_INTERVAL":    c.Discovery.DexAPIInterval,
		"DISCOVERY_API_INTERVAL":        c.Discovery.APIInterval,
		"TELEGRAM_POLL_INTERVAL":        c.Telegram.PollInterval,
		"API_CACHE_TTL":                 c.API.CacheTTL,
		"DISCOVERY_METADATA_TTL":        c.Discovery.MetadataTTL,
		"DISCOVERY_NEGATIVE_TTL":        c.Discovery.NegativeTTL,
		"DISCOVERY_SEEN_LOG_TTL":        c.Discovery.SeenLogTTL,
		"TELEGRAM_SEEN_TTL":             c.Telegram.SeenTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.API.RateLimitRPS <= 0 {
		return fmt.Errorf("API_RATE_LIMIT_RPS must be positive")
	}
	if c.API.WebhookRPM <= 0 {
		return fmt.Errorf("API_WEBHOOK_RATE_LIMIT_RPM must be positive")
	}
	if c.Discovery.MaxBlocksPerCycle <= 0 {
		return fmt.Errorf("DISCOVERY_MAX_BLOCKS_PER_CYCLE must be positive")
	}
	if c.Discovery.LogBatchSize <= 0 {
		return fmt.Errorf("DISCOVERY_LOG_BATCH_SIZE must be positive")
	}
	if c.Discovery.WorkerCount <= 0 {
		return fmt.Errorf("DISCOVERY_WORKER_COUNT must be positive")
	}

	if _, err := c.Discovery.ParseFactories(); err != nil {
		return err
	}
	for _, addr := range c.Discovery.ReferenceTokens {
		if !common.IsHexAddress(strings.TrimSpace(addr)) {
			return fmt.Errorf("invalid DISCOVERY_REFERENCE_TOKENS entry %q", addr)
		}
	}
	return nil
}

// ParseFactories decodes DISCOVERY_FACTORIES entries
func (c *DiscoveryConfig) ParseFactories() ([]Factory, error) {
	factories := make([]Factory, 0, len(c.Factories))
	for i, raw := range c.Factories {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, addr := fmt.Sprintf("factory-%d", i), raw
		if idx := strings.Index(raw, "="); idx >= 0 {
			name, addr = strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+1:])
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid DISCOVERY_FACTORIES entry %q", raw)
		}
		factories = append(factories, Factory{Name: name, Address: common.HexToAddress(addr)})
	}
	return factories, nil
}

// ReferenceAddresses returns the configured reference asset addresses
func (c *DiscoveryConfig) ReferenceAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.ReferenceTokens))
	for _, addr := range c.ReferenceTokens {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, common.HexToAddress(addr))
		}
	}
	return out
}

// Addr returns the API listen address
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
