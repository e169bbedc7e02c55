package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type NetworkConfig struct {
	RPCURL  string `yaml:"rpcUrl"`
	ChainID int64  `yaml:"chainId"`
}

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Generate RateLimitBucketConfig `yaml:"generate"`
	Mint     RateLimitBucketConfig `yaml:"mint"`
}

type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Env       string `yaml:"env"`

	OutputDir string `yaml:"outputDir"`

	GenerationProvider string `yaml:"generationProvider"`
	GoogleAPIKey       string `yaml:"googleApiKey"`
	GeminiModel        string `yaml:"geminiModel"`
	OpenAIAPIKey       string `yaml:"openaiApiKey"`
	OpenAIModel        string `yaml:"openaiModel"`
	MinPromptLength    int    `yaml:"minPromptLength"`
	BatchMaxPrompts    int    `yaml:"batchMaxPrompts"`
	BatchConcurrency   int    `yaml:"batchConcurrency"`

	PinataJWT            string `yaml:"pinataJwt"`
	PinataBaseURL        string `yaml:"pinataBaseUrl"`
	PinataGatewayURL     string `yaml:"pinataGatewayUrl"`
	PinataTimeoutSeconds int    `yaml:"pinataTimeoutSeconds"`

	PrivateKey            string                   `yaml:"privateKey"`
	ContractAddress       string                   `yaml:"contractAddress"`
	DefaultNetwork        string                   `yaml:"defaultNetwork"`
	Networks              map[string]NetworkConfig `yaml:"networks"`
	ReceiptTimeoutSeconds int                      `yaml:"receiptTimeoutSeconds"`
	GasHeadroomPercent    int                      `yaml:"gasHeadroomPercent"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`

	MintAuthProvider string         `yaml:"mintAuthProvider"`
	MintAuthConfig   map[string]any `yaml:"mintAuthConfig"`

	TracingEnabled   bool    `yaml:"tracingEnabled"`
	OTLPEndpoint     string  `yaml:"otlpEndpoint"`
	OTLPInsecure     bool    `yaml:"otlpInsecure"`
	TraceSampleRatio float64 `yaml:"traceSampleRatio"`

	RunRetentionSeconds int `yaml:"runRetentionSeconds"`
}

// Well-known networks. RPC URLs come from config or <NAME>_RPC_URL.
var defaultNetworks = map[string]NetworkConfig{
	"mainnet":       {ChainID: 1},
	"sepolia":       {ChainID: 11155111},
	"holesky":       {ChainID: 17000},
	"goerli":        {ChainID: 5},
	"polygon":       {ChainID: 137},
	"amoy":          {ChainID: 80002},
	"ganache-local": {ChainID: 1337, RPCURL: "http://127.0.0.1:8545"},
}

// LoadConfigOptional loads filePath when it exists and falls back to env + defaults otherwise.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return finalize(&Config{}), nil
	}
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return finalize(&Config{}), nil
	}
	return LoadConfig(filePath)
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return finalize(&c), nil
}

func finalize(c *Config) *Config {
	applyEnv(c)
	applyDefaults(c)
	log.Printf("nftminter config: {Port:%d Env:%s Provider:%s Output:%s Network:%s Contract:%s Redis:%s Pinata:%t Key:%t}\n",
		c.Port, c.Env, c.GenerationProvider, c.OutputDir, c.DefaultNetwork, c.ContractAddress, c.RedisAddr,
		c.PinataJWT != "", c.PrivateKey != "")
	return c
}

func applyEnv(c *Config) {
	setInt(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.Env, "ENV")
	setString(&c.OutputDir, "OUTPUT_DIR")
	setString(&c.GenerationProvider, "GENERATION_PROVIDER")
	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIModel, "OPENAI_IMAGE_MODEL")
	setInt(&c.BatchConcurrency, "BATCH_CONCURRENCY")
	setString(&c.PinataJWT, "PINATA_JWT")
	setString(&c.PinataBaseURL, "PINATA_BASE_URL")
	setString(&c.PinataGatewayURL, "PINATA_GATEWAY_URL")
	setString(&c.PrivateKey, "PRIVATE_KEY")
	setString(&c.ContractAddress, "CONTRACT_ADDRESS")
	setString(&c.DefaultNetwork, "DEFAULT_NETWORK")
	setInt(&c.ReceiptTimeoutSeconds, "RECEIPT_TIMEOUT_SECONDS")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if v := strings.TrimSpace(os.Getenv("OTEL_ENABLED")); v != "" {
		c.TracingEnabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("MINT_AUTH_TOKEN")); v != "" {
		c.MintAuthProvider = "static"
		c.MintAuthConfig = map[string]any{"token": v}
	}
}

func applyDefaults(c *Config) {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.OutputDir == "" {
		c.OutputDir = "generated_nfts"
	}
	if c.GenerationProvider == "" {
		c.GenerationProvider = "gemini"
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.5-flash-image"
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = "dall-e-3"
	}
	if c.MinPromptLength <= 0 {
		c.MinPromptLength = 3
	}
	if c.BatchMaxPrompts <= 0 {
		c.BatchMaxPrompts = 10
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 1
	}
	if c.PinataBaseURL == "" {
		c.PinataBaseURL = "https://api.pinata.cloud"
	}
	if c.PinataGatewayURL == "" {
		c.PinataGatewayURL = "https://gateway.pinata.cloud"
	}
	if c.PinataTimeoutSeconds <= 0 {
		c.PinataTimeoutSeconds = 120
	}
	if c.DefaultNetwork == "" {
		c.DefaultNetwork = "sepolia"
	}
	if c.ReceiptTimeoutSeconds <= 0 {
		c.ReceiptTimeoutSeconds = 300
	}
	if c.GasHeadroomPercent <= 0 {
		c.GasHeadroomPercent = 20
	}
	if c.TraceSampleRatio <= 0 || c.TraceSampleRatio > 1 {
		c.TraceSampleRatio = 1
	}
	if c.RunRetentionSeconds <= 0 {
		c.RunRetentionSeconds = 3600
	}

	if c.Networks == nil {
		c.Networks = map[string]NetworkConfig{}
	}
	for name, def := range defaultNetworks {
		n, ok := c.Networks[name]
		if !ok {
			n = def
		}
		if n.ChainID == 0 {
			n.ChainID = def.ChainID
		}
		if n.RPCURL == "" {
			n.RPCURL = def.RPCURL
		}
		c.Networks[name] = n
	}
	for name, n := range c.Networks {
		if v := strings.TrimSpace(os.Getenv(networkEnvKey(name))); v != "" {
			n.RPCURL = v
			c.Networks[name] = n
		}
	}
}

func networkEnvKey(name string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return key + "_RPC_URL"
}

func (c *Config) ImagesDir() string   { return filepath.Join(c.OutputDir, "images") }
func (c *Config) MetadataDir() string { return filepath.Join(c.OutputDir, "metadata") }

func (c *Config) GenerationConfigured() bool {
	switch c.GenerationProvider {
	case "openai":
		return strings.TrimSpace(c.OpenAIAPIKey) != ""
	default:
		return strings.TrimSpace(c.GoogleAPIKey) != ""
	}
}

func (c *Config) StorageConfigured() bool { return strings.TrimSpace(c.PinataJWT) != "" }

func (c *Config) ChainConfigured() bool {
	return strings.TrimSpace(c.PrivateKey) != "" && strings.TrimSpace(c.ContractAddress) != ""
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}
	switch c.GenerationProvider {
	case "gemini", "openai":
	default:
		errs = append(errs, "generationProvider must be one of: gemini, openai")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, "logFormat must be json or text")
	}
	if c.BatchMaxPrompts > 10 {
		errs = append(errs, "batchMaxPrompts cannot exceed 10")
	}
	if c.BatchConcurrency > c.BatchMaxPrompts {
		errs = append(errs, "batchConcurrency cannot exceed batchMaxPrompts")
	}
	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		errs = append(errs, "contractAddress must be a 0x-prefixed 20-byte hex address")
	}
	if _, ok := c.Networks[c.DefaultNetwork]; !ok {
		errs = append(errs, fmt.Sprintf("defaultNetwork %q is not a configured network", c.DefaultNetwork))
	}
	for name, n := range c.Networks {
		if n.RPCURL == "" {
			continue
		}
		u, err := url.Parse(n.RPCURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Sprintf("networks.%s.rpcUrl must be an http(s) or ws(s) URL", name))
		}
	}
	if c.ChainConfigured() && c.MintAuthProvider == "" && !dev {
		errs = append(errs, "mintAuthProvider is required in non-dev when minting is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
