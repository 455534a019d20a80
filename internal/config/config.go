// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime knob of the server. Values come from the defaults below, then the
// optional YAML file, then environment variables.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	NATSURL     string `yaml:"nats_url"`
	NATSPrefix  string `yaml:"nats_prefix"`

	Generator struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"generator"`

	Sweeper struct {
		Period    time.Duration `yaml:"period"`
		Threshold time.Duration `yaml:"threshold"`
	} `yaml:"sweeper"`

	Timer struct {
		InitialDelay time.Duration `yaml:"initial_delay"`
		Period       time.Duration `yaml:"period"`
	} `yaml:"timer"`

	TokenExpiry time.Duration `yaml:"token_expiry"`
	// TokenPrivateKey and TokenPublicKey are raw ed25519 key files; a fresh pair is generated at
	// startup when unset.
	TokenPrivateKey string `yaml:"token_private_key"`
	TokenPublicKey  string `yaml:"token_public_key"`

	// AllowedOrigins are the WebSocket origin patterns accepted besides same-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// PregenerateWords is how many random combinations to compute at startup.
	PregenerateWords int `yaml:"pregenerate_words"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		Addr:        ":8080",
		LogLevel:    "info",
		NATSPrefix:  "fusion",
		TokenExpiry: 24 * time.Hour,
	}
	c.Generator.Timeout = 10 * time.Second
	c.Sweeper.Period = time.Minute
	c.Sweeper.Threshold = 30 * time.Minute
	c.Timer.InitialDelay = 3 * time.Second
	c.Timer.Period = 10 * time.Second
	return c
}

// Load builds the configuration. path may be empty, in which case FUSION_CONFIG is consulted;
// a missing file is not an error when no path was requested explicitly.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("FUSION_CONFIG")
		explicit = path != ""
	}
	if explicit {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	c.Addr = getEnv("ADDR", c.Addr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSPrefix = getEnv("NATS_PREFIX", c.NATSPrefix)
	c.Generator.URL = getEnv("GENERATOR_URL", c.Generator.URL)
	c.Generator.Timeout = getEnvDuration("GENERATOR_TIMEOUT", c.Generator.Timeout)
	c.Sweeper.Period = getEnvDuration("SWEEP_PERIOD", c.Sweeper.Period)
	c.Sweeper.Threshold = getEnvDuration("SWEEP_THRESHOLD", c.Sweeper.Threshold)
	c.Timer.InitialDelay = getEnvDuration("TIMER_INITIAL_DELAY", c.Timer.InitialDelay)
	c.Timer.Period = getEnvDuration("TIMER_PERIOD", c.Timer.Period)
	c.TokenExpiry = getEnvDuration("TOKEN_EXPIRY", c.TokenExpiry)
	c.PregenerateWords = getEnvInt("PREGENERATE_WORDS", c.PregenerateWords)
	c.TokenPrivateKey = getEnv("TOKEN_PRIVATE_KEY", c.TokenPrivateKey)
	c.TokenPublicKey = getEnv("TOKEN_PUBLIC_KEY", c.TokenPublicKey)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Timer.Period <= 0 {
		return fmt.Errorf("timer period must be positive, got %s", c.Timer.Period)
	}
	if c.Timer.InitialDelay < 0 {
		return fmt.Errorf("timer initial delay must not be negative, got %s", c.Timer.InitialDelay)
	}
	if c.Sweeper.Period <= 0 || c.Sweeper.Threshold <= 0 {
		return fmt.Errorf("sweeper period and threshold must be positive")
	}
	if (c.TokenPrivateKey == "") != (c.TokenPublicKey == "") {
		return fmt.Errorf("token private and public key must be set together")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("generator timeout must be positive, got %s", c.Generator.Timeout)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
