package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "gigscope"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
	DefaultEnvFile  = ".env"
)

// Config holds process settings. Runtime settings such as platforms, caps
// and API keys live in the database settings row.
type Config struct {
	DatabaseURL   string `json:"database_url"`
	RedisURL      string `json:"redis_url"`
	EncryptionKey string `json:"encryption_key"`

	// SubscribersURL is the registry endpoint. When empty the subscriptions
	// table is used.
	SubscribersURL   string `json:"subscribers_url"`
	SubscribersToken string `json:"subscribers_token"`

	BaseURL    string `json:"base_url"`
	RenewalURL string `json:"renewal_url"`

	SendDelayMS         int      `json:"send_delay_ms"`
	PlatformConcurrency int      `json:"platform_concurrency"`
	Proxies             []string `json:"proxies"`
	HTTPTimeoutSeconds  int      `json:"http_timeout_seconds"`

	WorkConnectCacheHours int `json:"workconnect_cache_hours"`
	WorkConnectMaxOffers  int `json:"workconnect_max_offers"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:               "http://localhost:3000",
		RenewalURL:            "https://circle.befree.club",
		SendDelayMS:           600,
		PlatformConcurrency:   1,
		HTTPTimeoutSeconds:    30,
		WorkConnectCacheHours: 2,
		WorkConnectMaxOffers:  50,
	}
}

func (c Config) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMS) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) WorkConnectCacheTTL() time.Duration {
	return time.Duration(c.WorkConnectCacheHours) * time.Hour
}

func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

// LoadEnvFile exports the variables of a dotenv file without overriding the
// ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the config file at path (the default location when path is
// empty). GIGSCOPE_* variables override file values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	case len(strings.TrimSpace(string(data))) > 0:
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = envString("GIGSCOPE_DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envString("GIGSCOPE_REDIS_URL", cfg.RedisURL)
	cfg.EncryptionKey = envString("GIGSCOPE_ENCRYPTION_KEY", cfg.EncryptionKey)
	cfg.SubscribersURL = envString("GIGSCOPE_SUBSCRIBERS_URL", cfg.SubscribersURL)
	cfg.SubscribersToken = envString("GIGSCOPE_SUBSCRIBERS_TOKEN", cfg.SubscribersToken)
	cfg.BaseURL = envString("GIGSCOPE_BASE_URL", cfg.BaseURL)
	cfg.RenewalURL = envString("GIGSCOPE_RENEWAL_URL", cfg.RenewalURL)
	cfg.SendDelayMS = envInt("GIGSCOPE_SEND_DELAY_MS", cfg.SendDelayMS)
	cfg.PlatformConcurrency = envInt("GIGSCOPE_PLATFORM_CONCURRENCY", cfg.PlatformConcurrency)
	cfg.HTTPTimeoutSeconds = envInt("GIGSCOPE_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.WorkConnectCacheHours = envInt("GIGSCOPE_WORKCONNECT_CACHE_HOURS", cfg.WorkConnectCacheHours)
	cfg.WorkConnectMaxOffers = envInt("GIGSCOPE_WORKCONNECT_MAX_OFFERS", cfg.WorkConnectMaxOffers)
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	var created []string

	dir, err := ConfigDir()
	if err != nil {
		return created, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte(""), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// LoadProxies resolves proxies from the flag, GIGSCOPE_PROXIES, the config
// file and proxies.txt, first non-empty wins.
func LoadProxies(flagValue string, cfg Config) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("GIGSCOPE_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	if len(cfg.Proxies) > 0 {
		return splitCSV(strings.Join(cfg.Proxies, ",")), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
