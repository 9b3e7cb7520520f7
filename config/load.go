package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	ChainID string        `yaml:"chainID"`
	Node    NodeConfig    `yaml:"node"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Swap    SwapConfig    `yaml:"swap"`
	Query   QueryConfig   `yaml:"query"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type NodeConfig struct {
	WSEndpoint      string `yaml:"wsEndpoint"`
	LCDEndpoint     string `yaml:"lcdEndpoint"`
	FactoryContract string `yaml:"factoryContract"`
}

type WalletConfig struct {
	Address string `yaml:"address"`
}

// SwapConfig 兑换侧的可热更参数。
type SwapConfig struct {
	SlippageTolerance float64 `yaml:"slippageTolerance"` // 成交价允许的最大偏离比例
	DefaultFromToken  string  `yaml:"defaultFromToken"`
	DefaultToToken    string  `yaml:"defaultToToken"`
}

// QueryConfig 链查询限速，防止事件风暴打爆节点。
type QueryConfig struct {
	RatePerSec float64 `yaml:"ratePerSec"`
	Burst      int     `yaml:"burst"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment-specific
// fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("SS_WALLET_ADDRESS"); v != "" {
		cfg.Wallet.Address = v
	}
	if v := os.Getenv("SS_WS_ENDPOINT"); v != "" {
		cfg.Node.WSEndpoint = v
	}
	if v := os.Getenv("SS_LCD_ENDPOINT"); v != "" {
		cfg.Node.LCDEndpoint = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Swap.SlippageTolerance == 0 {
		cfg.Swap.SlippageTolerance = 0.005
	}
	if cfg.Query.RatePerSec == 0 {
		cfg.Query.RatePerSec = 10
	}
	if cfg.Query.Burst == 0 {
		cfg.Query.Burst = 20
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.ChainID == "" {
		return errors.New("chainID is required")
	}
	if !strings.HasPrefix(cfg.Node.WSEndpoint, "ws://") && !strings.HasPrefix(cfg.Node.WSEndpoint, "wss://") {
		return fmt.Errorf("node.wsEndpoint must be a ws:// or wss:// URL, got %q", cfg.Node.WSEndpoint)
	}
	if cfg.Node.LCDEndpoint == "" {
		return errors.New("node.lcdEndpoint is required")
	}
	if cfg.Node.FactoryContract == "" {
		return errors.New("node.factoryContract is required")
	}
	if cfg.Wallet.Address == "" {
		return errors.New("wallet.address is required (or SS_WALLET_ADDRESS)")
	}
	if cfg.Swap.SlippageTolerance <= 0 || cfg.Swap.SlippageTolerance >= 0.5 {
		return fmt.Errorf("swap.slippageTolerance must be in (0, 0.5), got %g", cfg.Swap.SlippageTolerance)
	}
	if cfg.Query.RatePerSec <= 0 {
		return errors.New("query.ratePerSec must be > 0")
	}
	if cfg.Query.Burst <= 0 {
		return errors.New("query.burst must be > 0")
	}
	return nil
}
