package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a field is missing. The initial rate prices one
// whole token at 41,000,000,000,000 native units; the increment and pool
// seeding are genesis parameters, not governed values.
const (
	DefaultChainID          uint64 = 770077
	DefaultListenAddress           = ":8645"
	DefaultDataDir                 = "./monorite-data"
	DefaultInitialRate             = "41000000000000"
	DefaultInitialIncrement        = "1000000000"
	DefaultGenesisNative           = "0"
	DefaultGenesisTokens           = "770000000000000000000"
)

// Config carries the daemon's startup parameters.
type Config struct {
	ChainID          uint64 `toml:"ChainID"`
	ListenAddress    string `toml:"ListenAddress"`
	DataDir          string `toml:"DataDir"`
	Environment      string `toml:"Environment"`
	InitialRate      string `toml:"InitialRate"`
	InitialIncrement string `toml:"InitialIncrement"`
	GenesisNative    string `toml:"GenesisNative"`
	GenesisTokens    string `toml:"GenesisTokens"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(cfg.InitialRate) == "" {
		cfg.InitialRate = DefaultInitialRate
	}
	if strings.TrimSpace(cfg.InitialIncrement) == "" {
		cfg.InitialIncrement = DefaultInitialIncrement
	}
	if strings.TrimSpace(cfg.GenesisNative) == "" {
		cfg.GenesisNative = DefaultGenesisNative
	}
	if strings.TrimSpace(cfg.GenesisTokens) == "" {
		cfg.GenesisTokens = DefaultGenesisTokens
	}
}

func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"InitialRate":      cfg.InitialRate,
		"InitialIncrement": cfg.InitialIncrement,
		"GenesisNative":    cfg.GenesisNative,
		"GenesisTokens":    cfg.GenesisTokens,
	} {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok || v.Sign() < 0 {
			return fmt.Errorf("config: %s must be a non-negative decimal integer, got %q", name, value)
		}
	}
	rate, _ := new(big.Int).SetString(cfg.InitialRate, 10)
	if rate.Sign() == 0 {
		return fmt.Errorf("config: InitialRate must be positive")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write defaults to %s: %w", path, err)
	}
	return cfg, nil
}

// BigField parses one of the decimal big-integer fields.
func BigField(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
