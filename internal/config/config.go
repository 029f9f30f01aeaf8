// Package config loads CLI settings from an optional YAML file and CHAINKEY_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/mahdiidarabi/chainkey/internal/logging"
	"github.com/mahdiidarabi/chainkey/pkg/chain"
	"github.com/mahdiidarabi/chainkey/pkg/keystore"
)

const (
	// PathEnv names a config file to load when no path is given explicitly.
	PathEnv = "CHAINKEY_CONFIG"
)

// Config holds everything the CLI needs that is not a per-command flag.
type Config struct {
	// Chain is a preset name (legacy, mainnet, moac, moac-testnet) or a
	// decimal chain id.
	Chain       string `yaml:"chain" env:"CHAINKEY_CHAIN" env-default:"legacy"`
	KeystoreDir string `yaml:"keystore_dir" env:"CHAINKEY_KEYSTORE_DIR"`

	KDF     string `yaml:"kdf" env:"CHAINKEY_KDF" env-default:"scrypt"` // scrypt, scrypt-light or pbkdf2
	ScryptN int    `yaml:"scrypt_n" env:"CHAINKEY_SCRYPT_N"`
	ScryptR int    `yaml:"scrypt_r" env:"CHAINKEY_SCRYPT_R"`
	ScryptP int    `yaml:"scrypt_p" env:"CHAINKEY_SCRYPT_P"`
	PBKDF2C int    `yaml:"pbkdf2_iterations" env:"CHAINKEY_PBKDF2_ITERATIONS"`

	Workers int `yaml:"workers" env:"CHAINKEY_WORKERS"`

	Log logging.Config `yaml:"log"`
}

// Load reads path (if non-empty, else $CHAINKEY_CONFIG if set) and then the
// environment. Environment values win over the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathEnv)
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if cfg.KeystoreDir == "" {
		cfg.KeystoreDir = DefaultKeystoreDir()
	}
	return &cfg, nil
}

// DefaultKeystoreDir is ~/.chainkey/keystore, or ./keystore when the home
// directory is unknown.
func DefaultKeystoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "keystore"
	}
	return filepath.Join(home, ".chainkey", "keystore")
}

// ChainParams resolves the configured chain.
func (c *Config) ChainParams() (chain.Params, error) {
	return chain.Preset(c.Chain)
}

// KDFConfig resolves the configured key derivation, applying cost overrides.
func (c *Config) KDFConfig() (keystore.KDFConfig, error) {
	var kdf keystore.KDFConfig
	switch c.KDF {
	case "", "scrypt":
		kdf = keystore.StandardScrypt()
	case "scrypt-light", "light":
		kdf = keystore.LightScrypt()
	case "pbkdf2":
		kdf = keystore.StandardPBKDF2()
	default:
		return keystore.KDFConfig{}, fmt.Errorf("unknown kdf %q", c.KDF)
	}

	if kdf.KDF == keystore.KDFScrypt {
		if c.ScryptN > 0 {
			kdf.N = c.ScryptN
		}
		if c.ScryptR > 0 {
			kdf.R = c.ScryptR
		}
		if c.ScryptP > 0 {
			kdf.P = c.ScryptP
		}
	} else if c.PBKDF2C > 0 {
		kdf.C = c.PBKDF2C
	}

	if err := kdf.Validate(); err != nil {
		return keystore.KDFConfig{}, err
	}
	return kdf, nil
}
