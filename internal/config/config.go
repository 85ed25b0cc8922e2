// Package config loads the keeper's settings from an optional .env file and the process
// environment. Environment variables win over the file, and the file wins over defaults.
//
// Struct fields map to env variables through their config tag, e.g. RPC_URL.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
)

const (
	DefaultPollIntervalSecs   = 10
	DefaultKeypairPath        = "~/.config/solana/id.json"
	DefaultConfirmTimeoutSecs = 60
	DefaultStatusPort         = "4050"
)

type Config struct {
	RPCURL           string `config:"RPC_URL"`
	PollIntervalSecs uint64 `config:"POLL_INTERVAL_SECS"`
	// TargetAccount is the id of the program the keeper drives.
	TargetAccount string `config:"TARGET_ACCOUNT"`
	KeypairPath   string `config:"KEYPAIR_PATH"`
	// CustomPDA is an optional oracle queue account passed to resolve.
	CustomPDA string `config:"CUSTOM_PDA"`
	Mode      string `config:"KEEPER_MODE"`

	SubmitMaxAttempts  int    `config:"SUBMIT_MAX_ATTEMPTS"`
	SubmitRetryDelayMs uint64 `config:"SUBMIT_RETRY_DELAY_MS"`
	ConfirmTimeoutSecs uint64 `config:"CONFIRM_TIMEOUT_SECS"`

	// The journal is kept in memory when RedisAddress is empty.
	RedisAddress  string `config:"REDIS_ADDRESS"`
	RedisPassword string `config:"REDIS_PASSWORD"`

	// Metrics are dropped when StatsdAddress is empty.
	StatsdAddress string `config:"STATSD_ADDRESS"`
	// StatusPort is the port of the status server. Empty disables it.
	StatusPort string `config:"STATUS_PORT"`
}

func defaultConfig() Config {
	return Config{
		PollIntervalSecs:   DefaultPollIntervalSecs,
		KeypairPath:        DefaultKeypairPath,
		Mode:               string(keeper.ModeShared),
		SubmitMaxAttempts:  ledger.DefaultMaxAttempts,
		SubmitRetryDelayMs: uint64(ledger.DefaultRetryDelay / time.Millisecond),
		ConfirmTimeoutSecs: DefaultConfirmTimeoutSecs,
		StatusPort:         DefaultStatusPort,
	}
}

// Load reads envFile, if it exists, then the process environment, and validates the result. An
// empty envFile reads the environment only.
func Load(envFile string) (Config, error) {
	cfg := defaultConfig()

	builder := jlconfig.FromEnv()
	if envFile != "" {
		_, err := os.Stat(envFile)
		switch {
		case err == nil:
			builder = jlconfig.From(envFile).FromEnv()
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, eris.Wrapf(err, "failed to read env file %s", envFile)
		}
	}
	if err := builder.To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.RPCURL == "" {
		return eris.New("RPC_URL is required")
	}
	if cfg.TargetAccount == "" {
		return eris.New("TARGET_ACCOUNT is required")
	}
	if cfg.PollIntervalSecs == 0 {
		return eris.New("POLL_INTERVAL_SECS must be positive")
	}
	if cfg.KeypairPath == "" {
		return eris.New("KEYPAIR_PATH cannot be empty")
	}
	if _, err := keeper.ParseMode(cfg.Mode); err != nil {
		return eris.Wrap(err, "invalid KEEPER_MODE")
	}
	if cfg.SubmitMaxAttempts < 1 {
		return eris.New("SUBMIT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.ConfirmTimeoutSecs == 0 {
		return eris.New("CONFIRM_TIMEOUT_SECS must be positive")
	}
	if cfg.StatusPort != "" {
		port, err := strconv.ParseUint(cfg.StatusPort, 10, 16)
		if err != nil || port == 0 {
			return eris.Errorf("STATUS_PORT must be a port number, got %q", cfg.StatusPort)
		}
	}
	return nil
}

// Options is the parsed form of Config, ready to hand to the keeper's components.
type Options struct {
	RPCURL         string
	Program        solana.PublicKey
	OracleQueue    solana.PublicKey
	Interval       time.Duration
	Mode           keeper.Mode
	KeypairPath    string
	Retry          ledger.RetryPolicy
	ConfirmTimeout time.Duration
	RedisAddress   string
	RedisPassword  string
	StatsdAddress  string
	StatusPort     string
}

// Options parses the account keys and durations in cfg.
func (cfg *Config) Options() (Options, error) {
	program, err := solana.PublicKeyFromBase58(cfg.TargetAccount)
	if err != nil {
		return Options{}, eris.Wrapf(err, "TARGET_ACCOUNT %q is not a valid public key", cfg.TargetAccount)
	}

	var queue solana.PublicKey
	if cfg.CustomPDA != "" {
		queue, err = solana.PublicKeyFromBase58(cfg.CustomPDA)
		if err != nil {
			return Options{}, eris.Wrapf(err, "CUSTOM_PDA %q is not a valid public key", cfg.CustomPDA)
		}
	}

	mode, err := keeper.ParseMode(cfg.Mode)
	if err != nil {
		return Options{}, err
	}

	keypairPath, err := expandHome(cfg.KeypairPath)
	if err != nil {
		return Options{}, err
	}

	return Options{
		RPCURL:      cfg.RPCURL,
		Program:     program,
		OracleQueue: queue,
		Interval:    time.Duration(cfg.PollIntervalSecs) * time.Second, //nolint:gosec // small values
		Mode:        mode,
		KeypairPath: keypairPath,
		Retry: ledger.RetryPolicy{
			MaxAttempts: cfg.SubmitMaxAttempts,
			Delay:       time.Duration(cfg.SubmitRetryDelayMs) * time.Millisecond, //nolint:gosec // small values
		},
		ConfirmTimeout: time.Duration(cfg.ConfirmTimeoutSecs) * time.Second, //nolint:gosec // small values
		RedisAddress:   cfg.RedisAddress,
		RedisPassword:  cfg.RedisPassword,
		StatsdAddress:  cfg.StatsdAddress,
		StatusPort:     cfg.StatusPort,
	}, nil
}

// LoadSigner reads a keypair file in the ledger CLI's JSON byte-array format.
func LoadSigner(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load keypair from %s", path)
	}
	return key, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
