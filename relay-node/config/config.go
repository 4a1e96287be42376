package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"

	"github.com/cosmwasm-lightclient/relayer/relay-service/cosmwasm"
	"github.com/cosmwasm-lightclient/relayer/relay-service/explorer"
	"github.com/cosmwasm-lightclient/relayer/relay-service/rpcsource"
)

const DefaultExplorerURL = "https://api.polygonscan.com/api"

// Schedule controls when cycles run and how far back they look. It is the
// only part of the config that is reloaded at runtime.
type Schedule struct {
	Lookback   time.Duration `toml:"lookback"`
	Interval   time.Duration `toml:"interval"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

func (s Schedule) Check() error {
	var result *multierror.Error
	if s.Lookback <= 0 {
		result = multierror.Append(result, errors.New("lookback must be positive"))
	}
	if s.Interval <= 0 {
		result = multierror.Append(result, errors.New("interval must be positive"))
	}
	if s.RetryDelay <= 0 {
		result = multierror.Append(result, errors.New("retry delay must be positive"))
	}
	return result.ErrorOrNil()
}

// SourceConfig selects where light-client transactions are read from. The
// JSON-RPC source is used when RPCURL is set, the explorer otherwise.
type SourceConfig struct {
	Contract common.Address `toml:"contract"`

	ExplorerURL    string  `toml:"explorer_url"`
	ExplorerAPIKey string  `toml:"explorer_api_key"`
	ExplorerRate   float64 `toml:"explorer_rate"`

	RPCURL        string `toml:"rpc_url"`
	MaxBlockRange uint64 `toml:"max_block_range"`
}

func (s *SourceConfig) UseRPC() bool {
	return s.RPCURL != ""
}

type DestinationConfig struct {
	GRPCAddr      string        `toml:"grpc_addr"`
	Insecure      bool          `toml:"insecure"`
	ChainID       string        `toml:"chain_id"`
	Contract      string        `toml:"contract"`
	Prefix        string        `toml:"prefix"`
	Mnemonic      string        `toml:"mnemonic"`
	GasMultiplier float64       `toml:"gas_multiplier"`
	GasPrice      string        `toml:"gas_price"`
	FeeDenom      string        `toml:"fee_denom"`
	Memo          string        `toml:"memo"`
	Timeout       time.Duration `toml:"timeout"`
}

func (d *DestinationConfig) CosmWasm() cosmwasm.Config {
	return cosmwasm.Config{
		GRPCAddr:      d.GRPCAddr,
		Insecure:      d.Insecure,
		ChainID:       d.ChainID,
		Contract:      d.Contract,
		Prefix:        d.Prefix,
		Mnemonic:      d.Mnemonic,
		GasMultiplier: d.GasMultiplier,
		GasPrice:      d.GasPrice,
		FeeDenom:      d.FeeDenom,
		Memo:          d.Memo,
		Timeout:       d.Timeout,
	}
}

type ProfileConfig struct {
	// Mode is one of cpu, mem, block, mutex, goroutine or empty to disable.
	Mode string `toml:"mode"`
	Dir  string `toml:"dir"`
}

var ProfileModes = []string{"cpu", "mem", "block", "mutex", "goroutine"}

type Config struct {
	Schedule    Schedule          `toml:"schedule"`
	Source      SourceConfig      `toml:"source"`
	Destination DestinationConfig `toml:"destination"`

	// DryRun logs messages instead of submitting them.
	DryRun     bool `toml:"dry_run"`
	CurveCheck bool `toml:"curve_check"`

	AdminAddr string        `toml:"admin_addr"`
	Profile   ProfileConfig `toml:"profile"`
}

// Default returns the config used when neither a file nor a flag sets an
// option. Credentials and addresses have no default.
func Default() *Config {
	return &Config{
		Schedule: Schedule{
			Lookback:   30 * time.Minute,
			Interval:   10 * time.Minute,
			RetryDelay: time.Minute,
		},
		Source: SourceConfig{
			ExplorerURL:   DefaultExplorerURL,
			ExplorerRate:  explorer.DefaultRateLimit,
			MaxBlockRange: rpcsource.DefaultMaxBlockRange,
		},
		Destination: DestinationConfig{
			Prefix:        "osmo",
			GasMultiplier: cosmwasm.DefaultGasMultiplier,
			GasPrice:      cosmwasm.DefaultGasPrice,
			FeeDenom:      cosmwasm.DefaultFeeDenom,
			Timeout:       cosmwasm.DefaultTimeout,
		},
		AdminAddr: "127.0.0.1:7300",
	}
}

// ConfigError lists every problem found in a config.
type ConfigError struct {
	Problems []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

func (e *ConfigError) Unwrap() []error {
	return e.Problems
}

// Check validates the config for running the relay loop.
func (c *Config) Check() error {
	result := c.checkSource()
	if !c.DryRun {
		result = multierror.Append(result, c.CheckDestination())
	}
	return toConfigError(result)
}

func (c *Config) checkSource() *multierror.Error {
	var result *multierror.Error
	if err := c.Schedule.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Source.Contract == (common.Address{}) {
		result = multierror.Append(result, errors.New("missing source contract address"))
	}
	if c.Source.UseRPC() {
		if c.Source.MaxBlockRange == 0 {
			result = multierror.Append(result, errors.New("max block range must be positive"))
		}
	} else {
		if c.Source.ExplorerURL == "" {
			result = multierror.Append(result, errors.New("missing explorer url"))
		}
		if c.Source.ExplorerAPIKey == "" {
			result = multierror.Append(result, errors.New("missing explorer api key"))
		}
	}
	if c.AdminAddr != "" {
		if _, _, err := net.SplitHostPort(c.AdminAddr); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid admin address: %w", err))
		}
	}
	if c.Profile.Mode != "" && !slices.Contains(ProfileModes, c.Profile.Mode) {
		result = multierror.Append(result, fmt.Errorf("unknown profile mode %q", c.Profile.Mode))
	}
	return result
}

// CheckDestination validates only the destination chain options, for
// commands that talk to the verifier contract without scanning.
func (c *Config) CheckDestination() error {
	cfg := c.Destination.CosmWasm()
	if err := cfg.Check(); err != nil {
		return toConfigError(multierror.Append(nil, err))
	}
	return nil
}

func toConfigError(result *multierror.Error) error {
	if result.ErrorOrNil() == nil {
		return nil
	}
	var problems []error
	for _, err := range result.Errors {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
			continue
		}
		problems = append(problems, err)
	}
	return &ConfigError{Problems: problems}
}

// LoadFile decodes the TOML file at path over cfg. Options missing from the
// file keep their current value; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	bz, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	md, err := toml.Decode(string(bz), cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}
