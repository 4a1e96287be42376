package flags

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/cosmwasm-lightclient/relayer/relay-node/config"
	oplog "github.com/cosmwasm-lightclient/relayer/relay-service/log"
)

const EnvVarPrefix = "RELAYER"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	ConfigFile = &cli.PathFlag{
		Name:    "config",
		Usage:   "TOML config file. Flags and environment variables override its values",
		EnvVars: prefixEnvVars("CONFIG"),
	}

	/* Schedule */
	Lookback = &cli.DurationFlag{
		Name:    "lookback",
		Usage:   "How far back each cycle scans for updates",
		EnvVars: prefixEnvVars("LOOKBACK"),
	}
	Interval = &cli.DurationFlag{
		Name:    "interval",
		Usage:   "Time between the start of two cycles",
		EnvVars: prefixEnvVars("INTERVAL"),
	}
	RetryDelay = &cli.DurationFlag{
		Name:    "retry-delay",
		Usage:   "Delay before retrying a cycle that failed to read the source chain",
		EnvVars: prefixEnvVars("RETRY_DELAY"),
	}

	/* Source chain */
	SourceContract = &cli.StringFlag{
		Name:    "source.contract",
		Usage:   "Address of the light-client contract on the source chain",
		EnvVars: prefixEnvVars("SOURCE_CONTRACT"),
	}
	ExplorerURL = &cli.StringFlag{
		Name:    "explorer.url",
		Usage:   "Etherscan-compatible explorer API endpoint",
		EnvVars: prefixEnvVars("EXPLORER_URL"),
	}
	ExplorerAPIKey = &cli.StringFlag{
		Name:    "explorer.api-key",
		Usage:   "Explorer API key",
		EnvVars: append(prefixEnvVars("EXPLORER_API_KEY"), "POLYGONSCAN_API_KEY"),
	}
	ExplorerRate = &cli.Float64Flag{
		Name:    "explorer.rate",
		Usage:   "Maximum explorer requests per second, 0 for unlimited",
		EnvVars: prefixEnvVars("EXPLORER_RATE"),
	}
	RPCURL = &cli.StringFlag{
		Name:    "rpc.url",
		Usage:   "Source chain JSON-RPC endpoint. When set it replaces the explorer",
		EnvVars: prefixEnvVars("RPC_URL"),
	}
	MaxBlockRange = &cli.Uint64Flag{
		Name:    "rpc.max-block-range",
		Usage:   "Maximum number of blocks walked per cycle by the JSON-RPC source",
		EnvVars: prefixEnvVars("RPC_MAX_BLOCK_RANGE"),
	}

	/* Destination chain */
	GRPCAddr = &cli.StringFlag{
		Name:    "dest.grpc",
		Usage:   "gRPC address (host:port) of the destination chain",
		EnvVars: prefixEnvVars("DEST_GRPC"),
	}
	GRPCInsecure = &cli.BoolFlag{
		Name:    "dest.grpc-insecure",
		Usage:   "Dial the destination chain without TLS",
		EnvVars: prefixEnvVars("DEST_GRPC_INSECURE"),
	}
	ChainID = &cli.StringFlag{
		Name:    "dest.chain-id",
		Usage:   "Chain ID of the destination chain",
		EnvVars: prefixEnvVars("DEST_CHAIN_ID"),
	}
	VerifierContract = &cli.StringFlag{
		Name:    "dest.contract",
		Usage:   "Bech32 address of the verifier contract",
		EnvVars: prefixEnvVars("DEST_CONTRACT"),
	}
	Prefix = &cli.StringFlag{
		Name:    "dest.prefix",
		Usage:   "Bech32 account prefix of the destination chain",
		EnvVars: prefixEnvVars("DEST_PREFIX"),
	}
	Mnemonic = &cli.StringFlag{
		Name:    "dest.mnemonic",
		Usage:   "Mnemonic of the submitting account",
		EnvVars: append(prefixEnvVars("DEST_MNEMONIC"), "MNEMONIC"),
	}
	GasMultiplier = &cli.Float64Flag{
		Name:    "dest.gas-multiplier",
		Usage:   "Factor applied to the simulated gas usage",
		EnvVars: prefixEnvVars("DEST_GAS_MULTIPLIER"),
	}
	GasPrice = &cli.StringFlag{
		Name:    "dest.gas-price",
		Usage:   "Decimal price per unit of gas in the fee denom",
		EnvVars: prefixEnvVars("DEST_GAS_PRICE"),
	}
	FeeDenom = &cli.StringFlag{
		Name:    "dest.fee-denom",
		Usage:   "Denom the fee is paid in",
		EnvVars: prefixEnvVars("DEST_FEE_DENOM"),
	}
	Memo = &cli.StringFlag{
		Name:    "dest.memo",
		Usage:   "Memo attached to submitted transactions",
		EnvVars: prefixEnvVars("DEST_MEMO"),
	}

	/* Relay behaviour */
	DryRun = &cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "Log the messages instead of submitting them",
		EnvVars: prefixEnvVars("DRY_RUN"),
	}
	CurveCheck = &cli.BoolFlag{
		Name:    "proof.curve-check",
		Usage:   "Skip updates whose proof points are not on the BN254 curve",
		EnvVars: prefixEnvVars("PROOF_CURVE_CHECK"),
	}
	AdminAddr = &cli.StringFlag{
		Name:    "admin.addr",
		Usage:   "Listen address of the admin server (health, status, metrics). Empty disables it",
		EnvVars: prefixEnvVars("ADMIN_ADDR"),
	}
	ProfileMode = &cli.StringFlag{
		Name:    "pprof.mode",
		Usage:   "Write a profile of this kind on exit: cpu, mem, block, mutex or goroutine",
		EnvVars: prefixEnvVars("PPROF_MODE"),
	}
	ProfileDir = &cli.PathFlag{
		Name:    "pprof.dir",
		Usage:   "Directory the profile is written to",
		EnvVars: prefixEnvVars("PPROF_DIR"),
	}
)

var sourceFlags = []cli.Flag{
	SourceContract,
	ExplorerURL,
	ExplorerAPIKey,
	ExplorerRate,
	RPCURL,
	MaxBlockRange,
}

var destFlags = []cli.Flag{
	GRPCAddr,
	GRPCInsecure,
	ChainID,
	VerifierContract,
	Prefix,
	Mnemonic,
	GasMultiplier,
	GasPrice,
	FeeDenom,
	Memo,
}

var relayFlags = []cli.Flag{
	Lookback,
	Interval,
	RetryDelay,
	DryRun,
	CurveCheck,
	AdminAddr,
	ProfileMode,
	ProfileDir,
}

// Flags returns every flag of the relay command, including logging.
func Flags() []cli.Flag {
	out := []cli.Flag{ConfigFile}
	out = append(out, sourceFlags...)
	out = append(out, destFlags...)
	out = append(out, relayFlags...)
	return append(out, oplog.CLIFlags(EnvVarPrefix)...)
}

// DestinationFlags returns the flags of commands that only talk to the
// verifier contract.
func DestinationFlags() []cli.Flag {
	out := []cli.Flag{ConfigFile}
	out = append(out, destFlags...)
	return append(out, oplog.CLIFlags(EnvVarPrefix)...)
}

// NewConfig builds the config from defaults, then the config file, then the
// flags and environment variables that are set. It does not check it.
func NewConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.Path(ConfigFile.Name); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	setDuration(ctx, Lookback, &cfg.Schedule.Lookback)
	setDuration(ctx, Interval, &cfg.Schedule.Interval)
	setDuration(ctx, RetryDelay, &cfg.Schedule.RetryDelay)

	if ctx.IsSet(SourceContract.Name) {
		s := ctx.String(SourceContract.Name)
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid source contract address %q", s)
		}
		cfg.Source.Contract = common.HexToAddress(s)
	}
	setString(ctx, ExplorerURL, &cfg.Source.ExplorerURL)
	setString(ctx, ExplorerAPIKey, &cfg.Source.ExplorerAPIKey)
	if ctx.IsSet(ExplorerRate.Name) {
		cfg.Source.ExplorerRate = ctx.Float64(ExplorerRate.Name)
	}
	setString(ctx, RPCURL, &cfg.Source.RPCURL)
	if ctx.IsSet(MaxBlockRange.Name) {
		cfg.Source.MaxBlockRange = ctx.Uint64(MaxBlockRange.Name)
	}

	setString(ctx, GRPCAddr, &cfg.Destination.GRPCAddr)
	setBool(ctx, GRPCInsecure, &cfg.Destination.Insecure)
	setString(ctx, ChainID, &cfg.Destination.ChainID)
	setString(ctx, VerifierContract, &cfg.Destination.Contract)
	setString(ctx, Prefix, &cfg.Destination.Prefix)
	setString(ctx, Mnemonic, &cfg.Destination.Mnemonic)
	if ctx.IsSet(GasMultiplier.Name) {
		cfg.Destination.GasMultiplier = ctx.Float64(GasMultiplier.Name)
	}
	setString(ctx, GasPrice, &cfg.Destination.GasPrice)
	setString(ctx, FeeDenom, &cfg.Destination.FeeDenom)
	setString(ctx, Memo, &cfg.Destination.Memo)

	setBool(ctx, DryRun, &cfg.DryRun)
	setBool(ctx, CurveCheck, &cfg.CurveCheck)
	setString(ctx, AdminAddr, &cfg.AdminAddr)
	setString(ctx, ProfileMode, &cfg.Profile.Mode)
	if ctx.IsSet(ProfileDir.Name) {
		cfg.Profile.Dir = ctx.Path(ProfileDir.Name)
	}
	return cfg, nil
}

func setString(ctx *cli.Context, f *cli.StringFlag, dst *string) {
	if ctx.IsSet(f.Name) {
		*dst = ctx.String(f.Name)
	}
}

func setBool(ctx *cli.Context, f *cli.BoolFlag, dst *bool) {
	if ctx.IsSet(f.Name) {
		*dst = ctx.Bool(f.Name)
	}
}

func setDuration(ctx *cli.Context, f *cli.DurationFlag, dst *time.Duration) {
	if ctx.IsSet(f.Name) {
		*dst = ctx.Duration(f.Name)
	}
}
