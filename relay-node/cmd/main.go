package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	relaynode "github.com/cosmwasm-lightclient/relayer/relay-node"
	"github.com/cosmwasm-lightclient/relayer/relay-node/flags"
	"github.com/cosmwasm-lightclient/relayer/relay-service/cosmwasm"
	oplog "github.com/cosmwasm-lightclient/relayer/relay-service/log"
	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

var (
	periodFlag = &cli.Uint64Flag{
		Name:     "period",
		Usage:    "Sync committee period to force",
		Required: true,
	}
	slotFlag = &cli.Uint64Flag{
		Name:     "slot",
		Usage:    "Slot whose sync committee period is queried",
		Required: true,
	}
)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Name = "relay-node"
	app.Usage = "Light-client update relayer"
	app.Description = "Relays the latest step and rotate updates of a light-client contract to a CosmWasm verifier."
	app.Version = fmt.Sprintf("%s-%s", Version, GitCommit)
	app.Flags = flags.Flags()
	app.Action = RelayMain
	app.Commands = []*cli.Command{
		{
			Name:   "force",
			Usage:  "Submit the owner-only force message for a sync committee period",
			Flags:  append(flags.DestinationFlags(), periodFlag),
			Action: ForceMain,
		},
		{
			Name:  "query",
			Usage: "Query the verifier contract",
			Subcommands: []*cli.Command{
				{
					Name:   "current-slot",
					Usage:  "Latest slot accepted by the verifier",
					Flags:  flags.DestinationFlags(),
					Action: QueryCurrentSlot,
				},
				{
					Name:   "period",
					Usage:  "Sync committee period of a slot",
					Flags:  append(flags.DestinationFlags(), slotFlag),
					Action: QueryPeriod,
				},
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// RelayMain runs the relay loop until interrupted.
func RelayMain(cliCtx *cli.Context) error {
	logger := oplog.NewLogger(os.Stdout, oplog.ReadCLIConfig(cliCtx))
	cfg, err := flags.NewConfig(cliCtx)
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	stopProfile, err := relaynode.StartProfile(cfg.Profile)
	if err != nil {
		return err
	}
	defer stopProfile()

	logger.Info("Starting relayer", "version", cliCtx.App.Version, "contract", cfg.Source.Contract,
		"lookback", cfg.Schedule.Lookback, "interval", cfg.Schedule.Interval, "dry_run", cfg.DryRun)

	s, err := relaynode.NewService(cliCtx.Context, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up relayer: %w", err)
	}
	defer s.Close()

	if err := s.Run(cliCtx.Context, cliCtx.Path(flags.ConfigFile.Name)); err != nil {
		return err
	}
	logger.Info("Relayer stopped")
	return nil
}

func dialVerifier(cliCtx *cli.Context) (log.Logger, *cosmwasm.Client, error) {
	logger := oplog.NewLogger(os.Stderr, oplog.ReadCLIConfig(cliCtx))
	cfg, err := flags.NewConfig(cliCtx)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.CheckDestination(); err != nil {
		return nil, nil, err
	}
	client, err := cosmwasm.Dial(logger, cfg.Destination.CosmWasm())
	if err != nil {
		return nil, nil, err
	}
	return logger, client, nil
}

// ForceMain submits a force message. Only the contract owner can do this.
func ForceMain(cliCtx *cli.Context) error {
	period := cliCtx.Uint64(periodFlag.Name)
	msg, err := verifier.BuildForce(period)
	if err != nil {
		return err
	}
	logger, client, err := dialVerifier(cliCtx)
	if err != nil {
		return err
	}
	defer client.Close()

	txHash, err := client.Submit(cliCtx.Context, msg)
	if err != nil {
		return err
	}
	logger.Info("Forced sync committee period", "period", period, "tx", txHash)
	return nil
}

func QueryCurrentSlot(cliCtx *cli.Context) error {
	_, client, err := dialVerifier(cliCtx)
	if err != nil {
		return err
	}
	defer client.Close()
	slot, err := client.CurrentSlot(cliCtx.Context)
	if err != nil {
		return err
	}
	fmt.Println(slot)
	return nil
}

func QueryPeriod(cliCtx *cli.Context) error {
	_, client, err := dialVerifier(cliCtx)
	if err != nil {
		return err
	}
	defer client.Close()
	period, err := client.SyncCommitteePeriod(cliCtx.Context, cliCtx.Uint64(slotFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(period)
	return nil
}
