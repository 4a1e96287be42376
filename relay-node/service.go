// Package relaynode assembles a relay process out of its configured parts.
package relaynode

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"

	"github.com/cosmwasm-lightclient/relayer/relay-node/config"
	"github.com/cosmwasm-lightclient/relayer/relay-node/derive"
	"github.com/cosmwasm-lightclient/relayer/relay-node/relayer"
	"github.com/cosmwasm-lightclient/relayer/relay-service/cosmwasm"
	"github.com/cosmwasm-lightclient/relayer/relay-service/explorer"
	"github.com/cosmwasm-lightclient/relayer/relay-service/metrics"
	"github.com/cosmwasm-lightclient/relayer/relay-service/rpcsource"
)

type Service struct {
	log     log.Logger
	cfg     *config.Config
	metrics *metrics.Metrics

	Relayer *relayer.Relayer
	admin   *relayer.AdminServer

	closers []func() error
}

// NewService connects to the source and destination chains and sets up the
// relayer. The config must have passed Check.
func NewService(ctx context.Context, log log.Logger, cfg *config.Config) (*Service, error) {
	s := &Service{
		log:     log,
		cfg:     cfg,
		metrics: metrics.NewMetrics("node"),
	}

	txs, blocks, err := newSource(ctx, log.New("source", sourceName(cfg.Source)), cfg.Source)
	if err != nil {
		return nil, err
	}
	provider := derive.NewUpdateProvider(log, cfg.Source.Contract, txs, blocks)
	scanner := derive.NewScanner(log, cfg.Source.Contract, cfg.CurveCheck, s.metrics)

	submitter, err := s.newSubmitter()
	if err != nil {
		return nil, err
	}

	s.Relayer = relayer.NewRelayer(log, cfg.Schedule, provider, scanner, submitter, s.metrics, cfg.DryRun)

	if cfg.AdminAddr != "" {
		s.admin, err = relayer.NewAdminServer(log.New("module", "admin"), cfg.AdminAddr, s.Relayer, s.metrics.Handler())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start admin server: %w", err)
		}
	}
	return s, nil
}

func sourceName(cfg config.SourceConfig) string {
	if cfg.UseRPC() {
		return "rpc"
	}
	return "explorer"
}

func newSource(ctx context.Context, log log.Logger, cfg config.SourceConfig) (derive.TransactionSource, derive.BlockResolver, error) {
	if cfg.UseRPC() {
		src, err := rpcsource.Dial(ctx, log, cfg.RPCURL, cfg.MaxBlockRange)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	}
	client, err := explorer.NewClient(log, cfg.ExplorerURL,
		explorer.WithAPIKey(cfg.ExplorerAPIKey),
		explorer.WithRateLimit(cfg.ExplorerRate),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func (s *Service) newSubmitter() (cosmwasm.Submitter, error) {
	if s.cfg.DryRun {
		s.log.Warn("Dry run, messages are logged and not submitted")
		return cosmwasm.NewLogSubmitter(s.log.New("module", "submitter")), nil
	}
	client, err := cosmwasm.Dial(s.log.New("module", "submitter"), s.cfg.Destination.CosmWasm())
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	s.log.Info("Submitting to verifier", "chain_id", s.cfg.Destination.ChainID, "contract", s.cfg.Destination.Contract, "signer", client.Address())
	return client, nil
}

// AdminAddr returns the address of the admin server, or an empty string when
// it is disabled.
func (s *Service) AdminAddr() string {
	if s.admin == nil {
		return ""
	}
	return s.admin.Addr().String()
}

// Run runs the relay loop and the admin server until ctx is done or one of
// them fails. With a non-empty configPath the schedule follows changes of
// that file.
func (s *Service) Run(ctx context.Context, configPath string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Relayer.Run(ctx)
	})
	if s.admin != nil {
		g.Go(func() error {
			return s.admin.Serve(ctx)
		})
	}
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, s.log.New("module", "config"), configPath, s.Relayer.SetSchedule)
		})
	}
	return g.Wait()
}

func (s *Service) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.log.Warn("Failed to close", "err", err)
		}
	}
	s.closers = nil
}

// StartProfile starts the profiler selected by cfg. The returned function
// stops it and flushes the profile; it is a no-op when profiling is off.
func StartProfile(cfg config.ProfileConfig) (func(), error) {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "block":
		mode = profile.BlockProfile
	case "mutex":
		mode = profile.MutexProfile
	case "goroutine":
		mode = profile.GoroutineProfile
	default:
		return nil, errors.New("unknown profile mode " + cfg.Mode)
	}
	opts := []func(*profile.Profile){mode, profile.NoShutdownHook, profile.Quiet}
	if cfg.Dir != "" {
		opts = append(opts, profile.ProfilePath(cfg.Dir))
	}
	p := profile.Start(opts...)
	return p.Stop, nil
}
