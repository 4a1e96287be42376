package derive

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slices"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
)

// TransactionSource lists the transactions sent to a contract within an
// inclusive block range.
type TransactionSource interface {
	Transactions(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]eth.Transaction, error)
}

// BlockResolver resolves a timestamp to the last block produced at or before
// it.
type BlockResolver interface {
	BlockNumberByTime(ctx context.Context, t time.Time) (uint64, error)
}

// Window is the block range covered by one scan cycle.
type Window struct {
	Start     time.Time
	End       time.Time
	FromBlock uint64
	ToBlock   uint64
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.FromBlock, w.ToBlock)
}

// UpdateProvider fetches the transactions of the lookback window ending now.
type UpdateProvider struct {
	log      log.Logger
	contract common.Address
	txs      TransactionSource
	blocks   BlockResolver

	// timeNow enables testing with a fixed clock
	timeNow func() time.Time
}

func NewUpdateProvider(log log.Logger, contract common.Address, txs TransactionSource, blocks BlockResolver) *UpdateProvider {
	return &UpdateProvider{
		log:      log,
		contract: contract,
		txs:      txs,
		blocks:   blocks,
		timeNow:  time.Now,
	}
}

// FetchWindow resolves the window [now-lookback, now] to a block range and
// returns its transactions, newest first. Failures of the collaborators are
// temporary errors.
func (p *UpdateProvider) FetchWindow(ctx context.Context, lookback time.Duration) (Window, []eth.Transaction, error) {
	end := p.timeNow()
	w := Window{Start: end.Add(-lookback), End: end}

	var err error
	if w.ToBlock, err = p.blocks.BlockNumberByTime(ctx, w.End); err != nil {
		return Window{}, nil, NewTemporaryError(fmt.Errorf("failed to resolve window end %s: %w", w.End, err))
	}
	if w.FromBlock, err = p.blocks.BlockNumberByTime(ctx, w.Start); err != nil {
		return Window{}, nil, NewTemporaryError(fmt.Errorf("failed to resolve window start %s: %w", w.Start, err))
	}
	if w.FromBlock > w.ToBlock {
		return Window{}, nil, NewTemporaryError(fmt.Errorf("window start block %d is after end block %d", w.FromBlock, w.ToBlock))
	}

	txs, err := p.txs.Transactions(ctx, p.contract, w.FromBlock, w.ToBlock)
	if err != nil {
		return Window{}, nil, NewTemporaryError(fmt.Errorf("failed to list transactions in window %s: %w", w, err))
	}

	// Sources are expected to return newest first already. Sort anyway, since
	// the dedup relies on it, and drop anything outside the window.
	txs = slices.DeleteFunc(txs, func(tx eth.Transaction) bool {
		return tx.BlockNumber < w.FromBlock || tx.BlockNumber > w.ToBlock
	})
	slices.SortStableFunc(txs, func(a, b eth.Transaction) int {
		switch {
		case a.BlockNumber != b.BlockNumber:
			return cmpDesc(a.BlockNumber, b.BlockNumber)
		default:
			return cmpDesc(a.Index, b.Index)
		}
	})

	p.log.Debug("fetched update window", "window", w, "start", w.Start, "txs", len(txs))
	return w, txs, nil
}

func cmpDesc(a, b uint64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
