package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
)

// FakeSource is an in-memory source chain. Blocks are produced every
// BlockTime starting at Genesis.
type FakeSource struct {
	mu sync.Mutex

	Genesis   time.Time
	BlockTime time.Duration
	Txs       []eth.Transaction

	// TxErr and BlockErr are returned by the respective calls when set.
	TxErr    error
	BlockErr error

	TxCalls    int
	BlockCalls int
	LastRange  [2]uint64
}

func (f *FakeSource) Transactions(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]eth.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TxCalls++
	f.LastRange = [2]uint64{fromBlock, toBlock}
	if f.TxErr != nil {
		return nil, f.TxErr
	}
	var out []eth.Transaction
	for _, tx := range f.Txs {
		if tx.BlockNumber < fromBlock || tx.BlockNumber > toBlock {
			continue
		}
		if tx.To != nil && *tx.To != contract {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *FakeSource) BlockNumberByTime(ctx context.Context, t time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BlockCalls++
	if f.BlockErr != nil {
		return 0, f.BlockErr
	}
	if !t.After(f.Genesis) {
		return 0, nil
	}
	return uint64(t.Sub(f.Genesis) / f.BlockTime), nil
}

// SetTxs replaces the transaction list.
func (f *FakeSource) SetTxs(txs []eth.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Txs = txs
}
