// Package rpcsource reads light-client updates straight from a source chain
// node over JSON-RPC, for deployments without an explorer API.
package rpcsource

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
)

// DefaultMaxBlockRange bounds the number of blocks walked per call.
const DefaultMaxBlockRange = 2048

type chainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Source struct {
	log           log.Logger
	client        chainReader
	signer        types.Signer
	maxBlockRange uint64
}

// Dial connects to the node at rpcURL.
func Dial(ctx context.Context, log log.Logger, rpcURL string, maxBlockRange uint64) (*Source, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial source chain: %w", err)
	}
	return NewSource(ctx, log, client, maxBlockRange)
}

func NewSource(ctx context.Context, log log.Logger, client chainReader, maxBlockRange uint64) (*Source, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	if maxBlockRange == 0 {
		maxBlockRange = DefaultMaxBlockRange
	}
	return &Source{
		log:           log,
		client:        client,
		signer:        types.LatestSignerForChainID(chainID),
		maxBlockRange: maxBlockRange,
	}, nil
}

// BlockNumberByTime binary searches for the last block whose timestamp is at
// or before t. Times before the genesis block resolve to block 0.
func (s *Source) BlockNumberByTime(ctx context.Context, t time.Time) (uint64, error) {
	head, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch head: %w", err)
	}
	target := uint64(t.Unix())
	if head.Time <= target {
		return head.Number.Uint64(), nil
	}

	// Find the first block after target in [0, head]; the answer is the one
	// before it.
	var searchErr error
	n := sort.Search(int(head.Number.Uint64())+1, func(i int) bool {
		if searchErr != nil {
			return true
		}
		h, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(uint64(i)))
		if err != nil {
			searchErr = err
			return true
		}
		return h.Time > target
	})
	if searchErr != nil {
		return 0, fmt.Errorf("failed to search block by time: %w", searchErr)
	}
	if n == 0 {
		return 0, nil
	}
	return uint64(n - 1), nil
}

// Transactions walks [fromBlock, toBlock] newest first and returns the
// transactions sent to contract. Ranges wider than the configured maximum
// are cut at the old end.
func (s *Source) Transactions(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]eth.Transaction, error) {
	if toBlock < fromBlock {
		return nil, nil
	}
	if toBlock-fromBlock+1 > s.maxBlockRange {
		clamped := toBlock - s.maxBlockRange + 1
		s.log.Warn("block range too wide, only walking the newest blocks", "from", fromBlock, "clamped_from", clamped, "to", toBlock)
		fromBlock = clamped
	}

	var out []eth.Transaction
	for num := toBlock; ; num-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(num))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch block %d: %w", num, err)
		}
		txs := block.Transactions()
		for i := len(txs) - 1; i >= 0; i-- {
			tx := txs[i]
			if tx.To() == nil || *tx.To() != contract {
				continue
			}
			rcpt, err := s.client.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return nil, fmt.Errorf("failed to fetch receipt of %s: %w", tx.Hash(), err)
			}
			to := *tx.To()
			etx := eth.Transaction{
				Hash:        tx.Hash(),
				BlockNumber: num,
				Index:       uint64(i),
				Timestamp:   block.Time(),
				To:          &to,
				Input:       tx.Data(),
				Reverted:    rcpt.Status == types.ReceiptStatusFailed,
			}
			if from, err := types.Sender(s.signer, tx); err == nil {
				etx.From = from
			}
			out = append(out, etx)
		}
		if num == fromBlock {
			break
		}
	}
	s.log.Debug("walked source blocks", "from", fromBlock, "to", toBlock, "matches", len(out))
	return out, nil
}
