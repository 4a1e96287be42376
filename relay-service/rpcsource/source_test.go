package rpcsource

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/cosmwasm-lightclient/relayer/relay-service/testlog"
)

var (
	testContract = common.HexToAddress("0xd8Dc759fa65064de7722CDbB227444B09e8B93b9")
	otherAddr    = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
)

// fakeChain produces one block every 2 seconds starting at genesisTime.
type fakeChain struct {
	genesisTime uint64
	blocks      []*types.Block
	failed      map[common.Hash]bool
	headerCalls int
}

func newFakeChain(n int, genesisTime uint64) *fakeChain {
	c := &fakeChain{genesisTime: genesisTime, failed: map[common.Hash]bool{}}
	for i := 0; i < n; i++ {
		h := &types.Header{Number: big.NewInt(int64(i)), Time: genesisTime + uint64(2*i), Difficulty: big.NewInt(1)}
		c.blocks = append(c.blocks, types.NewBlockWithHeader(h))
	}
	return c
}

func (c *fakeChain) addTxs(num int, txs ...*types.Transaction) {
	c.blocks[num] = c.blocks[num].WithBody(types.Body{Transactions: txs})
}

func (c *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(137), nil
}

func (c *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.headerCalls++
	if number == nil {
		return c.blocks[len(c.blocks)-1].Header(), nil
	}
	if number.Uint64() >= uint64(len(c.blocks)) {
		return nil, errors.New("not found")
	}
	return c.blocks[number.Uint64()].Header(), nil
}

func (c *fakeChain) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	if number.Uint64() >= uint64(len(c.blocks)) {
		return nil, errors.New("not found")
	}
	return c.blocks[number.Uint64()], nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if c.failed[txHash] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: txHash}, nil
}

func newTx(nonce uint64, to common.Address, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Gas: 100_000, GasPrice: big.NewInt(1), Data: data})
}

func TestBlockNumberByTime(t *testing.T) {
	chain := newFakeChain(1000, 1_700_000_000)
	src, err := NewSource(context.Background(), testlog.Logger(t, log.LevelDebug), chain, 0)
	require.NoError(t, err)

	testCases := []struct {
		ts   uint64
		want uint64
	}{
		{1_600_000_000, 0},
		{1_700_000_000, 0},
		{1_700_000_001, 0},
		{1_700_000_002, 1},
		{1_700_000_999, 499},
		{1_700_001_998, 999},
		{1_800_000_000, 999},
	}
	for _, tc := range testCases {
		n, err := src.BlockNumberByTime(context.Background(), time.Unix(int64(tc.ts), 0))
		require.NoError(t, err)
		require.Equal(t, tc.want, n, "timestamp %d", tc.ts)
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	chain := newFakeChain(20, 1_700_000_000)
	a := newTx(0, testContract, []byte{1})
	b := newTx(1, otherAddr, []byte{2})
	c := newTx(2, testContract, []byte{3})
	d := newTx(3, testContract, []byte{4})
	chain.addTxs(5, a, b, c)
	chain.addTxs(9, d)
	chain.addTxs(15, newTx(4, testContract, []byte{5}))
	chain.failed[c.Hash()] = true

	src, err := NewSource(context.Background(), testlog.Logger(t, log.LevelDebug), chain, 0)
	require.NoError(t, err)
	txs, err := src.Transactions(context.Background(), testContract, 3, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	require.Equal(t, d.Hash(), txs[0].Hash)
	require.Equal(t, uint64(9), txs[0].BlockNumber)
	require.Equal(t, c.Hash(), txs[1].Hash)
	require.Equal(t, uint64(2), txs[1].Index)
	require.True(t, txs[1].Reverted)
	require.Equal(t, a.Hash(), txs[2].Hash)
	require.False(t, txs[2].Reverted)
	require.Equal(t, []byte{1}, []byte(txs[2].Input))
	require.Equal(t, uint64(1_700_000_010), txs[2].Timestamp)
}

func TestTransactionsClampsRange(t *testing.T) {
	chain := newFakeChain(20, 1_700_000_000)
	chain.addTxs(2, newTx(0, testContract, nil))
	chain.addTxs(18, newTx(1, testContract, nil))

	src, err := NewSource(context.Background(), testlog.Logger(t, log.LevelDebug), chain, 5)
	require.NoError(t, err)
	txs, err := src.Transactions(context.Background(), testContract, 0, 19)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, uint64(18), txs[0].BlockNumber)

	txs, err = src.Transactions(context.Background(), testContract, 10, 9)
	require.NoError(t, err)
	require.Empty(t, txs)
}
