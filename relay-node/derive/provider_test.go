package derive

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
	"github.com/cosmwasm-lightclient/relayer/relay-service/testlog"
	"github.com/cosmwasm-lightclient/relayer/relay-service/testutils"
)

func TestFetchWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	genesis := time.Unix(1_700_000_000, 0)
	src := &testutils.FakeSource{Genesis: genesis, BlockTime: 2 * time.Second}
	// Out of order on purpose, plus one tx outside the window.
	src.Txs = []eth.Transaction{
		otherTx(rng, 1700),
		otherTx(rng, 1799),
		otherTx(rng, 1750),
		otherTx(rng, 10),
	}
	src.Txs[2].Index = 1
	extra := otherTx(rng, 1750)
	extra.Index = 3
	src.Txs = append(src.Txs, extra)

	p := NewUpdateProvider(testlog.Logger(t, log.LevelDebug), testContract, src, src)
	p.timeNow = func() time.Time { return genesis.Add(3600 * time.Second) }

	w, txs, err := p.FetchWindow(context.Background(), 200*time.Second)
	require.NoError(t, err)
	require.Equal(t, uint64(1700), w.FromBlock)
	require.Equal(t, uint64(1800), w.ToBlock)
	require.Equal(t, [2]uint64{1700, 1800}, src.LastRange)

	var blocks []uint64
	for _, tx := range txs {
		blocks = append(blocks, tx.BlockNumber)
	}
	require.Equal(t, []uint64{1799, 1750, 1750, 1700}, blocks)
	require.Equal(t, uint64(3), txs[1].Index)
	require.Equal(t, uint64(1), txs[2].Index)
}

func TestFetchWindowErrorsAreTemporary(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return genesis.Add(time.Hour) }

	src := &testutils.FakeSource{Genesis: genesis, BlockTime: 2 * time.Second, BlockErr: errors.New("rate limited")}
	p := NewUpdateProvider(testlog.Logger(t, log.LevelDebug), testContract, src, src)
	p.timeNow = now
	_, _, err := p.FetchWindow(context.Background(), time.Hour)
	require.ErrorIs(t, err, ErrTemporary)
	require.NotErrorIs(t, err, ErrCritical)
	require.ErrorContains(t, err, "rate limited")

	src = &testutils.FakeSource{Genesis: genesis, BlockTime: 2 * time.Second, TxErr: errors.New("boom")}
	p = NewUpdateProvider(testlog.Logger(t, log.LevelDebug), testContract, src, src)
	p.timeNow = now
	_, _, err = p.FetchWindow(context.Background(), time.Hour)
	require.ErrorIs(t, err, ErrTemporary)
}
