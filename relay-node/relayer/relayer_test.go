package relayer

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/cosmwasm-lightclient/relayer/relay-node/config"
	"github.com/cosmwasm-lightclient/relayer/relay-node/derive"
	"github.com/cosmwasm-lightclient/relayer/relay-service/cosmwasm"
	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
	"github.com/cosmwasm-lightclient/relayer/relay-service/testlog"
	"github.com/cosmwasm-lightclient/relayer/relay-service/testutils"
	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

var testContract = common.HexToAddress("0xd8Dc759fa65064de7722CDbB227444B09e8B93b9")

var testSchedule = config.Schedule{
	Lookback:   30 * time.Minute,
	Interval:   10 * time.Minute,
	RetryDelay: time.Minute,
}

type fakeProvider struct {
	txs       []eth.Transaction
	err       error
	lookbacks []time.Duration
}

func (p *fakeProvider) FetchWindow(ctx context.Context, lookback time.Duration) (derive.Window, []eth.Transaction, error) {
	p.lookbacks = append(p.lookbacks, lookback)
	if err := ctx.Err(); err != nil {
		return derive.Window{}, nil, err
	}
	if p.err != nil {
		return derive.Window{}, nil, p.err
	}
	return derive.Window{FromBlock: 100, ToBlock: 200}, p.txs, nil
}

type fakeSubmitter struct {
	mu     sync.Mutex
	msgs   []verifier.ExecuteMsg
	errs   map[string]error
	notify chan struct{}
}

func (s *fakeSubmitter) Submit(ctx context.Context, msg verifier.ExecuteMsg) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if s.notify != nil {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	if err := s.errs[msg.Kind()]; err != nil {
		return "", err
	}
	return "TX" + msg.Kind(), nil
}

func (s *fakeSubmitter) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.Kind())
	}
	return out
}

type relayMetrics struct {
	cycles      []bool
	submissions map[string]int
}

func (m *relayMetrics) RecordCycle(ok bool, took time.Duration) {
	m.cycles = append(m.cycles, ok)
}

func (m *relayMetrics) RecordSubmission(kind string, result string) {
	if m.submissions == nil {
		m.submissions = map[string]int{}
	}
	m.submissions[kind+"/"+result]++
}

type testRelayer struct {
	*Relayer
	provider  *fakeProvider
	submitter *fakeSubmitter
	metrics   *relayMetrics
	now       time.Time
}

func setupRelayer(t *testing.T, txs ...eth.Transaction) *testRelayer {
	tr := &testRelayer{
		provider:  &fakeProvider{txs: txs},
		submitter: &fakeSubmitter{errs: map[string]error{}},
		metrics:   &relayMetrics{},
		now:       time.Unix(1_700_000_000, 0),
	}
	logger := testlog.Logger(t, log.LevelDebug)
	scanner := derive.NewScanner(logger, testContract, false, nil)
	tr.Relayer = NewRelayer(logger, testSchedule, tr.provider, scanner, tr.submitter, tr.metrics, false)
	tr.Relayer.timeNow = func() time.Time { return tr.now }
	return tr
}

func updateTx(t *testing.T, rng *rand.Rand, block uint64, update any) eth.Transaction {
	var (
		data []byte
		name string
		err  error
	)
	switch u := update.(type) {
	case lightclient.StepUpdate:
		data, err = derive.EncodeStep(u)
		name = "step(tuple update)"
	case lightclient.RotateUpdate:
		data, err = derive.EncodeRotate(u)
		name = "rotate(tuple update)"
	}
	require.NoError(t, err)
	to := testContract
	return eth.Transaction{
		Hash:         testutils.RandomHash(rng),
		BlockNumber:  block,
		To:           &to,
		FunctionName: name,
		Input:        data,
	}
}

func TestRelayStepBeforeRotate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rotate := testutils.RandomRotate(rng, 6_300_000)
	step := testutils.RandomStep(rng, 6_299_000)
	tr := setupRelayer(t,
		updateTx(t, rng, 190, rotate),
		updateTx(t, rng, 150, step),
	)

	require.Equal(t, time.Duration(0), tr.PlanNextAction())
	require.NoError(t, tr.RunNextAction(context.Background()))
	require.Equal(t, []string{"step", "rotate"}, tr.submitter.kinds())
	require.Equal(t, testSchedule.Interval, tr.PlanNextAction())

	require.Equal(t, uint32(6_299_000), tr.submitter.msgs[0].Step.FinalizedSlot)
	require.Equal(t, uint32(6_300_000), tr.submitter.msgs[1].Rotate.FinalizedSlot)
	require.Equal(t, []bool{true}, tr.metrics.cycles)
	require.Equal(t, 1, tr.metrics.submissions["step/success"])
	require.Equal(t, 1, tr.metrics.submissions["rotate/success"])

	status, ok := tr.LastCycle()
	require.True(t, ok)
	require.NotEmpty(t, status.ID)
	require.Equal(t, uint64(100), status.Window.FromBlock)
	require.Equal(t, 2, status.TxCount)
	require.Equal(t, "TXstep", status.Step.DestTx)
	require.Equal(t, "TXrotate", status.Rotate.DestTx)
	require.Equal(t, step.Commit().String(), status.Step.ID)
	require.Empty(t, status.Err)
	require.True(t, tr.Healthy(time.Minute))
}

func TestContinuesAfterFailedStep(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tr := setupRelayer(t,
		updateTx(t, rng, 190, testutils.RandomStep(rng, 7_000_000)),
		updateTx(t, rng, 180, testutils.RandomRotate(rng, 6_990_000)),
	)
	tr.submitter.errs["step"] = &cosmwasm.SubmissionError{Kind: "step", Stage: "broadcast", TxHash: "BAD", Code: 5}

	err := tr.RunNextAction(context.Background())
	var subErr *cosmwasm.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, "step", subErr.Kind)
	require.Equal(t, []string{"step", "rotate"}, tr.submitter.kinds())
	require.Equal(t, testSchedule.Interval, tr.PlanNextAction())

	status, _ := tr.LastCycle()
	require.Equal(t, "BAD", status.Step.DestTx)
	require.NotEmpty(t, status.Step.Err)
	require.Equal(t, "TXrotate", status.Rotate.DestTx)
	require.Equal(t, 1, tr.metrics.submissions["step/failure"])
	require.Equal(t, []bool{false}, tr.metrics.cycles)
	require.False(t, tr.Healthy(time.Minute))
}

func TestTemporarySourceError(t *testing.T) {
	tr := setupRelayer(t)
	tr.provider.err = derive.NewTemporaryError(errors.New("explorer unavailable"))

	require.NoError(t, tr.RunNextAction(context.Background()))
	require.Equal(t, testSchedule.RetryDelay, tr.PlanNextAction())
	require.Empty(t, tr.submitter.msgs)

	status, _ := tr.LastCycle()
	require.Contains(t, status.Err, "explorer unavailable")

	tr.now = tr.now.Add(30 * time.Second)
	require.Equal(t, 30*time.Second, tr.PlanNextAction())
}

func TestCriticalError(t *testing.T) {
	tr := setupRelayer(t)
	tr.provider.err = derive.NewCriticalError(errors.New("wrong chain"))
	err := tr.RunNextAction(context.Background())
	require.ErrorIs(t, err, derive.ErrCritical)
}

func TestNoUpdates(t *testing.T) {
	tr := setupRelayer(t)
	require.NoError(t, tr.RunNextAction(context.Background()))
	require.Empty(t, tr.submitter.msgs)
	status, _ := tr.LastCycle()
	require.Nil(t, status.Step)
	require.Nil(t, status.Rotate)
}

func TestBuildErrorDoesNotStopRotate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	// Slots above u32 cannot be expressed in the verifier message.
	tr := setupRelayer(t,
		updateTx(t, rng, 190, testutils.RandomStep(rng, 1<<33)),
		updateTx(t, rng, 180, testutils.RandomRotate(rng, 6_990_000)),
	)
	err := tr.RunNextAction(context.Background())
	var buildErr *verifier.BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, []string{"rotate"}, tr.submitter.kinds())
}

func TestScheduleSwap(t *testing.T) {
	tr := setupRelayer(t)
	require.NoError(t, tr.RunNextAction(context.Background()))

	next := config.Schedule{Lookback: time.Hour, Interval: time.Minute, RetryDelay: time.Second}
	tr.SetSchedule(next)
	require.Equal(t, next, tr.Schedule())
	tr.now = tr.now.Add(testSchedule.Interval)
	require.NoError(t, tr.RunNextAction(context.Background()))

	require.Equal(t, []time.Duration{testSchedule.Lookback, time.Hour}, tr.provider.lookbacks)
	require.Equal(t, time.Minute, tr.PlanNextAction())
}

func TestCancelledCycle(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	tr := setupRelayer(t, updateTx(t, rng, 190, testutils.RandomStep(rng, 10)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.RunNextAction(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, tr.submitter.msgs)
}

func TestRunLoop(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tr := setupRelayer(t, updateTx(t, rng, 190, testutils.RandomStep(rng, 10)))
	tr.Relayer.timeNow = time.Now
	tr.submitter.notify = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	select {
	case <-tr.submitter.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("no submission")
	}
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, []string{"step"}, tr.submitter.kinds())
}
