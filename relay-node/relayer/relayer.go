package relayer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cosmwasm-lightclient/relayer/relay-node/config"
	"github.com/cosmwasm-lightclient/relayer/relay-node/derive"
	"github.com/cosmwasm-lightclient/relayer/relay-service/cosmwasm"
	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
	"github.com/cosmwasm-lightclient/relayer/relay-service/metrics"
	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

// ErrTemporary marks source failures that are retried after the retry delay.
var ErrTemporary = derive.ErrTemporary

type WindowProvider interface {
	FetchWindow(ctx context.Context, lookback time.Duration) (derive.Window, []eth.Transaction, error)
}

type UpdateScanner interface {
	Scan(ctx context.Context, txs []eth.Transaction) (derive.ScanResult, error)
}

type RelayMetrics interface {
	RecordCycle(ok bool, took time.Duration)
	RecordSubmission(kind string, result string)
}

// Relayer runs relay cycles: fetch the lookback window from the source
// chain, pick the latest step and rotate updates, and submit them to the
// verifier contract, step first.
type Relayer struct {
	log       log.Logger
	provider  WindowProvider
	scanner   UpdateScanner
	submitter cosmwasm.Submitter
	metrics   RelayMetrics
	dryRun    bool

	schedule atomic.Pointer[config.Schedule]

	// nextAction is when the next cycle should start.
	nextAction time.Time

	mu          sync.RWMutex
	last        *CycleStatus
	lastSuccess time.Time

	timeNow func() time.Time
}

func NewRelayer(log log.Logger, sched config.Schedule, provider WindowProvider, scanner UpdateScanner, submitter cosmwasm.Submitter, m RelayMetrics, dryRun bool) *Relayer {
	if m == nil {
		m = metrics.NoopMetrics
	}
	r := &Relayer{
		log:       log,
		provider:  provider,
		scanner:   scanner,
		submitter: submitter,
		metrics:   m,
		dryRun:    dryRun,
		timeNow:   time.Now,
	}
	r.schedule.Store(&sched)
	return r
}

// SetSchedule replaces the schedule. It takes effect from the next cycle.
func (r *Relayer) SetSchedule(sched config.Schedule) {
	r.schedule.Store(&sched)
}

func (r *Relayer) Schedule() config.Schedule {
	return *r.schedule.Load()
}

// PlanNextAction returns how long to wait before calling RunNextAction.
func (r *Relayer) PlanNextAction() time.Duration {
	if delay := r.nextAction.Sub(r.timeNow()); delay > 0 {
		return delay
	}
	return 0
}

// RunNextAction runs one relay cycle and schedules the next one.
//
// Temporary source errors are handled here by scheduling a retry. Errors
// from building or submitting messages are returned after both kinds of
// update were attempted; the next cycle is scheduled regardless. Critical
// errors and context cancellation are returned as is.
func (r *Relayer) RunNextAction(ctx context.Context) error {
	sched := r.Schedule()
	start := r.timeNow()
	status := &CycleStatus{ID: uuid.New().String(), Started: start}
	log := r.log.New("cycle", status.ID)

	err := r.runCycle(ctx, log, sched, status)
	status.Finished = r.timeNow()
	if err != nil {
		status.Err = err.Error()
	}
	ok := err == nil
	r.metrics.RecordCycle(ok, status.Finished.Sub(start))
	r.setStatus(status, ok)

	switch {
	case err == nil:
		r.nextAction = start.Add(sched.Interval)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, derive.ErrCritical):
		return err
	case errors.Is(err, ErrTemporary):
		log.Warn("Relay cycle failed temporarily, retrying", "retry_in", sched.RetryDelay, "err", err)
		r.nextAction = r.timeNow().Add(sched.RetryDelay)
		return nil
	default:
		r.nextAction = start.Add(sched.Interval)
		return err
	}
}

func (r *Relayer) runCycle(ctx context.Context, log log.Logger, sched config.Schedule, status *CycleStatus) error {
	window, txs, err := r.provider.FetchWindow(ctx, sched.Lookback)
	if err != nil {
		return err
	}
	status.Window = window
	status.TxCount = len(txs)
	log.Debug("Fetched window", "window", window, "txs", len(txs))

	res, err := r.scanner.Scan(ctx, txs)
	if err != nil {
		return err
	}
	status.Skipped = len(res.Skipped)
	if res.Step == nil && res.Rotate == nil {
		log.Info("No updates in window", "window", window, "txs", len(txs), "skipped", len(res.Skipped))
		return nil
	}

	var result *multierror.Error
	if res.Step != nil {
		u := &UpdateStatus{ID: res.Step.Commit().String(), Slot: res.Step.FinalizedSlot, SourceTx: res.StepTx}
		status.Step = u
		msg, err := verifier.BuildStep(*res.Step)
		if err == nil {
			err = r.submit(ctx, log, msg, u)
		} else {
			log.Error("Failed to build step message", "id", u.ID, "source_tx", u.SourceTx, "err", err)
			u.Err = err.Error()
		}
		result = multierror.Append(result, err)
	}
	if res.Rotate != nil {
		u := &UpdateStatus{ID: res.Rotate.Commit().String(), Slot: res.Rotate.Step.FinalizedSlot, SourceTx: res.RotateTx}
		status.Rotate = u
		msg, err := verifier.BuildRotate(*res.Rotate)
		if err == nil {
			err = r.submit(ctx, log, msg, u)
		} else {
			log.Error("Failed to build rotate message", "id", u.ID, "source_tx", u.SourceTx, "err", err)
			u.Err = err.Error()
		}
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (r *Relayer) submit(ctx context.Context, log log.Logger, msg verifier.ExecuteMsg, u *UpdateStatus) error {
	kind := msg.Kind()
	txHash, err := r.submitter.Submit(ctx, msg)
	if err != nil {
		r.metrics.RecordSubmission(kind, metrics.ResultFailure)
		u.Err = err.Error()
		var subErr *cosmwasm.SubmissionError
		if errors.As(err, &subErr) && subErr.TxHash != "" {
			u.DestTx = subErr.TxHash
		}
		log.Error("Failed to submit update", "kind", kind, "id", u.ID, "slot", u.Slot, "source_tx", u.SourceTx, "err", err)
		return err
	}
	if r.dryRun {
		r.metrics.RecordSubmission(kind, metrics.ResultDryRun)
	} else {
		r.metrics.RecordSubmission(kind, metrics.ResultSuccess)
	}
	u.DestTx = txHash
	log.Info("Relayed update", "kind", kind, "id", u.ID, "slot", u.Slot, "source_tx", u.SourceTx, "dest_tx", txHash)
	return nil
}

// Run runs cycles until ctx is done. Errors of single cycles are logged and
// the loop continues; a critical error stops it.
func (r *Relayer) Run(ctx context.Context) error {
	timer := time.NewTimer(r.PlanNextAction())
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			if err := r.RunNextAction(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, derive.ErrCritical) {
					r.log.Error("Relay loop stopped by critical error", "err", err)
					return err
				}
				r.log.Error("Relay cycle failed", "err", err)
			}
			timer.Reset(r.PlanNextAction())
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Relayer) setStatus(s *CycleStatus, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = s
	if ok {
		r.lastSuccess = s.Finished
	}
}

// LastCycle returns the status of the most recent cycle, if any ran.
func (r *Relayer) LastCycle() (CycleStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return CycleStatus{}, false
	}
	return *r.last, true
}

// Healthy reports whether a cycle succeeded within maxAge. Before the first
// cycle finished the relayer counts as healthy.
func (r *Relayer) Healthy(maxAge time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return true
	}
	return r.timeNow().Sub(r.lastSuccess) <= maxAge
}

type CycleStatus struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Window   derive.Window `json:"window"`
	TxCount  int           `json:"txs"`
	Skipped  int           `json:"skipped"`
	Step     *UpdateStatus `json:"step,omitempty"`
	Rotate   *UpdateStatus `json:"rotate,omitempty"`
	Err      string        `json:"error,omitempty"`
}

type UpdateStatus struct {
	ID       string      `json:"id"`
	Slot     uint64      `json:"slot"`
	SourceTx common.Hash `json:"source_tx"`
	DestTx   string      `json:"dest_tx,omitempty"`
	Err      string      `json:"error,omitempty"`
}
