package derive

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
	"github.com/cosmwasm-lightclient/relayer/relay-service/metrics"
)

// Skip reasons, used as metric labels.
const (
	SkipReverted       = "reverted"
	SkipWrongRecipient = "wrong_recipient"
	SkipDecode         = "decode"
	SkipNormalize      = "normalize"
	SkipCurve          = "curve"
)

type ScanMetrics interface {
	RecordTxScanned()
	RecordUpdateSkipped(kind string, reason string)
	RecordUpdateFound(kind string)
}

// ScanResult holds the most recent valid step and rotate updates of a
// window. Either may be nil.
type ScanResult struct {
	Step     *lightclient.StepUpdate
	StepTx   common.Hash
	Rotate   *lightclient.RotateUpdate
	RotateTx common.Hash

	// Skipped lists the decode failures encountered before the result was
	// complete, newest first.
	Skipped []error
}

// Complete reports whether both kinds of update were found.
func (r *ScanResult) Complete() bool {
	return r.Step != nil && r.Rotate != nil
}

// Scanner picks the first (most recent) valid step and rotate update out of
// a list of transactions sent to the light-client contract.
//
// A Scanner holds no state between calls; each Scan owns its result.
type Scanner struct {
	log        log.Logger
	contract   common.Address
	curveCheck bool
	metrics    ScanMetrics
}

func NewScanner(log log.Logger, contract common.Address, curveCheck bool, m ScanMetrics) *Scanner {
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Scanner{
		log:        log,
		contract:   contract,
		curveCheck: curveCheck,
		metrics:    m,
	}
}

// Classify determines the update kind of a transaction. The explorer's
// function name is authoritative when present, otherwise the calldata
// selector is used.
func Classify(tx *eth.Transaction) UpdateKind {
	switch tx.MethodName() {
	case "step":
		return KindStep
	case "rotate":
		return KindRotate
	case "":
		return SelectorKind(tx.Input)
	default:
		return KindOther
	}
}

// Scan walks txs, which must be ordered newest first, and stops as soon as
// both a step and a rotate update have been found. Transactions that fail to
// decode are logged and skipped. If ctx is cancelled the partial result is
// discarded.
func (s *Scanner) Scan(ctx context.Context, txs []eth.Transaction) (ScanResult, error) {
	var res ScanResult
	for i := range txs {
		if res.Complete() {
			break
		}
		if err := ctx.Err(); err != nil {
			return ScanResult{}, err
		}
		tx := &txs[i]
		s.metrics.RecordTxScanned()

		kind := Classify(tx)
		if kind == KindOther {
			continue
		}
		if (kind == KindStep && res.Step != nil) || (kind == KindRotate && res.Rotate != nil) {
			continue
		}
		lgr := s.log.New("tx", tx.Hash, "block", tx.BlockNumber, "kind", kind)

		if tx.Reverted {
			lgr.Debug("ignoring reverted update")
			s.metrics.RecordUpdateSkipped(kind.String(), SkipReverted)
			continue
		}
		if tx.To != nil && *tx.To != s.contract {
			lgr.Debug("ignoring update sent to another contract", "to", tx.To)
			s.metrics.RecordUpdateSkipped(kind.String(), SkipWrongRecipient)
			continue
		}

		switch kind {
		case KindStep:
			step, err := s.decodeStep(tx)
			if err != nil {
				lgr.Warn("skipping malformed update", "err", err)
				s.metrics.RecordUpdateSkipped(kind.String(), skipReason(err))
				res.Skipped = append(res.Skipped, err)
				continue
			}
			lgr.Info("found step update", "slot", step.FinalizedSlot, "participation", step.Participation, "id", step.Commit())
			s.metrics.RecordUpdateFound(kind.String())
			res.Step = &step
			res.StepTx = tx.Hash
		case KindRotate:
			rotate, err := s.decodeRotate(tx)
			if err != nil {
				lgr.Warn("skipping malformed update", "err", err)
				s.metrics.RecordUpdateSkipped(kind.String(), skipReason(err))
				res.Skipped = append(res.Skipped, err)
				continue
			}
			lgr.Info("found rotate update", "slot", rotate.Step.FinalizedSlot, "participation", rotate.Step.Participation, "id", rotate.Commit())
			s.metrics.RecordUpdateFound(kind.String())
			res.Rotate = &rotate
			res.RotateTx = tx.Hash
		}
	}
	return res, nil
}

func (s *Scanner) decodeStep(tx *eth.Transaction) (lightclient.StepUpdate, error) {
	decoded, err := DecodeStep(tx.Input)
	if err != nil {
		return lightclient.StepUpdate{}, withTx(err, tx)
	}
	step, err := decoded.Normalize()
	if err != nil {
		return lightclient.StepUpdate{}, &DecodeError{Tx: tx.Hash, Block: tx.BlockNumber, Kind: KindStep, Reason: SkipNormalize, Err: err}
	}
	if s.curveCheck {
		if err := CheckProofCurve(step.Proof); err != nil {
			return lightclient.StepUpdate{}, &DecodeError{Tx: tx.Hash, Block: tx.BlockNumber, Kind: KindStep, Reason: SkipCurve, Err: err}
		}
	}
	return step, nil
}

func (s *Scanner) decodeRotate(tx *eth.Transaction) (lightclient.RotateUpdate, error) {
	decoded, err := DecodeRotate(tx.Input)
	if err != nil {
		return lightclient.RotateUpdate{}, withTx(err, tx)
	}
	rotate, err := decoded.Normalize()
	if err != nil {
		return lightclient.RotateUpdate{}, &DecodeError{Tx: tx.Hash, Block: tx.BlockNumber, Kind: KindRotate, Reason: SkipNormalize, Err: err}
	}
	if s.curveCheck {
		for _, p := range []lightclient.Proof{rotate.Step.Proof, rotate.Proof} {
			if err := CheckProofCurve(p); err != nil {
				return lightclient.RotateUpdate{}, &DecodeError{Tx: tx.Hash, Block: tx.BlockNumber, Kind: KindRotate, Reason: SkipCurve, Err: err}
			}
		}
	}
	return rotate, nil
}

// withTx attaches the transaction context to a decoder error.
func withTx(err error, tx *eth.Transaction) error {
	var de *DecodeError
	if errors.As(err, &de) {
		de.Tx = tx.Hash
		de.Block = tx.BlockNumber
	}
	return err
}

func skipReason(err error) string {
	var de *DecodeError
	if errors.As(err, &de) && (de.Reason == SkipNormalize || de.Reason == SkipCurve) {
		return de.Reason
	}
	return SkipDecode
}
