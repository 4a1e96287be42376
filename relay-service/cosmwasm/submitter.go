package cosmwasm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

// Submitter delivers execute messages to the verifier contract and returns
// the destination transaction hash.
type Submitter interface {
	Submit(ctx context.Context, msg verifier.ExecuteMsg) (string, error)
}

// SubmissionError reports a message the destination chain did not accept,
// either because a step before broadcast failed or because the transaction
// was rejected with a non-zero code.
type SubmissionError struct {
	Kind      string
	Stage     string
	TxHash    string
	Code      uint32
	Codespace string
	Log       string
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to submit %s message (%s): %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s message rejected: tx %s code %d (%s): %s", e.Kind, e.TxHash, e.Code, e.Codespace, e.Log)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// LogSubmitter only logs the messages it is given. It backs the dry-run mode.
type LogSubmitter struct {
	log log.Logger
}

var _ Submitter = (*LogSubmitter)(nil)

func NewLogSubmitter(log log.Logger) *LogSubmitter {
	return &LogSubmitter{log: log}
}

func (s *LogSubmitter) Submit(ctx context.Context, msg verifier.ExecuteMsg) (string, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return "", &SubmissionError{Kind: msg.Kind(), Stage: "encode", Err: err}
	}
	s.log.Info("dry run, not submitting", "kind", msg.Kind(), "msg", string(bz))
	return "", nil
}
