package explorer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
)

// Every Etherscan-compatible API wraps its result in the same envelope.
// Status is "1" on success. On failure Result usually holds a message
// string instead of the expected payload.
type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// APIError is a response with status "0".
type APIError struct {
	Message string
	Result  string
}

func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("explorer error: %s", e.Message)
	}
	return fmt.Sprintf("explorer error: %s: %s", e.Message, e.Result)
}

// noTransactions is the message the txlist action answers with for an
// empty range.
const noTransactions = "No transactions found"

func (r *response) err() error {
	if r.Status == "1" {
		return nil
	}
	var msg string
	if err := json.Unmarshal(r.Result, &msg); err != nil {
		msg = string(r.Result)
	}
	return &APIError{Message: r.Message, Result: msg}
}

func (r *response) empty() bool {
	return r.Status == "0" && strings.HasPrefix(r.Message, noTransactions)
}

// Transaction is one entry of a txlist result. The API renders every field
// as a string.
type Transaction struct {
	BlockNumber      string `json:"blockNumber"`
	TimeStamp        string `json:"timeStamp"`
	Hash             string `json:"hash"`
	TransactionIndex string `json:"transactionIndex"`
	From             string `json:"from"`
	To               string `json:"to"`
	IsError          string `json:"isError"`
	TxReceiptStatus  string `json:"txreceipt_status"`
	Input            string `json:"input"`
	MethodID         string `json:"methodId"`
	FunctionName     string `json:"functionName"`
}

// Reverted reports whether the explorer flagged the transaction as failed.
func (tx *Transaction) Reverted() bool {
	return tx.IsError == "1" || tx.TxReceiptStatus == "0"
}

// ToEth converts the entry. Calldata that is not valid hex is dropped so
// that the scan can report it against the transaction.
func (tx *Transaction) ToEth() (eth.Transaction, error) {
	number, err := parseUint("blockNumber", tx.BlockNumber)
	if err != nil {
		return eth.Transaction{}, err
	}
	index, err := parseOptionalUint("transactionIndex", tx.TransactionIndex)
	if err != nil {
		return eth.Transaction{}, err
	}
	ts, err := parseOptionalUint("timeStamp", tx.TimeStamp)
	if err != nil {
		return eth.Transaction{}, err
	}
	hash, err := hexutil.Decode(tx.Hash)
	if err != nil || len(hash) != common.HashLength {
		return eth.Transaction{}, errors.Errorf("invalid transaction hash %q", tx.Hash)
	}
	out := eth.Transaction{
		Hash:         common.BytesToHash(hash),
		BlockNumber:  number,
		Index:        index,
		Timestamp:    ts,
		From:         common.HexToAddress(tx.From),
		FunctionName: tx.FunctionName,
		Reverted:     tx.Reverted(),
	}
	if common.IsHexAddress(tx.To) {
		to := common.HexToAddress(tx.To)
		out.To = &to
	}
	if input, err := hexutil.Decode(tx.Input); err == nil {
		out.Input = input
	}
	return out, nil
}

func parseUint(field, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", field, s)
	}
	return n, nil
}

func parseOptionalUint(field, s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return parseUint(field, s)
}
