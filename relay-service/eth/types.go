package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is a source-chain transaction as seen by the relayer. Both
// the explorer API and the JSON-RPC walker produce it.
type Transaction struct {
	Hash        common.Hash
	BlockNumber uint64
	Index       uint64
	Timestamp   uint64
	From        common.Address
	// To is nil for contract creations.
	To *common.Address
	// FunctionName is the explorer's rendering of the called method, e.g.
	// "step(tuple update)". It may be empty.
	FunctionName string
	Input        hexutil.Bytes
	Reverted     bool
}

// Selector returns the first four bytes of the calldata, if present.
func (tx *Transaction) Selector() ([4]byte, bool) {
	var sel [4]byte
	if len(tx.Input) < 4 {
		return sel, false
	}
	copy(sel[:], tx.Input[:4])
	return sel, true
}

// MethodName returns the function name without its argument list.
func (tx *Transaction) MethodName() string {
	name := strings.TrimSpace(tx.FunctionName)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return name
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("%s:%d", tx.Hash.TerminalString(), tx.BlockNumber)
}
