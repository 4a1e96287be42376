package lightclient

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// A U256 is an unsigned 256-bit field element rendered as a base-10 string.
// The canonical form has no sign, no exponent and no leading zeros ("0" for
// zero), which is what the verifier contract parses.
type U256 string

// U256FromBig renders a decoded ABI integer in canonical form.
func U256FromBig(n *big.Int) (U256, error) {
	if n == nil {
		return "", &MalformedIntError{Value: "<nil>", Reason: "missing value"}
	}
	if n.Sign() < 0 {
		return "", &MalformedIntError{Value: n.String(), Reason: "negative value"}
	}
	v, overflow := uint256.FromBig(n)
	if overflow {
		return "", &MalformedIntError{Value: n.String(), Reason: "exceeds 256 bits"}
	}
	return U256(v.Dec()), nil
}

// U256FromUint64 renders a small integer in canonical form.
func U256FromUint64(n uint64) U256 {
	return U256(uint256.NewInt(n).Dec())
}

// Int parses the value back into a 256-bit integer.
func (u U256) Int() (*uint256.Int, error) {
	return parseDecimal(string(u))
}

func (u *U256) UnmarshalJSON(in []byte) error {
	var s string
	if err := json.Unmarshal(in, &s); err != nil {
		return fmt.Errorf("field element must be a decimal string: %w", err)
	}
	*u = U256(s)
	return nil
}

// A Hash is a 32-byte value rendered as 64 lowercase hex characters without
// a 0x prefix.
type Hash string

// G1Point holds the affine coordinates of a pairing-curve G1 point.
type G1Point [2]U256

// G2Point holds the coordinates of a G2 point as two pairs of field
// elements, in the order the source contract encodes them.
type G2Point [2][2]U256

// Proof is a Groth16 proof triple.
type Proof struct {
	A G1Point `json:"a"`
	B G2Point `json:"b"`
	C G1Point `json:"c"`
}

// StepUpdate proves that a new header has been finalized by the current
// sync committee.
type StepUpdate struct {
	FinalizedSlot       uint64 `json:"finalized_slot"`
	Participation       uint64 `json:"participation"`
	FinalizedHeaderRoot Hash   `json:"finalized_header_root"`
	ExecutionStateRoot  Hash   `json:"execution_state_root"`
	Proof               Proof  `json:"proof"`
}

// RotateUpdate proves that the sync committee changed. It always carries
// the step proof for the same header.
type RotateUpdate struct {
	Step                  StepUpdate `json:"step"`
	SyncCommitteeSSZ      Hash       `json:"sync_committee_ssz"`
	SyncCommitteePoseidon U256       `json:"sync_committee_poseidon"`
	Proof                 Proof      `json:"proof"`
}
