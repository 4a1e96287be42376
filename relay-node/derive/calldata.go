package derive

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
)

const (
	StepFuncSignature   = "step((uint256,uint256,bytes32,bytes32,(uint256[2],uint256[2][2],uint256[2])))"
	RotateFuncSignature = "rotate(((uint256,uint256,bytes32,bytes32,(uint256[2],uint256[2][2],uint256[2])),bytes32,bytes32,(uint256[2],uint256[2][2],uint256[2])))"

	StepArgumentWords   = 12
	RotateArgumentWords = 22
	wordLen             = 32
)

var (
	StepFuncBytes4   = crypto.Keccak256([]byte(StepFuncSignature))[:4]
	RotateFuncBytes4 = crypto.Keccak256([]byte(RotateFuncSignature))[:4]

	StepMethod   abi.Method
	RotateMethod abi.Method
)

// UpdateKind is the classification of a source-chain transaction.
type UpdateKind uint8

const (
	KindOther UpdateKind = iota
	KindStep
	KindRotate
)

func (k UpdateKind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindRotate:
		return "rotate"
	default:
		return "other"
	}
}

func init() {
	proof := []abi.ArgumentMarshaling{
		{Name: "a", Type: "uint256[2]"},
		{Name: "b", Type: "uint256[2][2]"},
		{Name: "c", Type: "uint256[2]"},
	}
	step := []abi.ArgumentMarshaling{
		{Name: "finalizedSlot", Type: "uint256"},
		{Name: "participation", Type: "uint256"},
		{Name: "finalizedHeaderRoot", Type: "bytes32"},
		{Name: "executionStateRoot", Type: "bytes32"},
		{Name: "proof", Type: "tuple", Components: proof},
	}
	rotate := []abi.ArgumentMarshaling{
		{Name: "step", Type: "tuple", Components: step},
		{Name: "syncCommitteeSSZ", Type: "bytes32"},
		{Name: "syncCommitteePoseidon", Type: "bytes32"},
		{Name: "proof", Type: "tuple", Components: proof},
	}
	StepMethod = newUpdateMethod("step", step)
	RotateMethod = newUpdateMethod("rotate", rotate)
}

func newUpdateMethod(name string, components []abi.ArgumentMarshaling) abi.Method {
	typ, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(fmt.Sprintf("invalid %s update type: %v", name, err))
	}
	inputs := abi.Arguments{{Name: "update", Type: typ}}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil)
}

// The Go mirrors of the ABI tuples. Field order and names follow the
// contract's struct definitions so that abi.ConvertType can copy into them.
type proofTuple struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

type stepTuple struct {
	FinalizedSlot       *big.Int
	Participation       *big.Int
	FinalizedHeaderRoot [32]byte
	ExecutionStateRoot  [32]byte
	Proof               proofTuple
}

type rotateTuple struct {
	Step                  stepTuple
	SyncCommitteeSSZ      [32]byte
	SyncCommitteePoseidon [32]byte
	Proof                 proofTuple
}

// Step Binary Format
// +---------+--------------------------+
// | Bytes   | Field                    |
// +---------+--------------------------+
// | 4       | Function signature       |
// | 32      | FinalizedSlot            |
// | 32      | Participation            |
// | 32      | FinalizedHeaderRoot      |
// | 32      | ExecutionStateRoot       |
// | 64      | Proof.A                  |
// | 128     | Proof.B (row major)      |
// | 64      | Proof.C                  |
// +---------+--------------------------+
//
// Rotate Binary Format
// +---------+--------------------------+
// | Bytes   | Field                    |
// +---------+--------------------------+
// | 4       | Function signature       |
// | 384     | Step (as above, no sig)  |
// | 32      | SyncCommitteeSSZ         |
// | 32      | SyncCommitteePoseidon    |
// | 64      | Proof.A                  |
// | 128     | Proof.B (row major)      |
// | 64      | Proof.C                  |
// +---------+--------------------------+
//
// Every member is static, so the encoding has no offsets and its length is
// fixed.

// DecodeStep decodes the calldata of a step(update) call.
func DecodeStep(data []byte) (lightclient.StepUpdate, error) {
	values, err := unpackUpdate(KindStep, StepMethod, StepArgumentWords, data)
	if err != nil {
		return lightclient.StepUpdate{}, err
	}
	tuple := *abi.ConvertType(values[0], new(stepTuple)).(*stepTuple)
	return tuple.toUpdate(KindStep)
}

// DecodeRotate decodes the calldata of a rotate(update) call, including the
// embedded step.
func DecodeRotate(data []byte) (lightclient.RotateUpdate, error) {
	values, err := unpackUpdate(KindRotate, RotateMethod, RotateArgumentWords, data)
	if err != nil {
		return lightclient.RotateUpdate{}, err
	}
	tuple := *abi.ConvertType(values[0], new(rotateTuple)).(*rotateTuple)
	step, err := tuple.Step.toUpdate(KindRotate)
	if err != nil {
		return lightclient.RotateUpdate{}, err
	}
	poseidon, err := lightclient.U256FromBig(new(big.Int).SetBytes(tuple.SyncCommitteePoseidon[:]))
	if err != nil {
		return lightclient.RotateUpdate{}, &DecodeError{Kind: KindRotate, Reason: "sync_committee_poseidon", Err: err}
	}
	proof, err := tuple.Proof.toProof(KindRotate, "rotate_proof")
	if err != nil {
		return lightclient.RotateUpdate{}, err
	}
	return lightclient.RotateUpdate{
		Step:                  step,
		SyncCommitteeSSZ:      hashFromWord(tuple.SyncCommitteeSSZ),
		SyncCommitteePoseidon: poseidon,
		Proof:                 proof,
	}, nil
}

// Decode dispatches on the calldata selector.
func Decode(data []byte) (UpdateKind, any, error) {
	switch SelectorKind(data) {
	case KindStep:
		u, err := DecodeStep(data)
		return KindStep, u, err
	case KindRotate:
		u, err := DecodeRotate(data)
		return KindRotate, u, err
	default:
		return KindOther, nil, &DecodeError{Kind: KindOther, Reason: "unknown function selector"}
	}
}

// SelectorKind classifies calldata by its 4-byte selector.
func SelectorKind(data []byte) UpdateKind {
	if len(data) < 4 {
		return KindOther
	}
	switch {
	case bytes.Equal(data[:4], StepFuncBytes4):
		return KindStep
	case bytes.Equal(data[:4], RotateFuncBytes4):
		return KindRotate
	default:
		return KindOther
	}
}

func unpackUpdate(kind UpdateKind, method abi.Method, words int, data []byte) ([]any, error) {
	if len(data) < 4 {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("calldata too short for a selector (%d bytes)", len(data))}
	}
	if !bytes.Equal(data[:4], method.ID) {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("unexpected selector %x, expected %x", data[:4], method.ID)}
	}
	body := data[4:]
	if len(body) != words*wordLen {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("invalid argument length (%d, expected %d)", len(body), words*wordLen)}
	}
	values, err := method.Inputs.Unpack(body)
	if err != nil {
		return nil, &DecodeError{Kind: kind, Reason: "abi unpack", Err: err}
	}
	if len(values) != 1 {
		return nil, &DecodeError{Kind: kind, Reason: fmt.Sprintf("unexpected argument count %d", len(values))}
	}
	return values, nil
}

func (t *stepTuple) toUpdate(kind UpdateKind) (lightclient.StepUpdate, error) {
	if !t.FinalizedSlot.IsUint64() {
		return lightclient.StepUpdate{}, &DecodeError{Kind: kind, Reason: fmt.Sprintf("finalized_slot %s does not fit in 64 bits", t.FinalizedSlot)}
	}
	if !t.Participation.IsUint64() {
		return lightclient.StepUpdate{}, &DecodeError{Kind: kind, Reason: fmt.Sprintf("participation %s does not fit in 64 bits", t.Participation)}
	}
	prefix := "proof"
	if kind == KindRotate {
		prefix = "step_proof"
	}
	proof, err := t.Proof.toProof(kind, prefix)
	if err != nil {
		return lightclient.StepUpdate{}, err
	}
	return lightclient.StepUpdate{
		FinalizedSlot:       t.FinalizedSlot.Uint64(),
		Participation:       t.Participation.Uint64(),
		FinalizedHeaderRoot: hashFromWord(t.FinalizedHeaderRoot),
		ExecutionStateRoot:  hashFromWord(t.ExecutionStateRoot),
		Proof:               proof,
	}, nil
}

func (t *proofTuple) toProof(kind UpdateKind, prefix string) (lightclient.Proof, error) {
	var out lightclient.Proof
	conv := func(field string, n *big.Int) (lightclient.U256, error) {
		v, err := lightclient.U256FromBig(n)
		if err != nil {
			return "", &DecodeError{Kind: kind, Reason: field, Err: err}
		}
		return v, nil
	}
	var err error
	for i := 0; i < 2; i++ {
		if out.A[i], err = conv(fmt.Sprintf("%s_a[%d]", prefix, i), t.A[i]); err != nil {
			return lightclient.Proof{}, err
		}
		if out.C[i], err = conv(fmt.Sprintf("%s_c[%d]", prefix, i), t.C[i]); err != nil {
			return lightclient.Proof{}, err
		}
		for j := 0; j < 2; j++ {
			if out.B[i][j], err = conv(fmt.Sprintf("%s_b[%d][%d]", prefix, i, j), t.B[i][j]); err != nil {
				return lightclient.Proof{}, err
			}
		}
	}
	return out, nil
}

func hashFromWord(w [32]byte) lightclient.Hash {
	return lightclient.Hash(common.Bytes2Hex(w[:]))
}

// EncodeStep is the inverse of DecodeStep.
func EncodeStep(s lightclient.StepUpdate) ([]byte, error) {
	tuple, err := newStepTuple(s)
	if err != nil {
		return nil, err
	}
	return packUpdate(StepMethod, tuple)
}

// EncodeRotate is the inverse of DecodeRotate.
func EncodeRotate(r lightclient.RotateUpdate) ([]byte, error) {
	step, err := newStepTuple(r.Step)
	if err != nil {
		return nil, err
	}
	poseidon, err := r.SyncCommitteePoseidon.Int()
	if err != nil {
		return nil, err
	}
	proof, err := newProofTuple(r.Proof)
	if err != nil {
		return nil, err
	}
	tuple := rotateTuple{
		Step:                  step,
		SyncCommitteeSSZ:      common.HexToHash(string(r.SyncCommitteeSSZ)),
		SyncCommitteePoseidon: poseidon.Bytes32(),
		Proof:                 proof,
	}
	return packUpdate(RotateMethod, tuple)
}

func packUpdate(method abi.Method, tuple any) ([]byte, error) {
	body, err := method.Inputs.Pack(tuple)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, method.ID...), body...), nil
}

func newStepTuple(s lightclient.StepUpdate) (stepTuple, error) {
	proof, err := newProofTuple(s.Proof)
	if err != nil {
		return stepTuple{}, err
	}
	return stepTuple{
		FinalizedSlot:       new(big.Int).SetUint64(s.FinalizedSlot),
		Participation:       new(big.Int).SetUint64(s.Participation),
		FinalizedHeaderRoot: common.HexToHash(string(s.FinalizedHeaderRoot)),
		ExecutionStateRoot:  common.HexToHash(string(s.ExecutionStateRoot)),
		Proof:               proof,
	}, nil
}

func newProofTuple(p lightclient.Proof) (proofTuple, error) {
	var out proofTuple
	toBig := func(u lightclient.U256) (*big.Int, error) {
		v, err := u.Int()
		if err != nil {
			return nil, err
		}
		return v.ToBig(), nil
	}
	var err error
	for i := 0; i < 2; i++ {
		if out.A[i], err = toBig(p.A[i]); err != nil {
			return proofTuple{}, err
		}
		if out.C[i], err = toBig(p.C[i]); err != nil {
			return proofTuple{}, err
		}
		for j := 0; j < 2; j++ {
			if out.B[i][j], err = toBig(p.B[i][j]); err != nil {
				return proofTuple{}, err
			}
		}
	}
	return out, nil
}
