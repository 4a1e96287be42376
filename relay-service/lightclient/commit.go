package lightclient

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Commitment identifies a normalized update. Two updates commit to the same
// value iff all of their canonical fields are equal.
type Commitment [32]byte

func (c Commitment) String() string {
	return common.Hash(c).Hex()
}

// TerminalString is the abbreviated form used in log lines.
func (c Commitment) TerminalString() string {
	return common.Hash(c).TerminalString()
}

type RawCommitmentBuilder struct {
	hasher crypto.KeccakState
}

func NewRawCommitmentBuilder(name string) *RawCommitmentBuilder {
	b := new(RawCommitmentBuilder)
	b.hasher = crypto.NewKeccakState()
	return b.ConstantString(name)
}

// Append a constant string to the running hash.
//
// WARNING: The string `s` must be a constant. Its length is not committed to.
func (b *RawCommitmentBuilder) ConstantString(s string) *RawCommitmentBuilder {
	if _, err := io.WriteString(b.hasher, s); err != nil {
		panic(fmt.Sprintf("KeccakState Writer is not supposed to fail, but it did: %v", err))
	}
	// Domain separator: a byte sequence that can never appear in valid UTF-8.
	invalidUtf8 := []byte{0xC0, 0x7F}
	return b.FixedSizeBytes(invalidUtf8)
}

// Include a named field of another committable type.
func (b *RawCommitmentBuilder) Field(f string, c Commitment) *RawCommitmentBuilder {
	return b.ConstantString(f).FixedSizeBytes(c[:])
}

func (b *RawCommitmentBuilder) Uint64Field(f string, n uint64) *RawCommitmentBuilder {
	return b.ConstantString(f).Uint64(n)
}

func (b *RawCommitmentBuilder) Uint64(n uint64) *RawCommitmentBuilder {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, n)
	return b.FixedSizeBytes(bytes)
}

// Include a hash field. The hash must already be canonical; its 32 raw bytes
// are committed to.
func (b *RawCommitmentBuilder) HashField(f string, h Hash) *RawCommitmentBuilder {
	return b.ConstantString(f).FixedSizeBytes(common.HexToHash(string(h)).Bytes())
}

// Include a field element by its canonical decimal rendering.
func (b *RawCommitmentBuilder) U256Field(f string, n U256) *RawCommitmentBuilder {
	return b.ConstantString(f).VarSizeBytes([]byte(n))
}

// Append a fixed size byte array to the running hash. The caller must only
// use slices whose length is determined by the type being committed to.
func (b *RawCommitmentBuilder) FixedSizeBytes(bytes []byte) *RawCommitmentBuilder {
	b.hasher.Write(bytes)
	return b
}

// Include a byte array of dynamic length, prefixed by its length.
func (b *RawCommitmentBuilder) VarSizeBytes(bytes []byte) *RawCommitmentBuilder {
	b.Uint64(uint64(len(bytes)))
	b.hasher.Write(bytes)
	return b
}

func (b *RawCommitmentBuilder) Finalize() Commitment {
	var comm Commitment
	bytes := b.hasher.Sum(nil)
	copy(comm[:], bytes)
	return comm
}

func (p Proof) Commit() Commitment {
	return NewRawCommitmentBuilder("GROTH16").
		U256Field("a0", p.A[0]).
		U256Field("a1", p.A[1]).
		U256Field("b00", p.B[0][0]).
		U256Field("b01", p.B[0][1]).
		U256Field("b10", p.B[1][0]).
		U256Field("b11", p.B[1][1]).
		U256Field("c0", p.C[0]).
		U256Field("c1", p.C[1]).
		Finalize()
}

func (s *StepUpdate) Commit() Commitment {
	return NewRawCommitmentBuilder("STEP").
		Uint64Field("finalized_slot", s.FinalizedSlot).
		Uint64Field("participation", s.Participation).
		HashField("finalized_header_root", s.FinalizedHeaderRoot).
		HashField("execution_state_root", s.ExecutionStateRoot).
		Field("proof", s.Proof.Commit()).
		Finalize()
}

func (r *RotateUpdate) Commit() Commitment {
	return NewRawCommitmentBuilder("ROTATE").
		Field("step", r.Step.Commit()).
		HashField("sync_committee_ssz", r.SyncCommitteeSSZ).
		U256Field("sync_committee_poseidon", r.SyncCommitteePoseidon).
		Field("proof", r.Proof.Commit()).
		Finalize()
}
