package verifier

import (
	"fmt"
	"math"

	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
)

// BuildError reports a record that cannot be expressed in the verifier's
// message schema. It is fatal to that message only.
type BuildError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("cannot build %s message: %s: %s", e.Kind, e.Field, e.Reason)
}

// msgBuilder collects the first problem while copying fields, so the Build*
// functions read as a flat list of assignments.
type msgBuilder struct {
	kind string
	err  *BuildError
}

func (b *msgBuilder) fail(field, reason string) {
	if b.err == nil {
		b.err = &BuildError{Kind: b.kind, Field: field, Reason: reason}
	}
}

func (b *msgBuilder) u32(field string, v uint64) uint32 {
	if v > math.MaxUint32 {
		b.fail(field, fmt.Sprintf("%d does not fit in u32", v))
		return 0
	}
	return uint32(v)
}

func (b *msgBuilder) str(field string, s string) string {
	if s == "" {
		b.fail(field, "empty value")
	}
	return s
}

func (b *msgBuilder) g1(field string, p lightclient.G1Point) [2]string {
	var out [2]string
	for i := range p {
		out[i] = b.str(fmt.Sprintf("%s[%d]", field, i), string(p[i]))
	}
	return out
}

func (b *msgBuilder) g2(field string, p lightclient.G2Point) [2][2]string {
	var out [2][2]string
	for i := range p {
		for j := range p[i] {
			out[i][j] = b.str(fmt.Sprintf("%s[%d][%d]", field, i, j), string(p[i][j]))
		}
	}
	return out
}

// BuildStep maps a normalized step update onto the "step" execute variant.
func BuildStep(s lightclient.StepUpdate) (ExecuteMsg, error) {
	b := &msgBuilder{kind: "step"}
	msg := &StepMsg{
		ProofA:              b.g1("proof_a", s.Proof.A),
		ProofB:              b.g2("proof_b", s.Proof.B),
		ProofC:              b.g1("proof_c", s.Proof.C),
		FinalizedSlot:       b.u32("finalized_slot", s.FinalizedSlot),
		Participation:       b.u32("participation", s.Participation),
		FinalizedHeaderRoot: b.str("finalized_header_root", string(s.FinalizedHeaderRoot)),
		ExecutionStateRoot:  b.str("execution_state_root", string(s.ExecutionStateRoot)),
	}
	if b.err != nil {
		return ExecuteMsg{}, b.err
	}
	return ExecuteMsg{Step: msg}, nil
}

// BuildRotate maps a normalized rotate update onto the "rotate" execute
// variant. The nested step supplies the header fields and the step proof.
func BuildRotate(r lightclient.RotateUpdate) (ExecuteMsg, error) {
	b := &msgBuilder{kind: "rotate"}
	msg := &RotateMsg{
		FinalizedSlot:         b.u32("finalized_slot", r.Step.FinalizedSlot),
		Participation:         b.u32("participation", r.Step.Participation),
		FinalizedHeaderRoot:   b.str("finalized_header_root", string(r.Step.FinalizedHeaderRoot)),
		ExecutionStateRoot:    b.str("execution_state_root", string(r.Step.ExecutionStateRoot)),
		StepProofA:            b.g1("step_proof_a", r.Step.Proof.A),
		StepProofB:            b.g2("step_proof_b", r.Step.Proof.B),
		StepProofC:            b.g1("step_proof_c", r.Step.Proof.C),
		SyncCommitteeSSZ:      b.str("sync_committee_ssz", string(r.SyncCommitteeSSZ)),
		SyncCommitteePoseidon: b.str("sync_committee_poseidon", string(r.SyncCommitteePoseidon)),
		RotateProofA:          b.g1("rotate_proof_a", r.Proof.A),
		RotateProofB:          b.g2("rotate_proof_b", r.Proof.B),
		RotateProofC:          b.g1("rotate_proof_c", r.Proof.C),
	}
	if b.err != nil {
		return ExecuteMsg{}, b.err
	}
	return ExecuteMsg{Rotate: msg}, nil
}

// BuildForce returns the owner-only "force" variant for a sync committee
// period.
func BuildForce(period uint64) (ExecuteMsg, error) {
	b := &msgBuilder{kind: "force"}
	p := b.u32("period", period)
	if b.err != nil {
		return ExecuteMsg{}, b.err
	}
	return ExecuteMsg{Force: &ForceMsg{Period: p}}, nil
}
