package verifier

import (
	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
)

// ExecuteMsg is the execute entry point of the verifier contract. Exactly one
// variant is set; it serializes as {"<variant>":{...}}.
type ExecuteMsg struct {
	Step   *StepMsg   `json:"step,omitempty"`
	Rotate *RotateMsg `json:"rotate,omitempty"`
	Force  *ForceMsg  `json:"force,omitempty"`
}

// Kind names the variant that is set, or "" for an empty message.
func (m ExecuteMsg) Kind() string {
	switch {
	case m.Step != nil:
		return "step"
	case m.Rotate != nil:
		return "rotate"
	case m.Force != nil:
		return "force"
	default:
		return ""
	}
}

type StepMsg struct {
	ProofA              [2]string    `json:"proof_a"`
	ProofB              [2][2]string `json:"proof_b"`
	ProofC              [2]string    `json:"proof_c"`
	FinalizedSlot       uint32       `json:"finalized_slot"`
	Participation       uint32       `json:"participation"`
	FinalizedHeaderRoot string       `json:"finalized_header_root"`
	ExecutionStateRoot  string       `json:"execution_state_root"`
}

type RotateMsg struct {
	FinalizedSlot       uint32       `json:"finalized_slot"`
	Participation       uint32       `json:"participation"`
	FinalizedHeaderRoot string       `json:"finalized_header_root"`
	ExecutionStateRoot  string       `json:"execution_state_root"`
	StepProofA          [2]string    `json:"step_proof_a"`
	StepProofB          [2][2]string `json:"step_proof_b"`
	StepProofC          [2]string    `json:"step_proof_c"`

	SyncCommitteeSSZ      string       `json:"sync_committee_ssz"`
	SyncCommitteePoseidon string       `json:"sync_committee_poseidon"`
	RotateProofA          [2]string    `json:"rotate_proof_a"`
	RotateProofB          [2][2]string `json:"rotate_proof_b"`
	RotateProofC          [2]string    `json:"rotate_proof_c"`
}

// ForceMsg asks the contract to accept the pending update for a period. Only
// the contract owner may send it.
type ForceMsg struct {
	Period uint32 `json:"period"`
}

// QueryMsg is the smart-query entry point of the verifier contract.
type QueryMsg struct {
	GetCurrentSlot         *GetCurrentSlot         `json:"get_current_slot,omitempty"`
	GetSyncCommitteePeriod *GetSyncCommitteePeriod `json:"get_sync_committee_period,omitempty"`
}

type GetCurrentSlot struct{}

type GetSyncCommitteePeriod struct {
	Slot lightclient.U256 `json:"slot"`
}

type CurrentSlotResponse struct {
	Slot lightclient.U256 `json:"slot"`
}

type SyncCommitteePeriodResponse struct {
	Period lightclient.U256 `json:"period"`
}

// CurrentSlotQuery returns {"get_current_slot":{}}.
func CurrentSlotQuery() QueryMsg {
	return QueryMsg{GetCurrentSlot: &GetCurrentSlot{}}
}

// SyncCommitteePeriodQuery returns {"get_sync_committee_period":{"slot":"<slot>"}}.
func SyncCommitteePeriodQuery(slot uint64) QueryMsg {
	return QueryMsg{GetSyncCommitteePeriod: &GetSyncCommitteePeriod{Slot: lightclient.U256FromUint64(slot)}}
}
