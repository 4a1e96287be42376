package lightclient

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const hashHexLength = 64

// MalformedHashError reports a hash field that cannot be brought into
// canonical form.
type MalformedHashError struct {
	Field string
	Value string
}

func (e *MalformedHashError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed hash %q", e.Value)
	}
	return fmt.Sprintf("malformed hash in %s: %q", e.Field, e.Value)
}

// MalformedIntError reports a field element that is not an unsigned 256-bit
// decimal integer. Such values are rejected rather than coerced to zero.
type MalformedIntError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedIntError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed integer %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("malformed integer in %s: %q: %s", e.Field, e.Value, e.Reason)
}

// NormalizeHash strips an optional 0x prefix and lowercases the digits. The
// result must be exactly 64 hex characters.
func NormalizeHash(s string) (Hash, error) {
	h := s
	if len(h) >= 2 && h[0] == '0' && (h[1] == 'x' || h[1] == 'X') {
		h = h[2:]
	}
	if len(h) != hashHexLength {
		return "", &MalformedHashError{Value: s}
	}
	h = strings.ToLower(h)
	for i := 0; i < len(h); i++ {
		c := h[i]
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') {
			return "", &MalformedHashError{Value: s}
		}
	}
	return Hash(h), nil
}

// NormalizeU256 parses a decimal integer, tolerating leading zeros, and
// returns its canonical rendering.
func NormalizeU256(s string) (U256, error) {
	v, err := parseDecimal(s)
	if err != nil {
		return "", err
	}
	return U256(v.Dec()), nil
}

func parseDecimal(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, &MalformedIntError{Value: s, Reason: "empty"}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, &MalformedIntError{Value: s, Reason: "not a base-10 digit string"}
		}
	}
	v := new(uint256.Int)
	if err := v.SetFromDecimal(s); err != nil {
		return nil, &MalformedIntError{Value: s, Reason: err.Error()}
	}
	return v, nil
}

func normalizeHashField(field string, h Hash) (Hash, error) {
	out, err := NormalizeHash(string(h))
	if err != nil {
		return "", &MalformedHashError{Field: field, Value: string(h)}
	}
	return out, nil
}

func normalizeIntField(field string, u U256) (U256, error) {
	out, err := NormalizeU256(string(u))
	if err != nil {
		if mie, ok := err.(*MalformedIntError); ok {
			mie.Field = field
		}
		return "", err
	}
	return out, nil
}

// Normalize returns the point with canonical coordinates.
func (p G1Point) Normalize(field string) (G1Point, error) {
	var out G1Point
	for i := range p {
		v, err := normalizeIntField(fmt.Sprintf("%s[%d]", field, i), p[i])
		if err != nil {
			return G1Point{}, err
		}
		out[i] = v
	}
	return out, nil
}

// Normalize returns the point with canonical coordinates.
func (p G2Point) Normalize(field string) (G2Point, error) {
	var out G2Point
	for i := range p {
		for j := range p[i] {
			v, err := normalizeIntField(fmt.Sprintf("%s[%d][%d]", field, i, j), p[i][j])
			if err != nil {
				return G2Point{}, err
			}
			out[i][j] = v
		}
	}
	return out, nil
}

// Normalize canonicalizes every coordinate of the proof. The prefix names the
// proof in error messages.
func (p Proof) Normalize(prefix string) (Proof, error) {
	a, err := p.A.Normalize(prefix + "_a")
	if err != nil {
		return Proof{}, err
	}
	b, err := p.B.Normalize(prefix + "_b")
	if err != nil {
		return Proof{}, err
	}
	c, err := p.C.Normalize(prefix + "_c")
	if err != nil {
		return Proof{}, err
	}
	return Proof{A: a, B: b, C: c}, nil
}

// Normalize returns a copy of the update with canonical hashes and field
// elements. Normalizing a normalized update returns it unchanged.
func (s StepUpdate) Normalize() (StepUpdate, error) {
	header, err := normalizeHashField("finalized_header_root", s.FinalizedHeaderRoot)
	if err != nil {
		return StepUpdate{}, err
	}
	state, err := normalizeHashField("execution_state_root", s.ExecutionStateRoot)
	if err != nil {
		return StepUpdate{}, err
	}
	proof, err := s.Proof.Normalize("proof")
	if err != nil {
		return StepUpdate{}, err
	}
	return StepUpdate{
		FinalizedSlot:       s.FinalizedSlot,
		Participation:       s.Participation,
		FinalizedHeaderRoot: header,
		ExecutionStateRoot:  state,
		Proof:               proof,
	}, nil
}

// Normalize returns a copy of the update with canonical hashes and field
// elements, including the nested step.
func (r RotateUpdate) Normalize() (RotateUpdate, error) {
	step, err := r.Step.Normalize()
	if err != nil {
		return RotateUpdate{}, err
	}
	ssz, err := normalizeHashField("sync_committee_ssz", r.SyncCommitteeSSZ)
	if err != nil {
		return RotateUpdate{}, err
	}
	poseidon, err := normalizeIntField("sync_committee_poseidon", r.SyncCommitteePoseidon)
	if err != nil {
		return RotateUpdate{}, err
	}
	proof, err := r.Proof.Normalize("rotate_proof")
	if err != nil {
		return RotateUpdate{}, err
	}
	return RotateUpdate{
		Step:                  step,
		SyncCommitteeSSZ:      ssz,
		SyncCommitteePoseidon: poseidon,
		Proof:                 proof,
	}, nil
}
