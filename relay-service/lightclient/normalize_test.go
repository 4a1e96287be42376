package lightclient

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHash(t *testing.T) {
	want := Hash("70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653")
	for _, in := range []string{
		"70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653",
		"0x70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653",
		"0x70D0A7F53A459DD88EB37C6CFDFB8C48F120E504C96B182357498F2691AA5653",
		"0X70d0A7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653",
	} {
		got, err := NormalizeHash(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestNormalizeHashMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"0x",
		"70d0a7f5",
		"0x70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa565",
		"0x70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa56530",
		"0x70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa565g",
		"0x0x0d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653",
	} {
		_, err := NormalizeHash(in)
		var mhe *MalformedHashError
		require.ErrorAs(t, err, &mhe, in)
	}
}

func TestNormalizeHashFuzzedCasing(t *testing.T) {
	f := fuzz.NewWithSeed(1234)
	for i := 0; i < 200; i++ {
		var raw [32]byte
		var mask [64]bool
		var prefix bool
		f.Fuzz(&raw)
		f.Fuzz(&mask)
		f.Fuzz(&prefix)

		canonical := fmt.Sprintf("%x", raw[:])
		var sb strings.Builder
		if prefix {
			sb.WriteString("0x")
		}
		for j, c := range canonical {
			if mask[j] {
				sb.WriteString(strings.ToUpper(string(c)))
			} else {
				sb.WriteRune(c)
			}
		}
		got, err := NormalizeHash(sb.String())
		require.NoError(t, err)
		require.Equal(t, Hash(canonical), got)
	}
}

func TestNormalizeU256(t *testing.T) {
	testCases := []struct {
		in   string
		want U256
	}{
		{"0", "0"},
		{"000", "0"},
		{"0042", "42"},
		{"4359840", "4359840"},
		{
			"115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935",
		},
		{
			"00115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935",
		},
	}
	for _, tc := range testCases {
		got, err := NormalizeU256(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeU256Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"-1",
		"+1",
		"1e9",
		"0x10",
		"NaN",
		" 1",
		"12.5",
		"115792089237316195423570985008687907853269984665640564039457584007913129639936",
	} {
		_, err := NormalizeU256(in)
		var mie *MalformedIntError
		require.ErrorAs(t, err, &mie, in)
	}
}

func TestU256RoundTrip(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).SetUint64(^uint64(0)),
		new(big.Int).Lsh(big.NewInt(1), 128),
		max,
	}
	f := fuzz.NewWithSeed(42)
	for i := 0; i < 100; i++ {
		var words [4]uint64
		f.Fuzz(&words)
		values = append(values, uint256.NewInt(0).SetBytes32(wordsToBytes(words)).ToBig())
	}
	for _, v := range values {
		u, err := U256FromBig(v)
		require.NoError(t, err)
		require.Equal(t, v.String(), string(u))

		back, err := u.Int()
		require.NoError(t, err)
		require.Equal(t, 0, back.ToBig().Cmp(v))
	}

	_, err := U256FromBig(new(big.Int).Add(max, big.NewInt(1)))
	require.Error(t, err)
	_, err = U256FromBig(big.NewInt(-1))
	require.Error(t, err)
}

func wordsToBytes(words [4]uint64) []byte {
	out := make([]byte, 32)
	for i, w := range words {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(w >> (56 - 8*j))
		}
	}
	return out
}

func TestStepNormalizeScenario(t *testing.T) {
	raw := ReferenceStep
	raw.FinalizedHeaderRoot = "0x70D0A7F53A459DD88EB37C6CFDFB8C48F120E504C96B182357498F2691AA5653"
	raw.ExecutionStateRoot = "0x69d746cb81cd1fb4c11f4dcc04b6114596859b518614da0dd3b4192ff66c3a58"
	raw.Proof.A[0] = "0" + raw.Proof.A[0]

	got, err := raw.Normalize()
	require.NoError(t, err)
	require.Equal(t, ReferenceStep, got)
	require.Equal(t, Hash("70d0a7f53a459dd88eb37c6cfdfb8c48f120e504c96b182357498f2691aa5653"), got.FinalizedHeaderRoot)
	require.Equal(t, U256("11615329083473960992128771606806176302546966364412380447650480685095571936958"), got.Proof.A[0])
}

func TestNormalizeIdempotent(t *testing.T) {
	step, err := ReferenceStep.Normalize()
	require.NoError(t, err)
	again, err := step.Normalize()
	require.NoError(t, err)
	require.Equal(t, step, again)

	rotate, err := ReferenceRotate.Normalize()
	require.NoError(t, err)
	require.Equal(t, ReferenceRotate, rotate)
	again2, err := rotate.Normalize()
	require.NoError(t, err)
	require.Equal(t, rotate, again2)
}

func TestRotateNormalizeErrors(t *testing.T) {
	badSSZ := ReferenceRotate
	badSSZ.SyncCommitteeSSZ = "0xabc"
	_, err := badSSZ.Normalize()
	var mhe *MalformedHashError
	require.ErrorAs(t, err, &mhe)
	require.Equal(t, "sync_committee_ssz", mhe.Field)

	badStep := ReferenceRotate
	badStep.Step.ExecutionStateRoot = ""
	_, err = badStep.Normalize()
	require.ErrorAs(t, err, &mhe)
	require.Equal(t, "execution_state_root", mhe.Field)

	badProof := ReferenceRotate
	badProof.Proof.B[1][0] = "NaN"
	_, err = badProof.Normalize()
	var mie *MalformedIntError
	require.True(t, errors.As(err, &mie))
	require.Equal(t, "rotate_proof_b[1][0]", mie.Field)
}
