package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cosmwasm-lightclient/relayer/relay-node/derive"
	"github.com/cosmwasm-lightclient/relayer/relay-service/testutils"
	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

func TestDecodeStepJSON(t *testing.T) {
	ref := testutils.ReferenceStep()
	data, err := derive.EncodeStep(ref)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run([]string{"-format", "json", "-calldata", hexutil.Encode(data)}, strings.NewReader(""), &out))

	var got verifier.ExecuteMsg
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	want, err := verifier.BuildStep(ref)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRotateTableFromStdin(t *testing.T) {
	ref := testutils.ReferenceRotate()
	data, err := derive.EncodeRotate(ref)
	require.NoError(t, err)

	var out bytes.Buffer
	// Without 0x prefix and with a trailing newline, as pasted into a pipe.
	stdin := strings.NewReader(hexutil.Encode(data)[2:] + "\n")
	require.NoError(t, run(nil, stdin, &out))

	table := out.String()
	require.Contains(t, table, "rotate")
	require.Contains(t, table, ref.Commit().String())
	require.Contains(t, table, "step.finalized_slot")
	require.Contains(t, table, string(ref.SyncCommitteeSSZ))
	require.Contains(t, table, string(ref.SyncCommitteePoseidon))
	require.Contains(t, table, "rotate_proof.b")
}

func TestDecodeFormatFromEnv(t *testing.T) {
	data, err := derive.EncodeStep(testutils.ReferenceStep())
	require.NoError(t, err)
	t.Setenv("RELAY_DECODE_FORMAT", "json")
	t.Setenv("RELAY_DECODE_CALLDATA", hexutil.Encode(data))

	var out bytes.Buffer
	require.NoError(t, run(nil, strings.NewReader(""), &out))
	require.True(t, json.Valid(out.Bytes()))
	require.Contains(t, out.String(), `"finalized_slot": 4359840`)
}

func TestDecodeCurveCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data, err := derive.EncodeStep(testutils.RandomStep(rng, 100))
	require.NoError(t, err)
	calldata := hexutil.Encode(data)

	var out bytes.Buffer
	require.NoError(t, run([]string{"-calldata", calldata}, strings.NewReader(""), &out))
	require.Error(t, run([]string{"-curve-check", "-calldata", calldata}, strings.NewReader(""), &out))
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
		msg  string
	}{
		{name: "empty", in: " \n", msg: "no calldata"},
		{name: "not hex", args: []string{"-calldata", "0xzz"}, msg: "invalid calldata"},
		{name: "unknown selector", args: []string{"-calldata", "0xdeadbeef"}, msg: "unknown function selector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, strings.NewReader(tt.in), &out)
			require.ErrorContains(t, err, tt.msg)
		})
	}

	data, err := derive.EncodeStep(testutils.ReferenceStep())
	require.NoError(t, err)
	var out bytes.Buffer
	err = run([]string{"-format", "yaml", "-calldata", hexutil.Encode(data)}, strings.NewReader(""), &out)
	require.ErrorContains(t, err, `unknown format "yaml"`)
}
