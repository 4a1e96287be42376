// relay-decode decodes light-client update calldata and prints the verifier
// message the relayer would submit for it.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/olekukonko/tablewriter"
	"github.com/peterbourgon/ff/v3"

	"github.com/cosmwasm-lightclient/relayer/relay-node/derive"
	"github.com/cosmwasm-lightclient/relayer/relay-service/lightclient"
	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

// Environment variables beginning with this prefix can be used to instantiate command line flags
const EnvPrefix = "RELAY_DECODE"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "relay-decode:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("relay-decode", flag.ContinueOnError)
	var (
		calldata   = fs.String("calldata", "", "hex calldata of a step or rotate call, read from stdin when empty")
		format     = fs.String("format", "table", "output format: table or json")
		curveCheck = fs.Bool("curve-check", false, "check that proof points lie on the bn254 curve")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return err
	}

	input := *calldata
	if input == "" {
		bz, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(bz)
	}
	data, err := parseCalldata(input)
	if err != nil {
		return err
	}

	kind, update, err := decode(data, *curveCheck)
	if err != nil {
		return err
	}
	switch *format {
	case "json":
		return printJSON(stdout, update)
	case "table":
		printTable(stdout, kind, update)
		return nil
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func parseCalldata(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("no calldata given")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid calldata: %w", err)
	}
	return data, nil
}

// decode returns the normalized update, either a lightclient.StepUpdate or a
// lightclient.RotateUpdate.
func decode(data []byte, curveCheck bool) (derive.UpdateKind, any, error) {
	kind, update, err := derive.Decode(data)
	if err != nil {
		return kind, nil, err
	}
	switch u := update.(type) {
	case lightclient.StepUpdate:
		n, err := u.Normalize()
		if err != nil {
			return kind, nil, err
		}
		if curveCheck {
			if err := derive.CheckProofCurve(n.Proof); err != nil {
				return kind, nil, err
			}
		}
		return kind, n, nil
	case lightclient.RotateUpdate:
		n, err := u.Normalize()
		if err != nil {
			return kind, nil, err
		}
		if curveCheck {
			if err := derive.CheckProofCurve(n.Step.Proof); err != nil {
				return kind, nil, err
			}
			if err := derive.CheckProofCurve(n.Proof); err != nil {
				return kind, nil, err
			}
		}
		return kind, n, nil
	default:
		return kind, nil, fmt.Errorf("unexpected update type %T", update)
	}
}

func printJSON(w io.Writer, update any) error {
	var (
		msg verifier.ExecuteMsg
		err error
	)
	switch u := update.(type) {
	case lightclient.StepUpdate:
		msg, err = verifier.BuildStep(u)
	case lightclient.RotateUpdate:
		msg, err = verifier.BuildRotate(u)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msg)
}

func printTable(w io.Writer, kind derive.UpdateKind, update any) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"kind", kind.String()})
	switch u := update.(type) {
	case lightclient.StepUpdate:
		table.Append([]string{"id", u.Commit().String()})
		appendStep(table, "", u)
	case lightclient.RotateUpdate:
		table.Append([]string{"id", u.Commit().String()})
		appendStep(table, "step.", u.Step)
		table.Append([]string{"sync_committee_ssz", string(u.SyncCommitteeSSZ)})
		table.Append([]string{"sync_committee_poseidon", string(u.SyncCommitteePoseidon)})
		appendProof(table, "rotate_proof", u.Proof)
	}
	table.Render()
}

func appendStep(table *tablewriter.Table, prefix string, s lightclient.StepUpdate) {
	table.AppendBulk([][]string{
		{prefix + "finalized_slot", strconv.FormatUint(s.FinalizedSlot, 10)},
		{prefix + "participation", strconv.FormatUint(s.Participation, 10)},
		{prefix + "finalized_header_root", string(s.FinalizedHeaderRoot)},
		{prefix + "execution_state_root", string(s.ExecutionStateRoot)},
	})
	appendProof(table, prefix+"proof", s.Proof)
}

func appendProof(table *tablewriter.Table, name string, p lightclient.Proof) {
	table.AppendBulk([][]string{
		{name + ".a", fmt.Sprintf("[%s, %s]", p.A[0], p.A[1])},
		{name + ".b", fmt.Sprintf("[[%s, %s], [%s, %s]]", p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1])},
		{name + ".c", fmt.Sprintf("[%s, %s]", p.C[0], p.C[1])},
	})
}
