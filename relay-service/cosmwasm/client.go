// Package cosmwasm signs and broadcasts verifier contract messages to a
// Cosmos chain running the wasm module.
package cosmwasm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"cosmossdk.io/x/tx/signing"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/codec"
	addresscodec "github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cosmwasm-lightclient/relayer/relay-service/verifier"
)

const (
	// CosmosCoinType is the SLIP-44 coin type of the signing key.
	CosmosCoinType = 118

	DefaultTimeout = 30 * time.Second
)

type Config struct {
	GRPCAddr string
	Insecure bool

	ChainID  string
	Contract string
	Prefix   string
	Mnemonic string

	GasMultiplier float64
	GasPrice      string
	FeeDenom      string
	Memo          string

	Timeout time.Duration
}

// Check reports every missing or invalid option.
func (c *Config) Check() error {
	var result *multierror.Error
	if c.GRPCAddr == "" {
		result = multierror.Append(result, errors.New("missing destination grpc address"))
	}
	if c.ChainID == "" {
		result = multierror.Append(result, errors.New("missing destination chain id"))
	}
	if c.Prefix == "" {
		result = multierror.Append(result, errors.New("missing bech32 prefix"))
	} else if _, err := sdk.GetFromBech32(c.Contract, c.Prefix); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid verifier contract address %q: %w", c.Contract, err))
	}
	if c.Mnemonic == "" {
		result = multierror.Append(result, errors.New("missing mnemonic"))
	}
	if c.GasMultiplier <= 0 {
		result = multierror.Append(result, fmt.Errorf("gas multiplier must be positive, got %v", c.GasMultiplier))
	}
	if _, err := ParseGasPrice(c.GasPrice); err != nil {
		result = multierror.Append(result, err)
	}
	if err := sdk.ValidateDenom(c.FeeDenom); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid fee denom: %w", err))
	}
	return result.ErrorOrNil()
}

// Client submits execute messages and runs smart queries against one
// contract, signing with a key derived from a mnemonic.
type Client struct {
	log log.Logger
	cfg Config

	conn     *grpc.ClientConn
	registry codectypes.InterfaceRegistry
	txConfig client.TxConfig

	auth authtypes.QueryClient
	tx   txtypes.ServiceClient
	wasm wasmtypes.QueryClient

	priv     cryptotypes.PrivKey
	address  string
	gasPrice sdkmath.LegacyDec
}

var _ Submitter = (*Client)(nil)

// DeriveKey derives the secp256k1 key at m/44'/118'/0'/0/0.
func DeriveKey(mnemonic string) (cryptotypes.PrivKey, error) {
	path := hd.CreateHDPath(CosmosCoinType, 0, 0).String()
	bz, err := hd.Secp256k1.Derive()(mnemonic, "", path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return hd.Secp256k1.Generate()(bz), nil
}

// NewInterfaceRegistry returns a registry knowing the auth, crypto and wasm
// types, with address codecs for prefix.
func NewInterfaceRegistry(prefix string) (codectypes.InterfaceRegistry, error) {
	reg, err := codectypes.NewInterfaceRegistryWithOptions(codectypes.InterfaceRegistryOptions{
		ProtoFiles: proto.HybridResolver,
		SigningOptions: signing.Options{
			AddressCodec:          addresscodec.NewBech32Codec(prefix),
			ValidatorAddressCodec: addresscodec.NewBech32Codec(prefix + sdk.PrefixValidator + sdk.PrefixOperator),
		},
	})
	if err != nil {
		return nil, err
	}
	std.RegisterInterfaces(reg)
	authtypes.RegisterInterfaces(reg)
	wasmtypes.RegisterInterfaces(reg)
	return reg, nil
}

// Dial connects to the gRPC endpoint of the destination chain.
func Dial(log log.Logger, cfg Config) (*Client, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	reg, err := NewInterfaceRegistry(cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create interface registry: %w", err)
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.GRPCAddr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec.NewProtoCodec(reg).GRPCCodec())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.GRPCAddr, err)
	}
	c, err := newClient(log, cfg, reg, authtypes.NewQueryClient(conn), txtypes.NewServiceClient(conn), wasmtypes.NewQueryClient(conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newClient(log log.Logger, cfg Config, reg codectypes.InterfaceRegistry, auth authtypes.QueryClient, tx txtypes.ServiceClient, wasm wasmtypes.QueryClient) (*Client, error) {
	priv, err := DeriveKey(cfg.Mnemonic)
	if err != nil {
		return nil, err
	}
	address, err := sdk.Bech32ifyAddressBytes(cfg.Prefix, priv.PubKey().Address())
	if err != nil {
		return nil, fmt.Errorf("failed to encode signer address: %w", err)
	}
	gasPrice, err := ParseGasPrice(cfg.GasPrice)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		log:      log.New("signer", address),
		cfg:      cfg,
		registry: reg,
		txConfig: authtx.NewTxConfig(codec.NewProtoCodec(reg), []signingtypes.SignMode{signingtypes.SignMode_SIGN_MODE_DIRECT}),
		auth:     auth,
		tx:       tx,
		wasm:     wasm,
		priv:     priv,
		address:  address,
		gasPrice: gasPrice,
	}, nil
}

// Address is the bech32 address of the signing key.
func (c *Client) Address() string {
	return c.address
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Submit signs msg as a MsgExecuteContract with no funds attached and
// broadcasts it in sync mode. The gas limit comes from a simulation. Failures
// are not retried.
func (c *Client) Submit(ctx context.Context, msg verifier.ExecuteMsg) (string, error) {
	kind := msg.Kind()
	fail := func(stage string, err error) (string, error) {
		return "", &SubmissionError{Kind: kind, Stage: stage, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	bz, err := json.Marshal(msg)
	if err != nil {
		return fail("encode", err)
	}
	execMsg := &wasmtypes.MsgExecuteContract{
		Sender:   c.address,
		Contract: c.cfg.Contract,
		Msg:      wasmtypes.RawContractMessage(bz),
	}

	accNum, seq, err := c.account(ctx)
	if err != nil {
		return fail("account", err)
	}

	b := c.txConfig.NewTxBuilder()
	if err := b.SetMsgs(execMsg); err != nil {
		return fail("build", err)
	}
	b.SetMemo(c.cfg.Memo)

	// The signer info must be present for simulation, the signature may be
	// empty.
	if err := b.SetSignatures(c.emptySignature(seq)); err != nil {
		return fail("build", err)
	}
	simBytes, err := c.txConfig.TxEncoder()(b.GetTx())
	if err != nil {
		return fail("encode", err)
	}
	sim, err := c.tx.Simulate(ctx, &txtypes.SimulateRequest{TxBytes: simBytes})
	if err != nil {
		return fail("simulate", err)
	}
	if sim.GasInfo == nil {
		return fail("simulate", errors.New("simulation returned no gas info"))
	}
	gasLimit, err := GasLimit(sim.GasInfo.GasUsed, c.cfg.GasMultiplier)
	if err != nil {
		return fail("simulate", err)
	}
	fee := Fee(gasLimit, c.gasPrice, c.cfg.FeeDenom)
	b.SetGasLimit(gasLimit)
	b.SetFeeAmount(fee)

	signerData := authsigning.SignerData{
		Address:       c.address,
		ChainID:       c.cfg.ChainID,
		AccountNumber: accNum,
		Sequence:      seq,
		PubKey:        c.priv.PubKey(),
	}
	sig, err := clienttx.SignWithPrivKey(ctx, signingtypes.SignMode_SIGN_MODE_DIRECT, signerData, b, c.priv, c.txConfig, seq)
	if err != nil {
		return fail("sign", err)
	}
	if err := b.SetSignatures(sig); err != nil {
		return fail("sign", err)
	}
	txBytes, err := c.txConfig.TxEncoder()(b.GetTx())
	if err != nil {
		return fail("encode", err)
	}

	res, err := c.tx.BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		Mode:    txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
		TxBytes: txBytes,
	})
	if err != nil {
		return fail("broadcast", err)
	}
	txRes := res.TxResponse
	if txRes == nil {
		return fail("broadcast", errors.New("empty broadcast response"))
	}
	if txRes.Code != 0 {
		return "", &SubmissionError{
			Kind:      kind,
			Stage:     "broadcast",
			TxHash:    txRes.TxHash,
			Code:      txRes.Code,
			Codespace: txRes.Codespace,
			Log:       txRes.RawLog,
		}
	}
	c.log.Info("submitted message", "kind", kind, "tx", txRes.TxHash, "gas_used", sim.GasInfo.GasUsed, "gas_limit", gasLimit, "fee", fee.String(), "sequence", seq)
	return txRes.TxHash, nil
}

func (c *Client) emptySignature(seq uint64) signingtypes.SignatureV2 {
	return signingtypes.SignatureV2{
		PubKey: c.priv.PubKey(),
		Data: &signingtypes.SingleSignatureData{
			SignMode: signingtypes.SignMode_SIGN_MODE_DIRECT,
		},
		Sequence: seq,
	}
}

func (c *Client) account(ctx context.Context) (accNum uint64, seq uint64, err error) {
	res, err := c.auth.Account(ctx, &authtypes.QueryAccountRequest{Address: c.address})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query account %s: %w", c.address, err)
	}
	var acc sdk.AccountI
	if err := c.registry.UnpackAny(res.Account, &acc); err != nil {
		return 0, 0, fmt.Errorf("failed to decode account %s: %w", c.address, err)
	}
	return acc.GetAccountNumber(), acc.GetSequence(), nil
}

// Query runs a smart query with msg and decodes the JSON answer into out.
func (c *Client) Query(ctx context.Context, msg any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	bz, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}
	res, err := c.wasm.SmartContractState(ctx, &wasmtypes.QuerySmartContractStateRequest{
		Address:   c.cfg.Contract,
		QueryData: wasmtypes.RawContractMessage(bz),
	})
	if err != nil {
		return fmt.Errorf("smart query failed: %w", err)
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return fmt.Errorf("failed to decode query response %q: %w", string(res.Data), err)
	}
	return nil
}

// CurrentSlot asks the verifier for the latest slot it accepted.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	var res verifier.CurrentSlotResponse
	if err := c.Query(ctx, verifier.CurrentSlotQuery(), &res); err != nil {
		return 0, err
	}
	n, err := res.Slot.Int()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("slot %s overflows uint64", res.Slot)
	}
	return n.Uint64(), nil
}

// SyncCommitteePeriod asks the verifier for the sync committee period of slot.
func (c *Client) SyncCommitteePeriod(ctx context.Context, slot uint64) (uint64, error) {
	var res verifier.SyncCommitteePeriodResponse
	if err := c.Query(ctx, verifier.SyncCommitteePeriodQuery(slot), &res); err != nil {
		return 0, err
	}
	n, err := res.Period.Int()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("period %s overflows uint64", res.Period)
	}
	return n.Uint64(), nil
}
