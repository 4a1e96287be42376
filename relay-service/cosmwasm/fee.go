package cosmwasm

import (
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	DefaultGasMultiplier = 1.3
	DefaultGasPrice      = "0"
	DefaultFeeDenom      = "uosmo"
)

// GasLimit scales the simulated gas usage and rounds up.
func GasLimit(gasUsed uint64, multiplier float64) (uint64, error) {
	if multiplier <= 0 {
		return 0, fmt.Errorf("gas multiplier must be positive, got %v", multiplier)
	}
	m, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(multiplier, 'f', -1, 64))
	if err != nil {
		return 0, fmt.Errorf("invalid gas multiplier %v: %w", multiplier, err)
	}
	limit := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(gasUsed)).Mul(m).Ceil().TruncateInt()
	if !limit.IsUint64() {
		return 0, fmt.Errorf("gas limit overflows: %s", limit)
	}
	return limit.Uint64(), nil
}

// ParseGasPrice parses a decimal price per unit of gas.
func ParseGasPrice(s string) (sdkmath.LegacyDec, error) {
	p, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("invalid gas price %q: %w", s, err)
	}
	if p.IsNegative() {
		return sdkmath.LegacyDec{}, fmt.Errorf("gas price %q is negative", s)
	}
	return p, nil
}

// Fee is ceil(gasLimit * price) in denom. A zero fee is an empty coin set.
func Fee(gasLimit uint64, price sdkmath.LegacyDec, denom string) sdk.Coins {
	amount := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(gasLimit)).Mul(price).Ceil().TruncateInt()
	return sdk.NewCoins(sdk.NewCoin(denom, amount))
}
