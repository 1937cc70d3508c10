package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// SatoshiPrecision is the number of decimals of UTXO chain coins.
	SatoshiPrecision = 8
	// WeiPrecision is the number of decimals of EVM native coins.
	WeiPrecision = 18
	// GweiPrecision is the number of decimals between gwei and wei.
	GweiPrecision = 9
)

var (
	//BigOneDecimal represents a single unit of a coin with precision 8 as decimal.Decimal
	BigOneDecimal = decimal.New(1, SatoshiPrecision)
	// FeeBumpFactor is the multiplier applied to the fees of a replaced
	// transaction.
	FeeBumpFactor = decimal.RequireFromString("1.2")
)

// ToSatoshis converts a coin amount to satoshis, truncating extra decimals.
func ToSatoshis(amount decimal.Decimal) uint64 {
	return amount.Shift(SatoshiPrecision).Truncate(0).BigInt().Uint64()
}

// FromSatoshis converts satoshis to a coin amount.
func FromSatoshis(sats uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -SatoshiPrecision)
}

// ToBaseUnits converts an amount expressed with the given precision to its
// integer base units, truncating extra decimals.
func ToBaseUnits(amount decimal.Decimal, precision int32) *big.Int {
	return amount.Shift(precision).Truncate(0).BigInt()
}

// FromBaseUnits converts integer base units to an amount with the given
// precision.
func FromBaseUnits(units *big.Int, precision int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -precision)
}

// ToWei converts an ether amount to wei.
func ToWei(amount decimal.Decimal) *big.Int {
	return ToBaseUnits(amount, WeiPrecision)
}

// FromWei converts wei to an ether amount.
func FromWei(wei *big.Int) decimal.Decimal {
	return FromBaseUnits(wei, WeiPrecision)
}

// GweiToWei converts a gwei amount to wei.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return ToBaseUnits(gwei, GweiPrecision)
}

// BumpFee multiplies fee by FeeBumpFactor rounding up to the next integer so
// that the bumped value is always strictly greater than a non zero fee.
func BumpFee(fee *big.Int) *big.Int {
	if fee == nil {
		return nil
	}
	bumped := decimal.NewFromBigInt(fee, 0).Mul(FeeBumpFactor).Ceil().BigInt()
	if fee.Sign() > 0 && bumped.Cmp(fee) <= 0 {
		bumped.Add(fee, big.NewInt(1))
	}
	return bumped
}

// MulDecimal takes two decimal.Decimal numbers and multiply them x * y and returns the result as decimal.Decimal
func MulDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Mul(Y)
	return
}
