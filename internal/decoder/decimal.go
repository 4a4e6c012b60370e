package decoder

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// decimalDigits takes its value from Python's getcontext().prec = 28 used
// by the original pipeline's Decimal arithmetic; here it counts digits
// after the decimal point.
const decimalDigits = 28

// floatToDecimal converts a big.Float (used internally for the
// sqrt/square/division math) into a shopspring/decimal.Decimal rounded
// to 28 digits after the decimal point (not 28 significant digits).
func floatToDecimal(f *big.Float) (decimal.Decimal, error) {
	s := f.Text('f', decimalDigits)
	return decimal.NewFromString(s)
}

// decimalFromBigInt converts an integer (e.g. liquidity) directly,
// without going through big.Float.
func decimalFromBigInt(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, 0)
}
