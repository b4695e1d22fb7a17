package protocol

import (
	"math/big"
	"strings"
)

var (
	ten = big.NewInt(10)

	// weiPerUnit scales a whole native-token amount to 18 decimals.
	weiPerUnit = new(big.Int).Exp(ten, big.NewInt(18), nil)
	// usdPerUnit scales a whole USD amount to the 6 decimals the treasury
	// contracts report in.
	usdPerUnit = new(big.Int).Exp(ten, big.NewInt(6), nil)
)

// Units returns n whole native-token units in 18-decimal representation.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerUnit)
}

// USD returns n whole dollars in the 6-decimal representation.
func USD(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), usdPerUnit)
}

// ratio returns num/den as an exact rational, or zero if den is zero.
func ratio(num, den *big.Int) *big.Rat {
	if den.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(num, den)
}

// clampSub subtracts b from a in place, clamping at zero. Returns true when
// the subtraction would have gone negative; callers treat that as a
// data-quality signal.
func clampSub(a, b *big.Int) bool {
	a.Sub(a, b)
	if a.Sign() < 0 {
		a.SetInt64(0)
		return true
	}
	return false
}

// formatUnits renders x with the given decimals as a decimal string, trimming
// trailing zeros. Presentation only; aggregation never rounds.
func formatUnits(x *big.Int, decimals int) string {
	if x == nil {
		return "0"
	}
	neg := x.Sign() < 0
	abs := new(big.Int).Abs(x)
	div := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, div, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		for len(digits) < decimals {
			digits = "0" + digits
		}
		digits = strings.TrimRight(digits, "0")
		out += "." + digits
	}
	if neg {
		out = "-" + out
	}
	return out
}

// percent renders r as a percentage string with two decimal places.
func percent(r *big.Rat) string {
	return new(big.Rat).Mul(r, big.NewRat(100, 1)).FloatString(2) + "%"
}

func copyBig(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
