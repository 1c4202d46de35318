package resources

import (
	"fmt"
	"math/big"
	"strings"
)

// Register is an allocated range of switch state. Either a bundle of base
// registers (Field empty) or a named packet field such as "vlan_tci".
// Low and High are inclusive and relative to the start of the bundle.
type Register struct {
	Number   int    // first base register of the bundle
	Bundle   int    // 1, 2 or 4 base registers
	Size     int    // total bits of the bundle or field
	Low      int    // first bit
	High     int    // last bit, inclusive
	Bool     bool   // holds a P4 bool
	Field    string // packet field name; overrides register naming
	Friendly string // name of the declaration owning the register
}

// Width returns the number of bits covered.
func (r Register) Width() int {
	return r.High - r.Low + 1
}

// FullRange reports whether the register covers its whole base.
func (r Register) FullRange() bool {
	return r.Low == 0 && r.High == r.Size-1
}

// BaseName returns the name of the underlying bundle or field:
// reg3, xreg1 or xxreg0 for bundles.
func (r Register) BaseName() string {
	if r.Field != "" {
		return r.Field
	}
	var sb strings.Builder
	n := r.Number
	for i := r.Bundle; i > 1; i >>= 1 {
		sb.WriteString("x")
		n /= 2
	}
	fmt.Fprintf(&sb, "reg%d", n)
	return sb.String()
}

// GetMask returns a value with the low n bits set.
func GetMask(n int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(n))
	return m.Sub(m, big.NewInt(1))
}

// Mask returns the bits of the base covered by the register.
func (r Register) Mask() *big.Int {
	return new(big.Int).Xor(GetMask(r.High+1), GetMask(r.Low))
}

// MatchString renders the register the way it appears in a match: the
// base name with its mask.
func (r Register) MatchString() string {
	return r.BaseName() + "/0x" + r.Mask().Text(16)
}

// ActionString renders the register with an explicit bit range, as used
// inside move and load actions.
func (r Register) ActionString() string {
	switch {
	case r.FullRange():
		return r.BaseName() + "[]"
	case r.Low == r.High:
		return fmt.Sprintf("%s[%d]", r.BaseName(), r.Low)
	default:
		return fmt.Sprintf("%s[%d..%d]", r.BaseName(), r.Low, r.High)
	}
}

func (r Register) String() string {
	return r.ActionString()
}

// Slice narrows the register to bits [low, high] of its current range.
// ok is false when the range does not fit. The friendly name is dropped.
func (r Register) Slice(low, high int) (Register, bool) {
	if low < 0 || high < low || r.Low+high > r.High {
		return Register{}, false
	}
	s := r
	s.Low = r.Low + low
	s.High = r.Low + high
	s.Friendly = ""
	s.Bool = false
	return s, true
}

// FieldRegister describes a packet field, or a slice of it, as a register.
func FieldRegister(field string, size, low, high int) Register {
	return Register{Bundle: 1, Size: size, Low: low, High: high, Field: field}
}
