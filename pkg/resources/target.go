// Package resources models the switch's register file and allocates
// register ranges to pipeline metadata and locals.
package resources

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Target holds the fixed constants of the switch being compiled for.
type Target struct {
	Registers     int    `yaml:"registers"`      // number of 32-bit style base registers
	RegisterWidth int    `yaml:"register_width"` // bits per base register
	MaxBundle     int    `yaml:"max_bundle"`     // largest bundle, in registers (xxreg = 4)
	DropPort      uint64 `yaml:"drop_port"`      // output port value meaning "no destination"
	MaxStage      int    `yaml:"max_stage"`      // highest usable table number
}

// DefaultTarget returns the constants of Open vSwitch.
func DefaultTarget() Target {
	return Target{
		Registers:     16,
		RegisterWidth: 32,
		MaxBundle:     4,
		DropPort:      0xffff,
		MaxStage:      254,
	}
}

// LoadTarget decodes a YAML target description on top of the defaults.
func LoadTarget(r io.Reader) (Target, error) {
	t := DefaultTarget()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && err != io.EOF {
		return Target{}, fmt.Errorf("decoding target: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Validate checks that the constants describe a usable register file.
func (t Target) Validate() error {
	if t.Registers <= 0 {
		return fmt.Errorf("target: registers must be positive, got %d", t.Registers)
	}
	if t.RegisterWidth <= 0 || t.RegisterWidth%8 != 0 {
		return fmt.Errorf("target: register_width must be a positive multiple of 8, got %d", t.RegisterWidth)
	}
	if t.MaxBundle <= 0 || t.MaxBundle&(t.MaxBundle-1) != 0 {
		return fmt.Errorf("target: max_bundle must be a power of two, got %d", t.MaxBundle)
	}
	if t.Registers%t.MaxBundle != 0 {
		return fmt.Errorf("target: registers (%d) must be a multiple of max_bundle (%d)", t.Registers, t.MaxBundle)
	}
	if t.MaxStage <= 0 {
		return fmt.Errorf("target: max_stage must be positive, got %d", t.MaxStage)
	}
	return nil
}

// TotalBits returns the size of the whole register file.
func (t Target) TotalBits() int {
	return t.Registers * t.RegisterWidth
}

// Bit returns the index in the register file of bit k of the bundle
// starting at base register first. Bundles are big-endian: xregN holds
// reg2N in its high half and reg2N+1 in its low half.
func (t Target) Bit(first, bundle, k int) int {
	reg := first + bundle - 1 - k/t.RegisterWidth
	return reg*t.RegisterWidth + k%t.RegisterWidth
}

// Bits returns the register file indices covered by r. Registers that
// name a packet field cover none.
func (t Target) Bits(r Register) []int {
	if r.Field != "" {
		return nil
	}
	bits := make([]int, 0, r.Width())
	for k := r.Low; k <= r.High; k++ {
		bits = append(bits, t.Bit(r.Number, r.Bundle, k))
	}
	return bits
}
