package resources

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	log "github.com/sirupsen/logrus"

	"github.com/raymyers/p4c-of/pkg/diag"
)

// Allocator hands out byte-rounded ranges of the register file.
// A range never crosses the boundary of the bundle it is placed in.
type Allocator struct {
	target Target
	used   *bitset.BitSet
	byName map[string]Register
	order  []string
}

// NewAllocator creates an allocator with every bit free.
func NewAllocator(t Target) *Allocator {
	return &Allocator{
		target: t,
		used:   bitset.New(uint(t.TotalBits())),
		byName: make(map[string]Register),
	}
}

// Target returns the constants the allocator was built with.
func (a *Allocator) Target() Target {
	return a.target
}

// Allocate reserves a register for the declaration called name.
// declared and minimum are the declared bit width of the value and the
// smallest width able to represent it; they must agree. If name already
// owns a register, that register is returned.
func (a *Allocator) Allocate(name string, declared, minimum int, isBool bool) (Register, error) {
	if r, ok := a.byName[name]; ok {
		return r, nil
	}
	if declared != minimum {
		return Register{}, &diag.Error{
			Kind:      diag.UnsupportedConstruct,
			Construct: name,
			Msg:       fmt.Sprintf("declared width %d differs from minimum width %d", declared, minimum),
		}
	}
	if declared <= 0 {
		return Register{}, &diag.Error{
			Kind:      diag.UnsupportedConstruct,
			Construct: name,
			Msg:       fmt.Sprintf("cannot allocate %d bits", declared),
		}
	}

	bits := (declared + 7) / 8 * 8
	bundle := a.bundleFor(bits)
	if bundle == 0 {
		return Register{}, a.exhausted(name, declared)
	}

	bundleBits := bundle * a.target.RegisterWidth
	for first := 0; first+bundle <= a.target.Registers; first += bundle {
		for off := 0; off+bits <= bundleBits; off += 8 {
			r := Register{
				Number:   first,
				Bundle:   bundle,
				Size:     bundleBits,
				Low:      off,
				High:     off + declared - 1,
				Bool:     isBool,
				Friendly: name,
			}
			// the padding up to a whole byte is reserved too
			span := a.target.Bits(Register{Number: first, Bundle: bundle, Low: off, High: off + bits - 1})
			if !a.free(span) {
				continue
			}
			a.mark(span)
			a.byName[name] = r
			a.order = append(a.order, name)
			log.Debugf("resources: %s (%d bits) -> %s", name, declared, r.ActionString())
			return r, nil
		}
	}
	return Register{}, a.exhausted(name, declared)
}

// Lookup returns the register owned by name.
func (a *Allocator) Lookup(name string) (Register, bool) {
	r, ok := a.byName[name]
	return r, ok
}

// Allocated returns every allocated register in allocation order.
func (a *Allocator) Allocated() []Register {
	regs := make([]Register, 0, len(a.order))
	for _, name := range a.order {
		regs = append(regs, a.byName[name])
	}
	return regs
}

// FreeBits returns the number of unoccupied bits.
func (a *Allocator) FreeBits() int {
	return a.target.TotalBits() - int(a.used.Count())
}

// bundleFor returns the smallest bundle holding bits, or 0 if none does.
func (a *Allocator) bundleFor(bits int) int {
	for b := 1; b <= a.target.MaxBundle; b <<= 1 {
		if b*a.target.RegisterWidth >= bits {
			return b
		}
	}
	return 0
}

func (a *Allocator) free(span []int) bool {
	for _, i := range span {
		if a.used.Test(uint(i)) {
			return false
		}
	}
	return true
}

func (a *Allocator) mark(span []int) {
	for _, i := range span {
		a.used.Set(uint(i))
	}
}

func (a *Allocator) exhausted(name string, width int) error {
	return &diag.Error{
		Kind:      diag.ResourceExhausted,
		Construct: name,
		Msg:       fmt.Sprintf("no free range of %d bits in %d registers", width, a.target.Registers),
	}
}
