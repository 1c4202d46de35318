// Package ddloggen generates the DDlog program for a pipeline: helper
// functions for allocated registers, a relation and action types per
// table, and the rules computing every OpenFlow flow.
package ddloggen

import (
	"fmt"

	"github.com/raymyers/p4c-of/pkg/cfg"
	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/ofgen"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/resources"
)

// InitStage is the stage every packet enters.
const InitStage = 0

// Stages holds the fixed stage numbers of a compilation.
type Stages struct {
	Init         int
	IngressEntry int
	IngressExit  int
	Multicast    int
	EgressEntry  int
	EgressExit   int
}

// CompilationContext is the state shared by all passes of one
// compilation. Nothing in it outlives the compilation.
type CompilationContext struct {
	Target resources.Target
	Regs   *resources.Allocator
	IDs    *cfg.IDAllocator
	Errs   diag.Reporter

	tr *ofgen.Translator

	outPort resources.Register
	mcast   resources.Register
}

// NewContext creates a context with an empty register file. Node ids
// start after the init stage.
func NewContext(t resources.Target) *CompilationContext {
	regs := resources.NewAllocator(t)
	return &CompilationContext{
		Target: t,
		Regs:   regs,
		IDs:    cfg.NewIDAllocator(InitStage + 1),
		tr:     ofgen.New(regs, t),
	}
}

// allocateRegisters reserves the output port and multicast group
// registers, then allocates every metadata field and local in
// declaration order.
func (ctx *CompilationContext) allocateRegisters(prog *p4.Program) {
	var err error
	if ctx.outPort, err = ctx.Regs.Allocate(ofgen.OutputPortRegister, 16, 16, false); err != nil {
		ctx.Errs.Report(err)
	}
	if ctx.mcast, err = ctx.Regs.Allocate(ofgen.MulticastGroupRegister, 16, 16, false); err != nil {
		ctx.Errs.Report(err)
	}
	for _, f := range prog.Metadata {
		if f.OF != "" || f.Builtin != p4.NotBuiltin {
			continue
		}
		if _, err := ctx.tr.FieldRegister(f); err != nil {
			ctx.Errs.Report(err)
		}
	}
	for _, c := range prog.Controls() {
		for _, l := range c.Locals {
			if _, err := ctx.tr.LocalRegister(l); err != nil {
				ctx.Errs.Report(err)
			}
		}
	}
}

// checkStages reports stage numbers the switch cannot address.
func (ctx *CompilationContext) checkStages() {
	last := ctx.IDs.Peek() - 1
	if last > ctx.Target.MaxStage {
		ctx.Errs.Report(&diag.Error{
			Kind:      diag.ResourceExhausted,
			Construct: "pipeline",
			Msg:       fmt.Sprintf("needs stages up to %d, the switch has %d", last, ctx.Target.MaxStage),
		})
	}
}
