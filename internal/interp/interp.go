// Package interp implements the register-machine interpreter: the opcode
// dispatch loop that executes one job's instruction list against a
// register file (spec.md §4.1, §4.3).
package interp

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"taskd/internal/fsops"
	"taskd/internal/obslog"
	"taskd/internal/regfile"
)

// ReportSink receives one REPORT event: the recipe-chosen register indices,
// in the order the recipe listed them, and a snapshot of their current
// integer values (spec.md §3, §4.3). It may be nil, in which case REPORT is
// a no-op (spec.md §4.3: "The sink can be nil").
type ReportSink func(order []int, snapshot map[int]int64)

// Outcome is the terminal state of one job (spec.md §4.1's job state
// machine: ReturnedExplicitly or FellOffEnd).
type Outcome struct {
	ReturnValue      int64
	ReturnedViaOpcode bool
}

// VM executes instruction lists against one register file. A VM is owned by
// exactly one worker goroutine at a time (spec.md §5); it is not safe for
// concurrent Execute calls.
type VM struct {
	regs *regfile.File
	fs   *fsops.Adapter
	log  obslog.Logger
	rng  *rand.Rand
}

// New builds a VM with a fresh, zeroed register file and a PRNG seeded from
// seed. Keeping the PRNG on the VM (rather than in a package-level
// math/rand source) resolves spec.md §9 Open Question 3: RAND_SEED no
// longer has a process-wide shared-mutable side effect.
func New(fs *fsops.Adapter, log obslog.Logger, seed int64) *VM {
	return &VM{
		regs: regfile.New(),
		fs:   fs,
		log:  log,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Registers exposes the VM's register file, e.g. for tests or for a server
// that wants to read registers after a job completes.
func (vm *VM) Registers() *regfile.File { return vm.regs }

func inRange(idx int) bool {
	return idx >= 0 && idx < regfile.NumRegisters
}

func allInRange(idxs ...int) bool {
	for _, i := range idxs {
		if !inRange(i) {
			return false
		}
	}
	return true
}

// Execute runs instrs to termination against vm's register file, delivering
// REPORT events to sink as they occur, and returns the job's terminal
// outcome (spec.md §4.1's state machine). A panic during any one
// instruction (or from sink) is recovered here and reported as a
// FellOffEnd completion rather than propagating: a bad job must not crash
// the worker goroutine, let alone the daemon (spec.md §4.6/§7 — runtime
// failures never abort the program), the same way the teacher VM's
// getDefaultRecoverFuncForVM turns a panic into a printed error instead of
// a crash.
func (vm *VM) Execute(instrs []regfile.Instruction, sink ReportSink) (outcome Outcome) {
	defer vm.recoverJob(&outcome)
	for _, instr := range instrs {
		if ret, halted := vm.step(instr, sink); halted {
			return Outcome{ReturnValue: ret, ReturnedViaOpcode: true}
		}
	}
	return Outcome{ReturnValue: 0, ReturnedViaOpcode: false}
}

func (vm *VM) recoverJob(outcome *Outcome) {
	if r := recover(); r != nil {
		vm.log.WithFields(map[string]any{"panic": fmt.Sprintf("%v", r)}).Error("job panicked, recovered")
		*outcome = Outcome{ReturnValue: 0, ReturnedViaOpcode: false}
	}
}

// step executes one instruction. It returns (returnValue, true) iff the
// instruction was RETURN, signalling the caller to halt immediately
// (spec.md §4.1: "any remaining instructions are not executed").
func (vm *VM) step(instr regfile.Instruction, sink ReportSink) (int64, bool) {
	switch instr.Op {
	case regfile.OpLoadConst:
		vm.execLoadConst(instr)
	case regfile.OpFSCreate:
		vm.execFSCreate(instr)
	case regfile.OpFSDelete:
		vm.execFSDelete(instr)
	case regfile.OpFSCopy:
		vm.execFSCopy(instr)
	case regfile.OpFSMove:
		vm.execFSMove(instr)
	case regfile.OpFSWrite:
		vm.execFSWrite(instr)
	case regfile.OpFSRead:
		vm.execFSRead(instr)
	case regfile.OpFSUnpack:
		vm.execFSUnpack(instr)
	case regfile.OpFSHash:
		vm.execFSHash(instr)
	case regfile.OpFSList:
		vm.execFSList(instr)
	case regfile.OpEQ:
		vm.execEQ(instr)
	case regfile.OpNOT:
		vm.execNOT(instr)
	case regfile.OpAND:
		vm.execAND(instr)
	case regfile.OpOR:
		vm.execOR(instr)
	case regfile.OpIndexSelect:
		vm.execIndexSelect(instr)
	case regfile.OpRandomRange:
		vm.execRandomRange(instr)
	case regfile.OpPathJoin:
		vm.execPathJoin(instr)
	case regfile.OpRandomWalk:
		vm.execRandomWalk(instr)
	case regfile.OpDirContains:
		vm.execDirContains(instr)
	case regfile.OpRandSeed:
		vm.rng = rand.New(rand.NewSource(instr.Inline))
	case regfile.OpReport:
		vm.execReport(instr, sink)
	case regfile.OpReturn:
		return instr.Inline, true
	}
	return 0, false
}

func (vm *VM) execLoadConst(instr regfile.Instruction) {
	if !inRange(instr.Dest) {
		return
	}
	if instr.HasConstStr {
		vm.regs.Set(instr.Dest, regfile.StrValue(instr.ConstStr))
	} else {
		vm.regs.Set(instr.Dest, regfile.IntValue(instr.ConstInt))
	}
}

func (vm *VM) execEQ(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	a, _ := vm.regs.Get(instr.A)
	b, _ := vm.regs.Get(instr.B)
	equal := a.Kind == b.Kind && ((a.Kind == regfile.Int && a.I == b.I) ||
		(a.Kind == regfile.Str && a.S == b.S) ||
		a.Kind == regfile.Empty)
	vm.regs.SetBool(instr.Dest, equal)
}

func (vm *VM) execNOT(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	a, _ := vm.regs.Get(instr.A)
	vm.regs.SetBool(instr.Dest, !a.Truthy())
}

func (vm *VM) execAND(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	a, _ := vm.regs.Get(instr.A)
	b, _ := vm.regs.Get(instr.B)
	vm.regs.SetBool(instr.Dest, a.Truthy() && b.Truthy())
}

func (vm *VM) execOR(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	a, _ := vm.regs.Get(instr.A)
	b, _ := vm.regs.Get(instr.B)
	vm.regs.SetBool(instr.Dest, a.Truthy() || b.Truthy())
}

func (vm *VM) execIndexSelect(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	list, ok := vm.regs.Get(instr.A)
	if !ok || list.Kind != regfile.Str {
		vm.regs.Set(instr.Dest, regfile.EmptyValue())
		return
	}
	idxVal, _ := vm.regs.Get(instr.B)
	if idxVal.Kind != regfile.Int {
		vm.regs.Set(instr.Dest, regfile.EmptyValue())
		return
	}
	lines := strings.Split(list.S, "\n")
	if idxVal.I < 0 || idxVal.I >= int64(len(lines)) {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	vm.regs.Set(instr.Dest, regfile.StrValue(lines[idxVal.I]))
}

func (vm *VM) execRandomRange(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	minV, _ := vm.regs.Get(instr.A)
	maxV, _ := vm.regs.Get(instr.B)
	if minV.Kind != regfile.Int || maxV.Kind != regfile.Int {
		vm.regs.Set(instr.Dest, regfile.IntValue(0))
		return
	}
	lo, hi := minV.I, maxV.I
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		vm.regs.Set(instr.Dest, regfile.IntValue(lo))
		return
	}
	// hi-lo can overflow int64 (e.g. lo=MinInt64, hi=MaxInt64), which would
	// make span<=0 and panic in Int63n. uint64(hi)-uint64(lo) is exact even
	// then, since it's the same two's-complement bit pattern mod 2^64; only
	// a full-width span needs its own branch since width+1 wraps to 0.
	width := uint64(hi) - uint64(lo)
	var offset uint64
	if width == math.MaxUint64 {
		offset = vm.rng.Uint64()
	} else {
		offset = vm.rng.Uint64() % (width + 1)
	}
	vm.regs.Set(instr.Dest, regfile.IntValue(int64(uint64(lo)+offset)))
}

func (vm *VM) execPathJoin(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	base, okA := vm.regs.Get(instr.A)
	name, okB := vm.regs.Get(instr.B)
	if !okA || !okB || base.Kind != regfile.Str || name.Kind != regfile.Str {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	vm.regs.Set(instr.Dest, regfile.StrValue(vm.fs.PathJoin(base.S, name.S)))
}

func (vm *VM) execRandomWalk(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	root, okA := vm.regs.Get(instr.A)
	depth, okB := vm.regs.Get(instr.B)
	if !okA || !okB || root.Kind != regfile.Str || depth.Kind != regfile.Int {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	final := vm.fs.RandomWalk(root.S, int(depth.I), func(options []string) string {
		return options[vm.rng.Intn(len(options))]
	})
	vm.regs.Set(instr.Dest, regfile.StrValue(final))
}

func (vm *VM) execDirContains(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	a, okA := vm.regs.Get(instr.A)
	b, okB := vm.regs.Get(instr.B)
	if !okA || !okB || a.Kind != regfile.Str || b.Kind != regfile.Str {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.DirContains(a.S, b.S))
}

func (vm *VM) execReport(instr regfile.Instruction, sink ReportSink) {
	if sink == nil {
		return
	}
	valid := make([]int, 0, len(instr.Regs))
	for _, idx := range instr.Regs {
		if inRange(idx) {
			valid = append(valid, idx)
		}
	}
	sink(valid, vm.regs.Snapshot(valid))
}
