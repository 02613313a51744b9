package interp

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"taskd/internal/fsops"
	"taskd/internal/obslog"
	"taskd/internal/regfile"
)

func newTestVM() *VM {
	return New(fsops.New(obslog.Discard()), obslog.Discard(), 1)
}

func loadInt(dest int, i int64) regfile.Instruction {
	return regfile.Instruction{Op: regfile.OpLoadConst, Dest: dest, ConstInt: i}
}

func loadStr(dest int, s string) regfile.Instruction {
	return regfile.Instruction{Op: regfile.OpLoadConst, Dest: dest, ConstStr: s, HasConstStr: true}
}

func TestReturnHaltsExecution(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, 5),
		{Op: regfile.OpReturn, Inline: 42},
		loadInt(0, 99),
	}
	out := vm.Execute(instrs, nil)
	if !out.ReturnedViaOpcode || out.ReturnValue != 42 {
		t.Fatalf("want explicit return 42, got %+v", out)
	}
	if vm.Registers().GetInt(0) != 5 {
		t.Fatalf("instruction after RETURN should not have executed")
	}
}

func TestFallOffEnd(t *testing.T) {
	vm := newTestVM()
	out := vm.Execute([]regfile.Instruction{loadInt(0, 1)}, nil)
	if out.ReturnedViaOpcode {
		t.Fatalf("want fall-off-end, got explicit return")
	}
}

func TestEQReflexive(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadStr(0, "same"),
		{Op: regfile.OpEQ, Dest: 1, A: 0, B: 0},
	}
	vm.Execute(instrs, nil)
	if vm.Registers().GetInt(1) != 1 {
		t.Fatalf("EQ of a register against itself must be true")
	}
}

func TestOutOfRangeOperandIsTotalNoOp(t *testing.T) {
	vm := newTestVM()
	vm.Registers().Set(2, regfile.IntValue(7))
	before := vm.Registers().GetInt(2)
	instrs := []regfile.Instruction{
		{Op: regfile.OpEQ, Dest: 2, A: 0, B: 99},
	}
	vm.Execute(instrs, nil)
	if vm.Registers().GetInt(2) != before {
		t.Fatalf("instruction with an out-of-range operand must not touch any register")
	}
}

func TestFSWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")

	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadStr(0, path),
		loadStr(1, "hello"),
		loadStr(2, "w"),
		{Op: regfile.OpFSWrite, Dest: 3, A: 0, B: 1, C: 2},
		{Op: regfile.OpFSRead, Dest: 4, A: 0},
	}
	vm.Execute(instrs, nil)

	if vm.Registers().GetInt(3) != 1 {
		t.Fatalf("fs_write should report success")
	}
	got, _ := vm.Registers().Get(4)
	if got.Kind != regfile.Str || got.S != "hello" {
		t.Fatalf("fs_read should return written contents, got %+v", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should exist on disk: %v", err)
	}
}

func TestFSCreateNonStringOperandIsFailureNotCrash(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, 123),
		loadStr(1, "file"),
		{Op: regfile.OpFSCreate, Dest: 2, A: 0, B: 1},
	}
	vm.Execute(instrs, nil)
	if vm.Registers().GetInt(2) != 0 {
		t.Fatalf("fs_create with a non-string path register must report false, not crash")
	}
}

func TestRandomRangeWithinBounds(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, 10),
		loadInt(1, 20),
		{Op: regfile.OpRandomRange, Dest: 2, A: 0, B: 1},
	}
	for i := 0; i < 50; i++ {
		vm.Execute(instrs, nil)
		v := vm.Registers().GetInt(2)
		if v < 10 || v > 20 {
			t.Fatalf("random_range produced out-of-bounds value %d", v)
		}
	}
}

func TestRandomRangeFullWidthSpanDoesNotPanic(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, math.MinInt64),
		loadInt(1, math.MaxInt64),
		{Op: regfile.OpRandomRange, Dest: 2, A: 0, B: 1},
	}
	for i := 0; i < 10; i++ {
		vm.Execute(instrs, nil)
		v := vm.Registers().GetInt(2)
		if v < math.MinInt64 || v > math.MaxInt64 {
			t.Fatalf("value %d outside [MinInt64, MaxInt64]", v)
		}
	}
}

func TestRandomRangeLargeNegativeToPositiveSpanDoesNotPanic(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, math.MinInt64+1),
		loadInt(1, math.MaxInt64),
		{Op: regfile.OpRandomRange, Dest: 2, A: 0, B: 1},
	}
	for i := 0; i < 10; i++ {
		vm.Execute(instrs, nil)
	}
}

func TestReportSnapshotContainsOnlyRequestedRegisters(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, 1),
		loadInt(1, 2),
		loadInt(2, 3),
	}
	vm.Execute(instrs, nil)

	var gotOrder []int
	var gotSnap map[int]int64
	vm.execReport(regfile.Instruction{Regs: []int{2, 0}}, func(order []int, snap map[int]int64) {
		gotOrder = order
		gotSnap = snap
	})
	if len(gotOrder) != 2 || gotOrder[0] != 2 || gotOrder[1] != 0 {
		t.Fatalf("report order should preserve recipe order, got %v", gotOrder)
	}
	if gotSnap[2] != 3 || gotSnap[0] != 1 {
		t.Fatalf("unexpected snapshot %v", gotSnap)
	}
	if _, ok := gotSnap[1]; ok {
		t.Fatalf("snapshot should not contain registers outside the report list")
	}
}

func TestRandSeedReseedsDeterministically(t *testing.T) {
	vm1 := newTestVM()
	vm2 := newTestVM()
	instrs := []regfile.Instruction{
		{Op: regfile.OpRandSeed, Inline: 99},
		loadInt(0, 1),
		loadInt(1, 1000000),
		{Op: regfile.OpRandomRange, Dest: 2, A: 0, B: 1},
	}
	vm1.Execute(instrs, nil)
	vm2.Execute(instrs, nil)
	if vm1.Registers().GetInt(2) != vm2.Registers().GetInt(2) {
		t.Fatalf("same RAND_SEED should produce the same RANDOM_RANGE draw")
	}
}

func TestPanicDuringJobIsRecoveredNotPropagated(t *testing.T) {
	vm := newTestVM()
	instrs := []regfile.Instruction{
		loadInt(0, 1),
		{Op: regfile.OpReport, Regs: []int{0}},
		loadInt(1, 2),
	}
	panickingSink := func(order []int, snapshot map[int]int64) {
		panic("boom")
	}

	out := vm.Execute(instrs, panickingSink)
	if out.ReturnedViaOpcode {
		t.Fatalf("a recovered panic should surface as a fell-off-end completion")
	}
}
