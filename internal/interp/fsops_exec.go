package interp

import "taskd/internal/regfile"

// The FS_* handlers below distinguish two failure modes, following the
// original state-machine's reg_valid()-then-null-check structure:
//
//   - an out-of-range register index is a total no-op (checked by the
//     caller's allInRange before any of these run);
//   - a valid register holding the wrong kind (not a string where one is
//     required) is treated the same as a register that was never written:
//     the underlying filesystem call is skipped and the destination gets
//     the opcode's normal failure value (false, or "" for string results).

func (vm *VM) execFSCreate(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	path, kind, ok := vm.twoStrOperands(instr.A, instr.B)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.Create(path, kind))
}

func (vm *VM) execFSDelete(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	path, ok := vm.strOperand(instr.A)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.Delete(path))
}

func (vm *VM) execFSCopy(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	src, dst, ok := vm.twoStrOperands(instr.A, instr.B)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.Copy(src, dst))
}

func (vm *VM) execFSMove(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B) {
		return
	}
	src, dst, ok := vm.twoStrOperands(instr.A, instr.B)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.Move(src, dst))
}

func (vm *VM) execFSWrite(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A, instr.B, instr.C) {
		return
	}
	path, ok := vm.strOperand(instr.A)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	content, ok := vm.strOperand(instr.B)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	mode, ok := vm.strOperand(instr.C)
	if !ok {
		vm.regs.SetBool(instr.Dest, false)
		return
	}
	vm.regs.SetBool(instr.Dest, vm.fs.Write(path, content, mode))
}

func (vm *VM) execFSRead(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	path, ok := vm.strOperand(instr.A)
	if !ok {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	content, readOK := vm.fs.Read(path)
	if !readOK {
		content = ""
	}
	vm.regs.Set(instr.Dest, regfile.StrValue(content))
}

func (vm *VM) execFSHash(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	path, ok := vm.strOperand(instr.A)
	if !ok {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	sum, hashOK := vm.fs.Hash(path)
	if !hashOK {
		sum = ""
	}
	vm.regs.Set(instr.Dest, regfile.StrValue(sum))
}

func (vm *VM) execFSList(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	path, ok := vm.strOperand(instr.A)
	if !ok {
		vm.regs.Set(instr.Dest, regfile.StrValue(""))
		return
	}
	list, listOK := vm.fs.List(path)
	if !listOK {
		list = ""
	}
	vm.regs.Set(instr.Dest, regfile.StrValue(list))
}

// execFSUnpack reads its destination operand as a directory path rather
// than writing to it: the original implementation never reports a
// success/failure value for this opcode, it only performs the extraction.
func (vm *VM) execFSUnpack(instr regfile.Instruction) {
	if !allInRange(instr.Dest, instr.A) {
		return
	}
	destDir, okDest := vm.strOperand(instr.Dest)
	tarPath, okTar := vm.strOperand(instr.A)
	if !okDest || !okTar {
		return
	}
	vm.fs.Unpack(tarPath, destDir)
}

func (vm *VM) strOperand(idx int) (string, bool) {
	v, ok := vm.regs.Get(idx)
	if !ok || v.Kind != regfile.Str {
		return "", false
	}
	return v.S, true
}

func (vm *VM) twoStrOperands(idxA, idxB int) (string, string, bool) {
	a, okA := vm.strOperand(idxA)
	if !okA {
		return "", "", false
	}
	b, okB := vm.strOperand(idxB)
	if !okB {
		return "", "", false
	}
	return a, b, true
}
